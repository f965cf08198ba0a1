package main

import (
	"context"
	"fmt"
	"time"

	"github.com/zuluscsi/scsicore/initiator"
)

// deviceFlags is embedded by every sub-command that talks to a real SCSI
// generic device node, the --device path SPEC_FULL.md adds alongside the
// emulator-only initiator.Scanner.
type deviceFlags struct {
	Device string `flag:"" required:"" short:"d" help:"Path to a Linux SCSI generic device (e.g. /dev/sg2)"`
	ID     int    `flag:"" default:"0" help:"SCSI ID to address (ignored by most SG adapters, which fix the target per device node)"`
}

func (d deviceFlags) open() (*initiator.SGIOTransport, error) {
	t, err := initiator.OpenSGIODevice(d.Device)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Device, err)
	}
	return t, nil
}

type inquiryCmd struct {
	deviceFlags
}

func (c *inquiryCmd) Run(ctx *cliContext) error {
	t, err := c.open()
	if err != nil {
		return err
	}
	defer t.Close()

	s := initiator.NewScanner(t, (c.ID+1)%8)
	s.OnlyIDs = []int{c.ID}
	found := s.ScanIDs(context.Background())
	if len(found) == 0 {
		return fmt.Errorf("no device answered at id %d", c.ID)
	}
	info := found[0]
	fmt.Printf("id=%d type=%d removable=%v vendor/product/rev=%q sectors=%d sector_size=%d\n",
		info.ID, info.PeripheralDeviceType, info.Removable, info.VendorProductRev,
		info.SectorCount, info.SectorSize)
	return nil
}

type inspectCmd struct {
	deviceFlags
}

func (c *inspectCmd) Run(ctx *cliContext) error {
	t, err := c.open()
	if err != nil {
		return err
	}
	defer t.Close()

	// An SG device node already names one fixed target, so "inspect" only
	// ever has one ID worth asking about — unlike a scan over an emulated
	// phy.Port bus, where every one of 0..7 might be a different LUN.
	s := initiator.NewScanner(t, (c.ID+1)%8)
	s.OnlyIDs = []int{c.ID}
	found := s.ScanIDs(context.Background())
	if len(found) == 0 {
		fmt.Println("no devices found")
		return nil
	}
	for _, info := range found {
		fmt.Printf("id=%d type=%d removable=%v vendor/product/rev=%q sectors=%d sector_size=%d\n",
			info.ID, info.PeripheralDeviceType, info.Removable, info.VendorProductRev,
			info.SectorCount, info.SectorSize)
	}
	return nil
}

type cloneCmd struct {
	deviceFlags
	DestDir string        `flag:"" required:"" short:"o" help:"Directory to write the cloned image to"`
	Eject   bool          `flag:"" default:"false" help:"Eject the source device once cloning completes"`
	Timeout time.Duration `flag:"" default:"10m" help:"Overall timeout for the clone operation"`
}

func (c *cloneCmd) Run(ctx *cliContext) error {
	t, err := c.open()
	if err != nil {
		return err
	}
	defer t.Close()

	runCtx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	s := initiator.NewScanner(t, (c.ID+1)%8)
	s.OnlyIDs = []int{c.ID}
	s.DestDir = c.DestDir
	s.EjectWhenDone = c.Eject

	found := s.ScanIDs(runCtx)
	if len(found) == 0 {
		return fmt.Errorf("no device answered at id %d", c.ID)
	}

	for _, info := range found {
		fmt.Printf("cloning id=%d (%q, %d sectors)...\n", info.ID, info.VendorProductRev, info.SectorCount)
		result, err := s.CloneDevice(runCtx, info)
		if err != nil {
			return fmt.Errorf("clone id %d: %w", info.ID, err)
		}
		fmt.Printf("id=%d -> %s (%d sectors, %d bad, paused=%v)\n",
			info.ID, result.Path, result.SectorsCloned, result.BadSectorCount, result.Paused)
	}
	return nil
}

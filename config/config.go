// Package config holds the typed configuration structs scsicored's embedder
// populates to describe a bus (spec.md §3, §4.5): per-LUN device identity
// and geometry, the backing image it mounts, and any SSC tape medium. Unlike
// the original firmware, nothing here parses `.ini` text — spec.md places
// that explicitly out of scope, so this package only ever receives
// already-decided values, the same contract go-tcmu's SCSIHandler takes its
// VolumeName/DataSizes/WWN through.
package config

import (
	"fmt"
	"time"

	"github.com/zuluscsi/scsicore/bus"
	"github.com/zuluscsi/scsicore/metrics"
	"github.com/zuluscsi/scsicore/pipeline"
	"github.com/zuluscsi/scsicore/store"
	"github.com/zuluscsi/scsicore/tape"
	"github.com/zuluscsi/scsicore/target"
)

// ImageKind selects which store.BackingStore variant an ImageConfig builds.
type ImageKind int

const (
	ImageFile ImageKind = iota
	ImageCow
	ImageFolder
	ImageRom
)

// ImageConfig describes the backing store for one LUN.
type ImageConfig struct {
	Kind ImageKind

	// ImageFile / ImageCow
	Path      string
	Writable  bool
	BlockSize int64

	// ImageCow
	OverlayPath string

	// ImageFolder
	Dir string

	// ImageRom
	Rom []byte
}

// Build constructs and opens the store.BackingStore this config describes.
func (c ImageConfig) Build() (store.BackingStore, error) {
	var bs store.BackingStore
	switch c.Kind {
	case ImageFile:
		bs = &store.FileStore{Path: c.Path, Writable: c.Writable, BlockSize: c.BlockSize}
	case ImageCow:
		bs = &store.CowStore{BasePath: c.Path, OverlayPath: c.OverlayPath, BlockSize: c.BlockSize}
	case ImageFolder:
		bs = &store.FolderStore{Dir: c.Dir, BlockSize: c.BlockSize}
	case ImageRom:
		bs = &store.RomStore{Image: c.Rom}
	default:
		return nil, fmt.Errorf("config: unknown image kind %d", c.Kind)
	}
	if err := bs.Open(); err != nil {
		return nil, err
	}
	return bs, nil
}

// TapeConfig describes the SSC medium backing a DeviceSequential LUN.
type TapeConfig struct {
	// SimhPath, if set, opens a SIMH .TAP container at this path.
	SimhPath string
	// FolderDir, if set (and SimhPath is empty), opens a directory of
	// numbered segment files as a tape.FolderTape.
	FolderDir string
}

func (c TapeConfig) build() (tape.Medium, error) {
	switch {
	case c.SimhPath != "":
		return tape.OpenSimhTape(c.SimhPath)
	case c.FolderDir != "":
		return tape.OpenFolderTape(c.FolderDir)
	default:
		return nil, nil
	}
}

// DeviceConfig describes one LUN: its identity, geometry, quirks, presets,
// and the image/medium it mounts.
type DeviceConfig struct {
	ID   int // SCSI ID / LUN, 0-7
	Type target.DeviceType

	SystemPreset string
	DevicePreset string

	Vendor, Product, Revision, Serial string
	RightAlignStrings                 bool

	SectorsPerTrack  int
	HeadsPerCylinder int
	// BytesPerSector, if zero, defaults per target.DefaultBytesPerSector.
	BytesPerSector int

	// PrefetchBytes is the PrefetchBytes config key (spec.md §4.7); zero
	// disables read-ahead for this LUN.
	PrefetchBytes int

	Image ImageConfig
	Tape  TapeConfig
}

// Build assembles a *target.Target from this config: presets first (lowest
// priority), then the explicit per-device fields (highest priority), then
// the backing image/medium.
func (c DeviceConfig) Build() (*target.Target, error) {
	tgt := target.NewTarget()
	tgt.Active = true
	tgt.DeviceType = c.Type

	if c.SystemPreset != "" {
		tgt.ApplySystemPreset(c.SystemPreset)
	}
	if c.DevicePreset != "" {
		tgt.ApplyDevicePreset(c.DevicePreset)
	}

	bps := c.BytesPerSector
	if bps == 0 {
		bps = target.DefaultBytesPerSector(c.Type)
	}
	tgt.Geometry.BytesPerSector = bps
	if c.SectorsPerTrack != 0 {
		tgt.Geometry.SectorsPerTrack = c.SectorsPerTrack
	}
	if c.HeadsPerCylinder != 0 {
		tgt.Geometry.HeadsPerCylinder = c.HeadsPerCylinder
	}
	if c.RightAlignStrings {
		tgt.RightAlignStrings = true
	}
	if c.Vendor != "" {
		tgt.Inquiry.Vendor = c.Vendor
	}
	if c.Product != "" {
		tgt.Inquiry.Product = c.Product
	}
	if c.Revision != "" {
		tgt.Inquiry.Revision = c.Revision
	}
	if c.Serial != "" {
		tgt.Inquiry.Serial = c.Serial
	}
	tgt.PrefetchBytes = c.PrefetchBytes

	if c.Image.Path != "" || c.Image.Dir != "" || c.Image.Kind == ImageRom {
		bs, err := c.Image.Build()
		if err != nil {
			return nil, fmt.Errorf("config: device %d: %w", c.ID, err)
		}
		tgt.Image = bs
		tgt.Geometry.CapacityLBA = bs.Size() / int64(bps)
	}

	if c.Type == target.DeviceSequential {
		medium, err := c.Tape.build()
		if err != nil {
			return nil, fmt.Errorf("config: device %d: tape: %w", c.ID, err)
		}
		tgt.Medium = medium
		if medium != nil {
			tgt.Tape = &target.TapeState{}
		}
	}

	return tgt, nil
}

// BusConfig describes an entire bus: up to 8 devices sharing one port, plus
// the platform's negotiation capability and Prometheus registry to wire
// into the resulting *bus.Bus.
type BusConfig struct {
	OurID          int
	Devices        []DeviceConfig
	Caps           bus.NegotiationCaps
	CommandTimeout int // seconds; zero means bus.DefaultCommandTimeout
}

// Build assembles every device and returns a *bus.Bus ready to Run against
// a phy.Port the caller sets on the result separately (the port is a
// transport concern, not a configuration one), along with whatever
// toolbox.FileSource the embedder wants to expose over the vendor channel.
func (c BusConfig) Build(reg *metrics.Registry) (*bus.Bus, error) {
	b := &bus.Bus{OurID: c.OurID, Caps: c.Caps, Metrics: reg, Prefetch: pipeline.NewPrefetch()}
	if c.CommandTimeout > 0 {
		b.CommandTimeout = time.Duration(c.CommandTimeout) * time.Second
	}
	for _, dc := range c.Devices {
		if dc.ID < 0 || dc.ID > 7 {
			return nil, fmt.Errorf("config: device id %d out of range 0-7", dc.ID)
		}
		tgt, err := dc.Build()
		if err != nil {
			return nil, err
		}
		b.Targets[dc.ID] = tgt
	}
	return b, nil
}

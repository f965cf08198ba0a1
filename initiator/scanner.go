package initiator

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/zuluscsi/scsicore/scsi"
)

// DeviceInfo summarizes what Identify found at one SCSI ID.
type DeviceInfo struct {
	ID                   int
	PeripheralDeviceType byte
	Removable            bool
	VendorProductRev     string
	SectorCount          uint32
	SectorSize           uint32
}

// Scanner drives the periodic clone loop of spec.md §4.9.
type Scanner struct {
	Transport   Transport
	InitiatorID int

	// OnlyIDs restricts ScanIDs to this set of SCSI IDs; empty probes all
	// of 0..7.
	OnlyIDs []int

	// MaxSectorPerTransfer caps how many sectors one batch read requests:
	// 256 for READ(6) (its count field is a single byte, 0 meaning 256),
	// otherwise >=512 as the spec allows.
	MaxSectorPerTransfer int

	Retry RetryPolicy

	DestDir         string
	Collision       CollisionPolicy
	EjectWhenDone   bool
	RemovableCounts [8]int // per-ID count of prior clones, for filename numbering

	// PauseRequested, when non-nil, is polled between sectors so a
	// physical eject button can pause an in-progress clone (spec.md
	// §4.9's "pausable via a physical eject button").
	PauseRequested func() bool
}

// NewScanner returns a Scanner with the spec's defaults applied.
func NewScanner(t Transport, initiatorID int) *Scanner {
	return &Scanner{
		Transport:            t,
		InitiatorID:          initiatorID,
		MaxSectorPerTransfer: 256,
		Retry:                DefaultRetryPolicy(),
		Collision:            NewNumberedCopy,
	}
}

// ScanIDs probes SCSI IDs 0..7, skipping InitiatorID, and returns
// DeviceInfo for every ID that answers TEST_UNIT_READY+INQUIRY+
// READ_CAPACITY (spec.md §4.9 steps 1-2). IDs that fail are simply omitted.
// If OnlyIDs is non-empty, only those IDs are probed — for a Transport that
// already names one fixed target (initiator.SGIOTransport), probing every
// ID 0..7 would just ask the same device the same question eight times.
func (s *Scanner) ScanIDs(ctx context.Context) []DeviceInfo {
	ids := s.OnlyIDs
	if len(ids) == 0 {
		for id := 0; id < 8; id++ {
			ids = append(ids, id)
		}
	}
	var found []DeviceInfo
	for _, id := range ids {
		if id == s.InitiatorID {
			continue
		}
		info, err := s.identify(ctx, id)
		if err != nil {
			continue
		}
		found = append(found, info)
	}
	return found
}

func (s *Scanner) identify(ctx context.Context, id int) (DeviceInfo, error) {
	if _, err := s.Transport.RunCommand(ctx, id, testUnitReadyCDB(), nil, nil); err != nil {
		return DeviceInfo{}, err
	}
	if _, err := s.Transport.RunCommand(ctx, id, startStopUnitCDB(true, false), nil, nil); err != nil {
		return DeviceInfo{}, err
	}

	inq := make([]byte, 36)
	if _, err := s.Transport.RunCommand(ctx, id, inquiryCDB(36), inq, nil); err != nil {
		return DeviceInfo{}, err
	}

	capResp := make([]byte, 8)
	status, err := s.Transport.RunCommand(ctx, id, readCapacity10CDB(), capResp, nil)
	if err != nil || status != scsi.SamStatGood {
		return DeviceInfo{}, fmt.Errorf("initiator: READ CAPACITY failed for id %d", id)
	}

	return DeviceInfo{
		ID:                   id,
		PeripheralDeviceType: inq[0] & 0x1f,
		Removable:            inq[1]&0x80 != 0,
		VendorProductRev:     string(inq[8:32]),
		SectorCount:          binary.BigEndian.Uint32(capResp[0:4]) + 1,
		SectorSize:           binary.BigEndian.Uint32(capResp[4:8]),
	}, nil
}

// CloneResult reports the outcome of cloning one device.
type CloneResult struct {
	Path           string
	SectorsCloned  uint32
	BadSectorCount int
	Paused         bool
}

// CloneDevice streams info's entire contents to a local file under
// s.DestDir, following the filename templating, collision policy, and
// batch-retry-then-skip strategy of spec.md §4.9 steps 3-6.
func (s *Scanner) CloneDevice(ctx context.Context, info DeviceInfo) (CloneResult, error) {
	base, ext := FilenameTemplate(info.ID, info.PeripheralDeviceType)
	path, ok := ResolveFilename(s.DestDir, base, ext, s.Collision, s.RemovableCounts[info.ID])
	if !ok {
		return CloneResult{}, fmt.Errorf("initiator: %s%s already exists for id %d and policy forbids overwrite", base, ext, info.ID)
	}

	f, err := os.Create(path)
	if err != nil {
		return CloneResult{}, fmt.Errorf("initiator: create %s: %w", path, err)
	}
	defer f.Close()

	result := CloneResult{Path: path}
	sectorSize := int(info.SectorSize)
	batch := s.MaxSectorPerTransfer
	if batch <= 0 {
		batch = 256
	}

	read := func(lba uint32, count int, dst []byte) error {
		cdb := read10CDB(lba, uint16(count))
		status, err := s.Transport.RunCommand(ctx, info.ID, cdb, dst, nil)
		if err != nil {
			return err
		}
		if status != scsi.SamStatGood {
			return fmt.Errorf("initiator: READ(10) id=%d lba=%d status=%#02x", info.ID, lba, status)
		}
		return nil
	}

	remaining := info.SectorCount
	lba := uint32(0)
	buf := make([]byte, batch*sectorSize)
	for remaining > 0 {
		if s.PauseRequested != nil && s.PauseRequested() {
			result.Paused = true
			break
		}
		n := int(remaining)
		if n > batch {
			n = batch
		}
		chunk := buf[:n*sectorSize]
		bad := s.Retry.ReadBatchWithRetry(read, lba, n, sectorSize, chunk)
		result.BadSectorCount += bad
		if _, err := f.WriteAt(chunk, int64(lba)*int64(sectorSize)); err != nil {
			return result, fmt.Errorf("initiator: write to %s: %w", path, err)
		}
		lba += uint32(n)
		remaining -= uint32(n)
		result.SectorsCloned += uint32(n)
	}

	if !result.Paused {
		s.Transport.RunCommand(ctx, info.ID, startStopUnitCDB(false, s.EjectWhenDone), nil, nil)
		if s.EjectWhenDone {
			s.RemovableCounts[info.ID]++
		}
	}
	return result, nil
}

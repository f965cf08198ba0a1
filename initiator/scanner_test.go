package initiator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/zuluscsi/scsicore/scsi"
)

// fakeTransport simulates one small in-memory disk per entry in disks, and
// fails every command to IDs that have no entry.
type fakeTransport struct {
	disks map[int]*fakeDisk
	// failOnce forces ReadBatchWithRetry's retry path: a read starting at
	// one of its LBAs fails as many more times as the mapped count.
	failOnce map[uint32]int
}

type fakeDisk struct {
	sectorSize int
	data       []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{disks: map[int]*fakeDisk{}, failOnce: map[uint32]int{}}
}

func (f *fakeTransport) RunCommand(ctx context.Context, targetID int, cdb []byte, dataIn []byte, dataOut []byte) (byte, error) {
	disk, ok := f.disks[targetID]
	if !ok {
		return 0, errNotPresent
	}
	switch cdb[0] {
	case scsi.TestUnitReady, scsi.StartStop:
		return scsi.SamStatGood, nil
	case scsi.Inquiry:
		inq := make([]byte, 36)
		inq[0] = 0x00
		inq[1] = 0x80 // removable
		copy(inq[8:], []byte("FAKE VENDOR PROD REV1"))
		copy(dataIn, inq)
		return scsi.SamStatGood, nil
	case scsi.ReadCapacity:
		count := uint32(len(disk.data)/disk.sectorSize) - 1
		dataIn[0] = byte(count >> 24)
		dataIn[1] = byte(count >> 16)
		dataIn[2] = byte(count >> 8)
		dataIn[3] = byte(count)
		ss := uint32(disk.sectorSize)
		dataIn[4] = byte(ss >> 24)
		dataIn[5] = byte(ss >> 16)
		dataIn[6] = byte(ss >> 8)
		dataIn[7] = byte(ss)
		return scsi.SamStatGood, nil
	case scsi.Read10:
		lba := uint32(cdb[2])<<24 | uint32(cdb[3])<<16 | uint32(cdb[4])<<8 | uint32(cdb[5])
		if remaining, ok := f.failOnce[lba]; ok && remaining > 0 {
			f.failOnce[lba] = remaining - 1
			return scsi.SamStatCheckCondition, errSimulatedReadFailure
		}
		off := int(lba) * disk.sectorSize
		copy(dataIn, disk.data[off:off+len(dataIn)])
		return scsi.SamStatGood, nil
	}
	return scsi.SamStatCheckCondition, errUnsupportedCDB
}

var (
	errNotPresent            = simpleErr("no device at that id")
	errSimulatedReadFailure  = simpleErr("simulated read failure")
	errUnsupportedCDB        = simpleErr("unsupported cdb in fake transport")
)

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

func TestScanIDsFindsOnlyPresentDevices(t *testing.T) {
	ft := newFakeTransport()
	ft.disks[3] = &fakeDisk{sectorSize: 512, data: make([]byte, 512*10)}

	s := NewScanner(ft, 7)
	found := s.ScanIDs(context.Background())
	if len(found) != 1 || found[0].ID != 3 {
		t.Fatalf("expected exactly one device at id 3, got %+v", found)
	}
	if found[0].SectorCount != 10 {
		t.Fatalf("expected 10 sectors, got %d", found[0].SectorCount)
	}
	if !found[0].Removable {
		t.Fatal("expected removable bit to be reported")
	}
}

func TestCloneDeviceWritesFullImage(t *testing.T) {
	ft := newFakeTransport()
	data := make([]byte, 512*20)
	for i := range data {
		data[i] = byte(i)
	}
	ft.disks[2] = &fakeDisk{sectorSize: 512, data: data}

	dir := t.TempDir()
	s := NewScanner(ft, 7)
	s.DestDir = dir
	s.MaxSectorPerTransfer = 4

	info, err := s.identify(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	result, err := s.CloneDevice(context.Background(), info)
	if err != nil {
		t.Fatal(err)
	}
	if result.SectorsCloned != 20 {
		t.Fatalf("expected 20 sectors cloned, got %d", result.SectorsCloned)
	}
	got, err := os.ReadFile(result.Path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(data) {
		t.Fatalf("expected cloned file of %d bytes, got %d", len(data), len(got))
	}
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("byte %d mismatch: want %d got %d", i, data[i], got[i])
		}
	}
}

func TestCloneDeviceRetriesThenSkipsBadSector(t *testing.T) {
	ft := newFakeTransport()
	data := make([]byte, 512*8)
	for i := range data {
		data[i] = byte(i + 1)
	}
	ft.disks[4] = &fakeDisk{sectorSize: 512, data: data}
	// Batch starting at LBA 0 fails forever (more than MaxRetries), so the
	// scanner must fall back to sector-by-sector and eventually give up
	// on sector 0 specifically.
	ft.failOnce[0] = 100

	dir := t.TempDir()
	s := NewScanner(ft, 7)
	s.DestDir = dir
	s.MaxSectorPerTransfer = 8
	s.Retry = RetryPolicy{MaxRetries: 2}

	info, err := s.identify(context.Background(), 4)
	if err != nil {
		t.Fatal(err)
	}
	result, err := s.CloneDevice(context.Background(), info)
	if err != nil {
		t.Fatal(err)
	}
	if result.BadSectorCount != 1 {
		t.Fatalf("expected exactly 1 bad sector, got %d", result.BadSectorCount)
	}
	got, err := os.ReadFile(result.Path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 512; i++ {
		if got[i] != 0 {
			t.Fatalf("expected sector 0 to be zero-filled after exhausting retries, byte %d = %d", i, got[i])
		}
	}
	if got[512] != data[512] {
		t.Fatal("expected sector 1 onward to be read correctly")
	}
}

func TestResolveFilenameNumberedCopyAvoidsCollision(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "HD3_imaged.hda"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	path, ok := ResolveFilename(dir, "HD3_imaged", ".hda", NewNumberedCopy, 1)
	if !ok {
		t.Fatal("expected a numbered copy to be found")
	}
	if path == filepath.Join(dir, "HD3_imaged.hda") {
		t.Fatal("expected a different path than the existing file")
	}
}

func TestResolveFilenameStopIfExistsRefuses(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "HD3_imaged.hda"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	_, ok := ResolveFilename(dir, "HD3_imaged", ".hda", StopIfExists, 0)
	if ok {
		t.Fatal("expected StopIfExists to refuse an already-existing file")
	}
}

package bus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zuluscsi/scsicore/command"
	"github.com/zuluscsi/scsicore/phy"
	"github.com/zuluscsi/scsicore/pipeline"
	"github.com/zuluscsi/scsicore/scsi"
	"github.com/zuluscsi/scsicore/store"
)

func newPrefetchTestBus(t *testing.T, imageSize int) (*Bus, *phy.SimPort, *fakeInitiator) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image.bin")
	data := make([]byte, imageSize)
	for i := range data {
		data[i] = byte(i)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	fs := &store.FileStore{Path: path, Writable: true}
	if err := fs.Open(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { fs.Close() })

	b, port, fi := newTestBus(t)
	b.Targets[0].Image = fs
	b.Targets[0].Geometry.CapacityLBA = int64(imageSize) / 512
	b.Targets[0].Geometry.BytesPerSector = 512
	b.Targets[0].PrefetchBytes = 512
	b.Prefetch = pipeline.NewPrefetch()
	return b, port, fi
}

// TestPrefetchReadAheadAndInvalidateOnWrite exercises maybeFillPrefetch and
// maybeInvalidatePrefetch directly, the two halves runCommand wires around
// command.Dispatch on the generic buffered path (spec.md §4.7): a completed
// READ caches the bytes immediately after it, and a subsequent successful
// WRITE to the same LUN drops that cache.
func TestPrefetchReadAheadAndInvalidateOnWrite(t *testing.T) {
	b, _, _ := newPrefetchTestBus(t, 4096)
	tgt := b.Targets[0]
	readCDB := []byte{scsi.Read6, 0, 0, 0, 1, 0} // read LBA 0, 1 block of 512 bytes

	b.maybeFillPrefetch(tgt, 0, readCDB, 512)

	data, ok := b.Prefetch.Take(0, 1, 512, 512)
	if !ok {
		t.Fatal("expected a prefetch entry for LBA 1 after reading LBA 0")
	}
	want := make([]byte, 512)
	for i := range want {
		want[i] = byte(512 + i)
	}
	for i := range want {
		if data[i] != want[i] {
			t.Fatalf("prefetched byte %d = 0x%x, want 0x%x", i, data[i], want[i])
		}
	}

	b.maybeFillPrefetch(tgt, 0, readCDB, 512)
	writeCDB := []byte{scsi.Write6, 0, 0, 0, 1, 0}
	goodResp := command.Response{Status: scsi.SamStatGood}
	b.maybeInvalidatePrefetch(0, scsi.Write6, writeCDB, goodResp)

	if _, ok := b.Prefetch.Take(0, 1, 512, 512); ok {
		t.Fatal("expected the prefetch entry to be invalidated after a successful write")
	}
}

// TestPrefetchInvalidatedOnEjectCDB verifies the eject trigger spec.md §4.7
// names: LOEJ=1/START=0 drops whatever was cached for that LUN.
func TestPrefetchInvalidatedOnEjectCDB(t *testing.T) {
	b, _, _ := newPrefetchTestBus(t, 4096)
	tgt := b.Targets[0]
	readCDB := []byte{scsi.Read6, 0, 0, 0, 1, 0}
	b.maybeFillPrefetch(tgt, 0, readCDB, 512)

	ejectCDB := []byte{scsi.StartStop, 0, 0, 0, 0x02, 0} // LOEJ=1, START=0
	goodResp := command.Response{Status: scsi.SamStatGood}
	b.maybeInvalidatePrefetch(0, scsi.StartStop, ejectCDB, goodResp)

	if _, ok := b.Prefetch.Take(0, 1, 512, 512); ok {
		t.Fatal("expected the prefetch entry to be invalidated after an eject")
	}
}

// TestPrefetchInvalidatedOnOutOfRangeSeek verifies a failed SEEK (the
// out-of-range case, not a successful in-range one) invalidates the cache.
func TestPrefetchInvalidatedOnOutOfRangeSeek(t *testing.T) {
	b, _, _ := newPrefetchTestBus(t, 4096)
	tgt := b.Targets[0]
	readCDB := []byte{scsi.Read6, 0, 0, 0, 1, 0}
	b.maybeFillPrefetch(tgt, 0, readCDB, 512)

	seekCDB := []byte{scsi.Seek6, 0, 0xff, 0xff, 0, 0}
	failResp := command.Response{Status: scsi.SamStatCheckCondition}
	b.maybeInvalidatePrefetch(0, scsi.Seek6, seekCDB, failResp)

	if _, ok := b.Prefetch.Take(0, 1, 512, 512); ok {
		t.Fatal("expected the prefetch entry to be invalidated after an out-of-range seek")
	}
}

// TestPrefetchServedEndToEndOverBus drives two full READ(6) commands
// through serveOne: the second, starting exactly where the first left off,
// must come back with the same bytes the backing store holds, whether or
// not it actually hit the cache.
func TestPrefetchServedEndToEndOverBus(t *testing.T) {
	b, port, fi := newPrefetchTestBus(t, 4096)

	first := []byte{scsi.Read6, 0, 0, 0, 1, 0}  // LBA 0, 1 block
	second := []byte{scsi.Read6, 0, 0, 1, 1, 0} // LBA 1, 1 block

	status, data := runOneCommand(t, b, port, fi, first, nil, 512)
	if status != scsi.SamStatGood {
		t.Fatalf("first read failed: 0x%x", status)
	}
	for i := range data {
		if data[i] != byte(i) {
			t.Fatalf("first read byte %d = 0x%x, want 0x%x", i, data[i], byte(i))
		}
	}

	status, data = runOneCommand(t, b, port, fi, second, nil, 512)
	if status != scsi.SamStatGood {
		t.Fatalf("second read failed: 0x%x", status)
	}
	for i := range data {
		want := byte(512 + i)
		if data[i] != want {
			t.Fatalf("second read byte %d = 0x%x, want 0x%x", i, data[i], want)
		}
	}
}

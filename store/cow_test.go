package store

import (
	"bytes"
	"crypto/md5"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func newCowFixture(t *testing.T, size int64) (*CowStore, []byte) {
	t.Helper()
	dir := t.TempDir()
	base := make([]byte, size)
	rand.New(rand.NewSource(42)).Read(base)
	basePath := filepath.Join(dir, "img.cow")
	if err := os.WriteFile(basePath, base, 0644); err != nil {
		t.Fatal(err)
	}
	overlayPath := filepath.Join(dir, "img.tmp")

	c := &CowStore{BasePath: basePath, OverlayPath: overlayPath, BlockSize: 512}
	if err := c.Open(); err != nil {
		t.Fatal(err)
	}
	return c, base
}

func TestCowWriteIsolation(t *testing.T) {
	const size = 1 << 20 // 1 MiB
	c, base := newCowFixture(t, size)
	defer c.Close()

	lba42 := int64(42 * 512)
	pattern := bytes.Repeat([]byte{0xCC}, 512)
	if _, err := c.WriteAt(pattern, lba42); err != nil {
		t.Fatal(err)
	}

	got := make([]byte, 512)
	if _, err := c.ReadAt(got, lba42); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, pattern) {
		t.Fatal("expected written pattern back from lba 42")
	}

	// Neighboring sectors must still show base content.
	for _, lba := range []int64{41, 43} {
		off := lba * 512
		if _, err := c.ReadAt(got, off); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, base[off:off+512]) {
			t.Fatalf("lba %d should still read base content", lba)
		}
	}

	// Base file on disk must be byte-for-byte unchanged.
	onDisk, err := os.ReadFile(c.BasePath)
	if err != nil {
		t.Fatal(err)
	}
	if md5.Sum(onDisk) != md5.Sum(base) {
		t.Fatal("cow write mutated the base file")
	}
}

func TestCowPartialGroupWritePreservesNeighbors(t *testing.T) {
	const size = 64 * 1024
	c, base := newCowFixture(t, size)
	defer c.Close()

	// Force a multi-block group so a sub-group write exercises the
	// partial-copy steps.
	c.groupSize = 4096
	c.groups = ceilDiv(size, 4096)
	c.bitmap = make([]byte, ceilDiv(c.groups, 8))

	// Write only the first 512 bytes of a 4096-byte group.
	pattern := bytes.Repeat([]byte{0x55}, 512)
	if _, err := c.WriteAt(pattern, 4096); err != nil {
		t.Fatal(err)
	}

	got := make([]byte, 4096)
	if _, err := c.ReadAt(got, 4096); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got[:512], pattern) {
		t.Fatal("expected written bytes at start of group")
	}
	if !bytes.Equal(got[512:], base[4096+512:4096+4096]) {
		t.Fatal("expected untouched remainder of group to read as base bytes")
	}
}

func TestCowReadIdempotenceAcrossManyWrites(t *testing.T) {
	const size = 256 * 1024
	c, _ := newCowFixture(t, size)
	defer c.Close()

	rng := rand.New(rand.NewSource(7))
	written := map[int64][]byte{}
	for i := 0; i < 50; i++ {
		lba := int64(rng.Intn(size/512 - 1))
		buf := make([]byte, 512)
		rng.Read(buf)
		if _, err := c.WriteAt(buf, lba*512); err != nil {
			t.Fatal(err)
		}
		written[lba] = buf
	}
	for lba, want := range written {
		got := make([]byte, 512)
		if _, err := c.ReadAt(got, lba*512); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("lba %d: readback mismatch", lba)
		}
	}
}

func TestCowBitmapAllocationFailsOpenReadOnlyBelowFloor(t *testing.T) {
	c, _ := newCowFixture(t, 1<<20)
	defer c.Close()
	if err := c.allocateBitmap(minBitmapCapBytes / 2); err != nil {
		t.Fatal(err)
	}
	if !c.overlayRO {
		t.Fatal("expected overlay to fail open read-only below the bitmap cap floor")
	}
	if c.IsWritable() {
		t.Fatal("IsWritable should report false once overlayRO is set")
	}
}

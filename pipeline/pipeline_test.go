package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zuluscsi/scsicore/phy"
	"github.com/zuluscsi/scsicore/store"
)

func newFileFixture(t *testing.T, data []byte) *store.FileStore {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "img.bin")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	fs := &store.FileStore{Path: path, Writable: true, BlockSize: 512}
	if err := fs.Open(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { fs.Close() })
	return fs
}

func TestReaderStreamsFullRangeAcrossRingWrap(t *testing.T) {
	payload := make([]byte, ringSize*3+777)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	fs := newFileFixture(t, payload)
	port := phy.NewSimPort()

	r := &Reader{Store: fs, Port: port, Offset: 0, Total: int64(len(payload))}

	got := make([]byte, 0, len(payload))
	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	timeout := time.After(5 * time.Second)
	for len(got) < len(payload) {
		select {
		case b := <-port.TargetToInitiator():
			got = append(got, b)
		case <-timeout:
			t.Fatal("timed out waiting for reader to drain")
		}
	}
	if err := <-done; err != nil {
		t.Fatalf("reader run failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("bytes that reached the wire do not match the source image")
	}
	if r.BytesDone() != uint64(len(payload)) {
		t.Fatalf("expected BytesDone %d, got %d", len(payload), r.BytesDone())
	}
}

func TestWriterStreamsFullRangeAcrossRingWrap(t *testing.T) {
	dest := make([]byte, ringSize*2+500)
	fs := newFileFixture(t, dest)
	port := phy.NewSimPort()

	payload := make([]byte, len(dest))
	for i := range payload {
		payload[i] = byte(i * 3)
	}

	w := &Writer{Store: fs, Port: port, Offset: 0, Total: int64(len(payload)), MinSDWrite: 256, MaxSDWrite: 4096}
	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	go func() {
		for _, b := range payload {
			port.InitiatorToTarget() <- b
		}
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("writer run failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for writer to finish")
	}

	got := make([]byte, len(payload))
	if _, err := fs.ReadAt(got, 0); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("bytes written to the backing store do not match the host payload")
	}
}

func TestPrefetchHitAndInvalidation(t *testing.T) {
	p := NewPrefetch()
	data := []byte("cached-sector-data")
	p.Fill(0, 100, 512, data)

	got, ok := p.Take(0, 100, 512, len(data))
	if !ok || !bytes.Equal(got, data) {
		t.Fatal("expected exact-match prefetch hit")
	}

	// Consumed entries don't hit twice.
	if _, ok := p.Take(0, 100, 512, len(data)); ok {
		t.Fatal("expected prefetch entry to be consumed by Take")
	}

	p.Fill(1, 200, 512, data)
	p.Invalidate(1)
	if _, ok := p.Take(1, 200, 512, len(data)); ok {
		t.Fatal("expected invalidated entry to miss")
	}
}

func TestPrefetchMissOnLBAMismatch(t *testing.T) {
	p := NewPrefetch()
	p.Fill(0, 100, 512, []byte("abc"))
	if _, ok := p.Take(0, 101, 512, 3); ok {
		t.Fatal("expected miss for a different starting LBA")
	}
}

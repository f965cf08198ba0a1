package tape

import (
	"bytes"
	"path/filepath"
	"testing"
)

func newSimhFixture(t *testing.T) *SimhTape {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image.tap")
	tp, err := OpenSimhTape(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { tp.Close() })
	return tp
}

func TestSimhWriteThenReadForwardRoundTrip(t *testing.T) {
	tp := newSimhFixture(t)
	records := [][]byte{
		[]byte("hello"),
		[]byte("a longer second record of data"),
		[]byte("odd"), // odd length, exercises the padding byte
	}
	for _, r := range records {
		if err := tp.WriteRecord(r); err != nil {
			t.Fatal(err)
		}
	}
	if err := tp.WriteFilemarks(1); err != nil {
		t.Fatal(err)
	}

	if err := tp.Rewind(); err != nil {
		t.Fatal(err)
	}
	for _, want := range records {
		buf := make([]byte, 64)
		n, recLen, res, err := tp.ReadForward(buf)
		if err != nil {
			t.Fatal(err)
		}
		if res != ResultOK {
			t.Fatalf("expected ResultOK, got %v", res)
		}
		if recLen != len(want) || !bytes.Equal(buf[:n], want) {
			t.Fatalf("record mismatch: want %q got %q (recLen=%d)", want, buf[:n], recLen)
		}
	}
	_, _, res, err := tp.ReadForward(make([]byte, 64))
	if err != nil {
		t.Fatal(err)
	}
	if res != ResultFilemark {
		t.Fatalf("expected filemark after last record, got %v", res)
	}
	_, _, res, err = tp.ReadForward(make([]byte, 64))
	if err != nil {
		t.Fatal(err)
	}
	if res != ResultEndOfMedium {
		t.Fatalf("expected end-of-medium past the filemark, got %v", res)
	}
}

func TestSimhReadBackwardMirrorsForward(t *testing.T) {
	tp := newSimhFixture(t)
	records := [][]byte{[]byte("first"), []byte("second record"), []byte("third!")}
	for _, r := range records {
		if err := tp.WriteRecord(r); err != nil {
			t.Fatal(err)
		}
	}

	// tp.pos now sits right after the last record; read backward should
	// walk the records in reverse order.
	for i := len(records) - 1; i >= 0; i-- {
		buf := make([]byte, 64)
		n, recLen, res, err := tp.ReadBackward(buf)
		if err != nil {
			t.Fatal(err)
		}
		if res != ResultOK {
			t.Fatalf("expected ResultOK at record %d, got %v", i, res)
		}
		want := records[i]
		if recLen != len(want) || !bytes.Equal(buf[:n], want) {
			t.Fatalf("record %d mismatch: want %q got %q", i, want, buf[:n])
		}
	}
	_, _, res, err := tp.ReadBackward(make([]byte, 64))
	if err != nil {
		t.Fatal(err)
	}
	if res != ResultBeginningOfTape {
		t.Fatalf("expected beginning-of-tape, got %v", res)
	}
}

func TestSimhFixedBlockModeRejectsMismatchedLength(t *testing.T) {
	tp := newSimhFixture(t)
	tp.FixedBlockSize = 512
	if err := tp.WriteRecord(make([]byte, 512)); err != nil {
		t.Fatal(err)
	}
	if err := tp.WriteRecord(make([]byte, 256)); err != nil {
		t.Fatal(err)
	}
	if err := tp.Rewind(); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 512)
	if _, _, _, err := tp.ReadForward(buf); err != nil {
		t.Fatalf("expected the matching 512-byte record to succeed: %v", err)
	}
	if _, _, _, err := tp.ReadForward(buf); err == nil {
		t.Fatal("expected fixed-block mismatch on the 256-byte record")
	}
}

func TestSimhVariableModeReportsResidualViaShortBuffer(t *testing.T) {
	tp := newSimhFixture(t)
	if err := tp.WriteRecord([]byte("twelve bytes")); err != nil {
		t.Fatal(err)
	}
	if err := tp.Rewind(); err != nil {
		t.Fatal(err)
	}
	small := make([]byte, 4)
	n, recLen, res, err := tp.ReadForward(small)
	if err != nil {
		t.Fatal(err)
	}
	if res != ResultOK {
		t.Fatalf("expected ResultOK, got %v", res)
	}
	if n != 4 {
		t.Fatalf("expected only 4 bytes copied into the short buffer, got %d", n)
	}
	if recLen != len("twelve bytes") {
		t.Fatalf("expected recordLen to report the full record size for ILI residual math, got %d", recLen)
	}
}

func TestSimhSpaceFilemarksSkipsOverDataRecords(t *testing.T) {
	tp := newSimhFixture(t)
	if err := tp.WriteRecord([]byte("rec1")); err != nil {
		t.Fatal(err)
	}
	if err := tp.WriteRecord([]byte("rec2")); err != nil {
		t.Fatal(err)
	}
	if err := tp.WriteFilemarks(1); err != nil {
		t.Fatal(err)
	}
	if err := tp.WriteRecord([]byte("rec3")); err != nil {
		t.Fatal(err)
	}
	if err := tp.WriteFilemarks(1); err != nil {
		t.Fatal(err)
	}
	if err := tp.Rewind(); err != nil {
		t.Fatal(err)
	}

	actual, res, err := tp.Space(SpaceFilemarks, 2)
	if err != nil {
		t.Fatal(err)
	}
	if res != ResultOK || actual != 2 {
		t.Fatalf("expected to land exactly on the second filemark, got actual=%d res=%v", actual, res)
	}

	buf := make([]byte, 16)
	_, _, res, err = tp.ReadForward(buf)
	if err != nil {
		t.Fatal(err)
	}
	if res != ResultEndOfMedium {
		t.Fatalf("expected end-of-medium right after the second filemark, got %v", res)
	}
}

func TestSimhEraseLongTruncatesAndMarksEOM(t *testing.T) {
	tp := newSimhFixture(t)
	if err := tp.WriteRecord([]byte("keep")); err != nil {
		t.Fatal(err)
	}
	if err := tp.WriteRecord([]byte("discarded")); err != nil {
		t.Fatal(err)
	}

	if err := tp.Rewind(); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 16)
	if _, _, _, err := tp.ReadForward(buf); err != nil {
		t.Fatal(err)
	}
	// tp.pos now sits right after the "keep" record.
	if err := tp.EraseLong(); err != nil {
		t.Fatal(err)
	}

	if err := tp.Rewind(); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := tp.ReadForward(buf); err != nil {
		t.Fatal(err)
	}
	_, _, res, err := tp.ReadForward(buf)
	if err != nil {
		t.Fatal(err)
	}
	if res != ResultEndOfMedium {
		t.Fatalf("expected end-of-medium after erase, got %v", res)
	}
}

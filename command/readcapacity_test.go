package command

import (
	"encoding/binary"
	"testing"
)

func TestReadCapacity10ReportsLastLBAAndBlockSize(t *testing.T) {
	tgt := newFixtureTarget(t, 40960) // 20 MiB / 512
	cdb := []byte{0x25, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	cmd, vecs := newCmd(cdb, 8, tgt)

	resp := Dispatch(cmd)
	if resp.Status != scsiStatGood {
		t.Fatalf("read capacity failed: status 0x%x", resp.Status)
	}
	lastLBA := binary.BigEndian.Uint32(vecs[0][0:4])
	bs := binary.BigEndian.Uint32(vecs[0][4:8])
	if lastLBA != 40959 {
		t.Fatalf("expected last LBA 40959, got %d", lastLBA)
	}
	if bs != 512 {
		t.Fatalf("expected block size 512, got %d", bs)
	}
}

func TestReadCapacity10NoMediumFails(t *testing.T) {
	tgt := newFixtureTarget(t, 8)
	tgt.SetEjected(true)
	cdb := []byte{0x25, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	cmd, _ := newCmd(cdb, 8, tgt)
	resp := Dispatch(cmd)
	if resp.Status != scsiStatCheckCondition {
		t.Fatal("expected read capacity against ejected medium to fail")
	}
}

func TestAppleGeometryTestVector(t *testing.T) {
	heads, spt := AppleGeometry(20 * 1024 * 1024)
	if heads != 1 || spt != 32 {
		t.Fatalf("expected (1, 32) for 20 MiB image, got (%d, %d)", heads, spt)
	}
}

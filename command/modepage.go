package command

import (
	"bytes"
	"encoding/binary"

	"github.com/zuluscsi/scsicore/target"
)

// cachingModePage writes the 20-byte caching mode page (0x08), mirroring
// the teacher's CachingModePage (cmd_handler.go): byte 2 bit 2 is the
// write-cache-enabled flag.
func cachingModePage(w *bytes.Buffer, wce bool) {
	buf := make([]byte, 20)
	buf[0] = 0x08
	buf[1] = 0x12
	if wce {
		buf[2] |= 0x04
	}
	w.Write(buf)
}

// rigidGeometryModePage writes the rigid disk geometry page (0x04): number
// of cylinders and heads, derived from the target's reported geometry
// (spec.md §4.5/§4.6 — hosts like classic Mac OS probe this page to learn
// CHS geometry for partition maps).
func rigidGeometryModePage(w *bytes.Buffer, g target.Geometry) {
	buf := make([]byte, 24)
	buf[0] = 0x04
	buf[1] = 0x16
	cyls := 0
	if g.HeadsPerCylinder > 0 && g.SectorsPerTrack > 0 {
		perCyl := int64(g.HeadsPerCylinder * g.SectorsPerTrack)
		if perCyl > 0 {
			cyls = int(g.CapacityLBA / perCyl)
		}
	}
	buf[2] = byte(cyls >> 16)
	buf[3] = byte(cyls >> 8)
	buf[4] = byte(cyls)
	buf[5] = byte(g.HeadsPerCylinder)
	w.Write(buf)
}

// cdCapabilitiesModePage writes the MMC CD capabilities/mechanism status
// page (0x2A), reporting read-only CD-ROM support (spec.md §4.6).
func cdCapabilitiesModePage(w *bytes.Buffer) {
	buf := make([]byte, 8)
	buf[0] = 0x2a
	buf[1] = 0x06
	buf[2] = 0x01 // CD-R read
	w.Write(buf)
}

// effectiveGeometry substitutes AppleGeometry's fabricated heads/
// sectors-per-track whenever tgt carries the Apple quirk and the
// configured geometry doesn't already specify both, so the rigid-geometry
// mode page passes Mac OS's CHS sanity check (spec.md §4.6, §9) instead of
// reporting cylinders=0/heads=0 for an otherwise-unconfigured drive.
func effectiveGeometry(tgt *target.Target) target.Geometry {
	g := tgt.Geometry
	if tgt.Quirks&target.QuirkApple == 0 {
		return g
	}
	if g.HeadsPerCylinder != 0 && g.SectorsPerTrack != 0 {
		return g
	}
	bs := g.BytesPerSector
	if bs == 0 {
		bs = 512
	}
	heads, spt := AppleGeometry(g.CapacityLBA * int64(bs))
	g.HeadsPerCylinder = heads
	g.SectorsPerTrack = spt
	return g
}

// emulateModeSense answers MODE_SENSE(6)/(10) for the geometry (0x03/0x04),
// caching (0x08), and CD capabilities (0x2A) pages, or all of them for
// page code 0x3f, following the teacher's EmulateModeSense structure.
func emulateModeSense(cmd *Cmd) Response {
	tgt := cmd.Target()
	ten := cmd.Command() == 0x5a
	page := cmd.GetCDB(2) & 0x3f

	pgs := &bytes.Buffer{}
	if page == 0x3f || page == 0x04 {
		rigidGeometryModePage(pgs, effectiveGeometry(tgt))
	}
	if page == 0x3f || page == 0x08 {
		cachingModePage(pgs, true)
	}
	if (page == 0x3f || page == 0x2a) && tgt.DeviceType == target.DeviceOptical {
		cdCapabilitiesModePage(pgs)
	}

	dsp := byte(0x10) // DPO/FUA supported
	pgdata := pgs.Bytes()

	var hdr []byte
	if !ten {
		hdr = make([]byte, 4)
		hdr[0] = byte(len(pgdata) + 3)
		hdr[2] = dsp
	} else {
		hdr = make([]byte, 8)
		binary.BigEndian.PutUint16(hdr, uint16(len(pgdata)+6))
		hdr[3] = dsp
	}
	data := append(hdr, pgdata...)

	outlen := int(cmd.XferLen())
	if ten {
		outlen = int(binary.BigEndian.Uint16(cmd.cdb[7:9]))
	}
	if outlen > 0 && outlen < len(data) {
		data = data[:outlen]
	}
	if _, err := cmd.Write(data); err != nil {
		return cmd.TargetFailure()
	}
	return cmd.Ok()
}

// emulateModeSelect accepts only a page identical to what emulateModeSense
// would return for the caching page, matching the teacher's
// "we don't support actually setting anything, only round-tripping" policy.
func emulateModeSelect(cmd *Cmd) Response {
	ten := cmd.Command() == 0x55
	hdrLen := 4
	if ten {
		hdrLen = 8
	}

	allocLen := cmd.XferLen()
	if ten {
		allocLen = uint32(binary.BigEndian.Uint16(cmd.cdb[7:9]))
	}
	if allocLen == 0 {
		return cmd.Ok()
	}

	// Size the scratch buffer to the declared parameter list length
	// exactly: the host's data phase carries precisely that many bytes.
	inBuf := make([]byte, allocLen)
	n, err := cmd.Read(inBuf)
	if err != nil && n < int(allocLen) {
		return cmd.TargetFailure()
	}

	if cmd.GetCDB(1)&0x10 == 0 || cmd.GetCDB(1)&0x01 != 0 {
		return cmd.IllegalRequest()
	}

	// MODE SELECT carries no page code in its CDB: the page being set is
	// named by the first byte after the parameter header.
	if n <= hdrLen || inBuf[hdrLen]&0x3f != 0x08 {
		return cmd.IllegalRequest()
	}
	expect := &bytes.Buffer{}
	cachingModePage(expect, true)
	want := expect.Bytes()
	if n < hdrLen+len(want) || !bytes.Equal(inBuf[hdrLen:hdrLen+len(want)], want) {
		return cmd.IllegalRequest()
	}
	return cmd.Ok()
}

package command

import (
	"encoding/binary"

	"github.com/zuluscsi/scsicore/scsi"
	"github.com/zuluscsi/scsicore/target"
)

// Direction indicates which way a CDB's data phase moves data, if any.
type Direction int

const (
	DirNone Direction = iota
	DirIn
	DirOut
)

// TransferLength reports the data-phase direction and byte length a CDB
// implies, without needing a Cmd (and so without needing the data buffer
// to exist yet). Package bus calls this to size and orient a command's
// data phase before it can build the Cmd it hands to Dispatch.
func TransferLength(tgt *target.Target, cdb []byte) (Direction, int) {
	if len(cdb) == 0 {
		return DirNone, 0
	}
	order := binary.BigEndian
	bs := 512
	if tgt != nil && tgt.Geometry.BytesPerSector != 0 {
		bs = tgt.Geometry.BytesPerSector
	}
	if tgt != nil && tgt.DeviceType == target.DeviceSequential {
		if dir, n, ok := tapeTransferLength(cdb, bs); ok {
			return dir, n
		}
	}

	switch cdb[0] {
	case scsi.Read6, scsi.Write6:
		if len(cdb) < 5 {
			return DirNone, 0
		}
		return directionOf(cdb[0], scsi.Write6), int(cdb[4]) * bs
	case scsi.Read10, scsi.Write10:
		if len(cdb) < 9 {
			return DirNone, 0
		}
		return directionOf(cdb[0], scsi.Write10), int(order.Uint16(cdb[7:9])) * bs
	case scsi.Read12, scsi.Write12:
		if len(cdb) < 10 {
			return DirNone, 0
		}
		return directionOf(cdb[0], scsi.Write12), int(order.Uint32(cdb[6:10])) * bs
	case scsi.Read16, scsi.Write16:
		if len(cdb) < 14 {
			return DirNone, 0
		}
		return directionOf(cdb[0], scsi.Write16), int(order.Uint32(cdb[10:14])) * bs
	case scsi.Inquiry, scsi.RequestSense, scsi.ModeSense:
		if len(cdb) < 5 {
			return DirNone, 0
		}
		return DirIn, int(cdb[4])
	case scsi.ModeSense10:
		if len(cdb) < 9 {
			return DirNone, 0
		}
		return DirIn, int(order.Uint16(cdb[7:9]))
	case scsi.ModeSelect:
		if len(cdb) < 5 {
			return DirNone, 0
		}
		return DirOut, int(cdb[4])
	case scsi.ModeSelect10:
		if len(cdb) < 9 {
			return DirNone, 0
		}
		return DirOut, int(order.Uint16(cdb[7:9]))
	case scsi.ReadCapacity:
		return DirIn, 8
	case scsi.ReadToc:
		if len(cdb) < 9 {
			return DirNone, 0
		}
		return DirIn, int(order.Uint16(cdb[7:9]))
	default:
		return DirNone, 0
	}
}

func directionOf(opcode, writeOpcode byte) Direction {
	if opcode == writeOpcode {
		return DirOut
	}
	return DirIn
}

// tapeTransferLength reinterprets READ(6)/WRITE(6) for a sequential-access
// LUN: byte 1 bit 0 selects fixed-block mode (bytes 2-4 count blocks of bs
// bytes each) versus variable mode (bytes 2-4 are the single record's max
// byte length directly). Every other opcode falls through to the
// direct-access table unchanged — tape devices still answer INQUIRY,
// REQUEST_SENSE, and the other shared opcodes the ordinary way.
func tapeTransferLength(cdb []byte, bs int) (Direction, int, bool) {
	if len(cdb) < 5 {
		return DirNone, 0, false
	}
	length := int(cdb[2])<<16 | int(cdb[3])<<8 | int(cdb[4])
	fixed := cdb[1]&1 != 0
	switch cdb[0] {
	case scsi.Read6:
		if fixed {
			return DirIn, length * bs, true
		}
		return DirIn, length, true
	case scsi.Write6:
		if fixed {
			return DirOut, length * bs, true
		}
		return DirOut, length, true
	default:
		return DirNone, 0, false
	}
}

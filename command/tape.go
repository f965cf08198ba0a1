package command

import (
	"github.com/zuluscsi/scsicore/scsi"
	"github.com/zuluscsi/scsicore/sense"
	"github.com/zuluscsi/scsicore/tape"
	"github.com/zuluscsi/scsicore/target"
)

// dispatchTape handles the sequential-access (SSC) opcode set for a
// DeviceSequential LUN whose Medium is attached, delegating all
// position/record bookkeeping to package tape. ok is false for any opcode
// this function doesn't recognize, letting Dispatch fall through to the
// generic (direct-access) table — REQUEST_SENSE, INQUIRY, and
// TEST_UNIT_READY stay on that shared path since they don't touch the
// medium.
func dispatchTape(cmd *Cmd, tgt *target.Target) (resp Response, ok bool) {
	if tgt.Medium == nil {
		return Response{}, false
	}
	switch cmd.Command() {
	case scsi.Read6:
		return emulateTapeRead(cmd, tgt), true
	case scsi.Write6:
		return emulateTapeWrite(cmd, tgt), true
	case scsi.TapeRewind:
		return emulateTapeRewind(cmd, tgt), true
	case scsi.TapeWriteFilemarks:
		return emulateTapeWriteFilemarks(cmd, tgt), true
	case scsi.TapeSpace:
		return emulateTapeSpace(cmd, tgt), true
	case scsi.TapeErase:
		return emulateTapeErase(cmd, tgt), true
	case scsi.TapeReadBlockLimits:
		return emulateTapeReadBlockLimits(cmd), true
	case scsi.TapeVerify:
		return emulateTapeVerify(cmd, tgt), true
	default:
		return Response{}, false
	}
}

func tape24(cdb []byte) int {
	return int(cdb[2])<<16 | int(cdb[3])<<8 | int(cdb[4])
}

// emulateTapeRead implements READ(6)'s sequential-access form: byte 1 bit 0
// selects fixed-block mode (bytes 2-4 count blocks of the LUN's configured
// size) versus variable mode (bytes 2-4 are a single record's max length).
// A filemark, end-of-medium, or length mismatch stops the transfer at that
// record and is reported instead of GOOD, without partial-residual
// accounting for fixed-mode multi-block reads (a real initiator practically
// always reads tape one record at a time, so this firmware never has to
// reconcile a residual count spanning several records).
func emulateTapeRead(cmd *Cmd, tgt *target.Target) Response {
	fixed := cmd.GetCDB(1)&1 != 0
	length := tape24(cmd.cdb)
	bs := int(blockSize(cmd))

	if !fixed {
		buf := cmd.scratch(length)
		n, recLen, result, err := tgt.Medium.ReadForward(buf)
		if err != nil {
			return cmd.MediumError()
		}
		if resp, done := tapeReadResult(cmd, result); done {
			return resp
		}
		if _, err := cmd.Write(buf[:n]); err != nil {
			return cmd.MediumError()
		}
		if recLen != length {
			return cmd.Fail(sense.ILIShort(uint32(length - recLen)))
		}
		return cmd.Ok()
	}

	for i := 0; i < length; i++ {
		buf := cmd.scratch(bs)
		n, recLen, result, err := tgt.Medium.ReadForward(buf)
		if err != nil {
			return cmd.MediumError()
		}
		if resp, done := tapeReadResult(cmd, result); done {
			return resp
		}
		if _, err := cmd.Write(buf[:n]); err != nil {
			return cmd.MediumError()
		}
		if recLen != bs {
			return cmd.IllegalRequest()
		}
	}
	return cmd.Ok()
}

func tapeReadResult(cmd *Cmd, result tape.Result) (Response, bool) {
	switch result {
	case tape.ResultFilemark:
		return cmd.Fail(sense.FilemarkHit()), true
	case tape.ResultEndOfMedium:
		return cmd.Fail(sense.EOMHit()), true
	default:
		return Response{}, false
	}
}

// emulateTapeWrite implements WRITE(6)'s sequential-access form, the mirror
// of emulateTapeRead's fixed/variable split.
func emulateTapeWrite(cmd *Cmd, tgt *target.Target) Response {
	fixed := cmd.GetCDB(1)&1 != 0
	length := tape24(cmd.cdb)
	bs := int(blockSize(cmd))

	if !fixed {
		buf := cmd.scratch(length)
		if _, err := cmd.Read(buf); err != nil {
			return cmd.MediumError()
		}
		if err := tgt.Medium.WriteRecord(buf); err != nil {
			return cmd.MediumError()
		}
		return cmd.Ok()
	}

	for i := 0; i < length; i++ {
		buf := cmd.scratch(bs)
		if _, err := cmd.Read(buf); err != nil {
			return cmd.MediumError()
		}
		if err := tgt.Medium.WriteRecord(buf); err != nil {
			return cmd.MediumError()
		}
	}
	return cmd.Ok()
}

func emulateTapeRewind(cmd *Cmd, tgt *target.Target) Response {
	if err := tgt.Medium.Rewind(); err != nil {
		return cmd.MediumError()
	}
	return cmd.Ok()
}

// emulateTapeWriteFilemarks implements WRITE_FILEMARKS: bytes 2-4 are a
// 24-bit filemark count, defaulting to 1 when zero.
func emulateTapeWriteFilemarks(cmd *Cmd, tgt *target.Target) Response {
	count := tape24(cmd.cdb)
	if count == 0 {
		count = 1
	}
	if err := tgt.Medium.WriteFilemarks(count); err != nil {
		return cmd.MediumError()
	}
	return cmd.Ok()
}

// emulateTapeSpace implements SPACE: byte 1 bits 0-2 select the unit
// (records/filemarks/end-of-data), bytes 2-4 are a 24-bit two's-complement
// signed count, negative meaning backward.
func emulateTapeSpace(cmd *Cmd, tgt *target.Target) Response {
	code := tape.SpaceCode(cmd.GetCDB(1) & 0x7)
	raw := tape24(cmd.cdb)
	if raw&0x800000 != 0 {
		raw -= 1 << 24
	}
	_, result, err := tgt.Medium.Space(code, raw)
	if err != nil {
		return cmd.MediumError()
	}
	switch result {
	case tape.ResultFilemark:
		return cmd.Fail(sense.FilemarkHit())
	case tape.ResultEndOfMedium:
		return cmd.Fail(sense.EOMHit())
	default:
		return cmd.Ok()
	}
}

// emulateTapeErase implements ERASE: byte 1 bit 0 ("Long") erases from the
// current position to end-of-medium; otherwise it writes a single
// erase-gap marker.
func emulateTapeErase(cmd *Cmd, tgt *target.Target) Response {
	long := cmd.GetCDB(1)&1 != 0
	var err error
	if long {
		err = tgt.Medium.EraseLong()
	} else {
		err = tgt.Medium.EraseShort()
	}
	if err != nil {
		return cmd.MediumError()
	}
	return cmd.Ok()
}

// emulateTapeReadBlockLimits implements READ BLOCK LIMITS: a fixed 6-byte
// reply giving the maximum and minimum block length this LUN accepts. This
// firmware only ever writes one fixed record size per LUN, so minimum and
// maximum are the same value.
func emulateTapeReadBlockLimits(cmd *Cmd) Response {
	bs := blockSize(cmd)
	buf := cmd.scratch(6)
	buf[0] = 0
	buf[1] = byte(bs >> 16)
	buf[2] = byte(bs >> 8)
	buf[3] = byte(bs)
	buf[4] = byte(bs >> 8)
	buf[5] = byte(bs)
	if _, err := cmd.Write(buf); err != nil {
		return cmd.MediumError()
	}
	return cmd.Ok()
}

// emulateTapeVerify implements VERIFY: byte-compare mode (byte 1 bit 1) is
// unsupported since there is no second medium to compare against; a plain
// verify just advances the position by the requested record count and
// reports success, trusting the backing store's own read-back integrity.
func emulateTapeVerify(cmd *Cmd, tgt *target.Target) Response {
	if cmd.GetCDB(1)&0x2 != 0 {
		return cmd.IllegalRequest()
	}
	fixed := cmd.GetCDB(1)&1 != 0
	length := 1
	if fixed {
		length = tape24(cmd.cdb)
	}
	_, result, err := tgt.Medium.Space(tape.SpaceRecords, length)
	if err != nil {
		return cmd.MediumError()
	}
	switch result {
	case tape.ResultFilemark:
		return cmd.Fail(sense.FilemarkHit())
	case tape.ResultEndOfMedium:
		return cmd.Fail(sense.EOMHit())
	default:
		return cmd.Ok()
	}
}

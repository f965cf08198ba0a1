package command

import (
	"github.com/prometheus/common/log"
	"github.com/zuluscsi/scsicore/scsi"
	"github.com/zuluscsi/scsicore/store"
	"github.com/zuluscsi/scsicore/target"
)

// Dispatch routes a decoded Cmd to the handler for its opcode (spec.md §4.6,
// §7). The Toolbox vendor range is handled separately by package toolbox;
// sequential-device LUNs divert READ/WRITE and the SSC position opcodes to
// dispatchTape ahead of this table, since the same opcode byte means
// something different off a tape drive than off a disk.
func Dispatch(cmd *Cmd) Response {
	tgt := cmd.Target()
	if !tgt.Active {
		// REQUEST_SENSE must still hand back whatever CHECK_CONDITION this
		// same branch latched on a prior command — an initiator always
		// follows CHECK_CONDITION with REQUEST_SENSE, and that one always
		// succeeds (spec.md §3, §9 contingent-allegiance handling).
		if cmd.Command() == scsi.RequestSense {
			return emulateRequestSense(cmd)
		}
		return cmd.Fail(notReadyNoDevice())
	}

	if tgt.DeviceType == target.DeviceSequential {
		if resp, ok := dispatchTape(cmd, tgt); ok {
			return resp
		}
	}

	switch cmd.Command() {
	case scsi.TestUnitReady:
		return emulateTestUnitReady(cmd)
	case scsi.RequestSense:
		return emulateRequestSense(cmd)
	case scsi.Inquiry:
		return emulateInquiry(cmd)
	case scsi.FormatUnit:
		return emulateFormatUnit(cmd)
	case scsi.Read6, scsi.Read10, scsi.Read12, scsi.Read16:
		return emulateRead(cmd)
	case scsi.Write6, scsi.Write10, scsi.Write12, scsi.Write16:
		return emulateWrite(cmd)
	case scsi.ModeSense, scsi.ModeSense10:
		return emulateModeSense(cmd)
	case scsi.ModeSelect, scsi.ModeSelect10:
		return emulateModeSelect(cmd)
	case scsi.StartStop:
		return emulateStartStopUnit(cmd)
	case scsi.AllowMediumRemoval:
		return emulatePreventAllowRemoval(cmd)
	case scsi.ReadCapacity:
		return emulateReadCapacity10(cmd)
	case scsi.Seek6, scsi.Seek10:
		return emulateSeek(cmd)
	case scsi.Verify:
		return emulateVerify(cmd)
	case scsi.SynchronizeCache:
		return emulateSynchronizeCache(cmd)
	case scsi.ReadToc:
		return emulateReadTOC(cmd)
	case scsi.PlayAudio10, scsi.PlayAudioMsf:
		// Audio playback is out of scope (spec.md §1 Non-goals); a
		// compliant host only issues these against an audio track we
		// report as present, so answer GOOD without moving any data.
		return cmd.Ok()
	default:
		log.Debugf("command: unhandled opcode 0x%x", cmd.Command())
		return cmd.NotHandled()
	}
}

func blockSize(cmd *Cmd) int64 {
	g := cmd.Target().Geometry
	if g.BytesPerSector != 0 {
		return int64(g.BytesPerSector)
	}
	return 512
}

func backingStore(cmd *Cmd) (store.BackingStore, Response, bool) {
	tgt := cmd.Target()
	if tgt.IsEjected() || tgt.Image == nil {
		return nil, cmd.Fail(notReadyNoMedium()), false
	}
	return tgt.Image, Response{}, true
}

package command

import "github.com/zuluscsi/scsicore/sense"

// emulateTestUnitReady reports GOOD for an attached, non-ejected LUN and
// NOT_READY otherwise (spec.md §7), following the teacher's
// EmulateTestUnitReady but adding the medium-present check the teacher's
// single fixed backing store never needed.
func emulateTestUnitReady(cmd *Cmd) Response {
	tgt := cmd.Target()
	if tgt.IsEjected() || tgt.Image == nil {
		return cmd.Fail(notReadyNoMedium())
	}
	return cmd.Ok()
}

// emulateFormatUnit accepts the command without touching any data, the
// common no-op implementation for a firmware that never reformats physical
// media (spec.md §4.6).
func emulateFormatUnit(cmd *Cmd) Response {
	if _, fail, ok := backingStore(cmd); !ok {
		return fail
	}
	return cmd.Ok()
}

// emulateStartStopUnit handles the load/eject bit (spec.md §4.5's
// eject_button_mask / rotation state): bit 1 of CDB byte 4 requests
// load/eject, bit 0 requests start/stop motor state.
func emulateStartStopUnit(cmd *Cmd) Response {
	tgt := cmd.Target()
	byte4 := cmd.GetCDB(4)
	loej := byte4&0x02 != 0
	start := byte4&0x01 != 0

	if loej {
		if start {
			tgt.SetEjected(false)
		} else {
			if err := tgt.Eject(); err != nil {
				return cmd.Fail(sense.IllegalRequest(0x2400))
			}
			tgt.MaybeReinsertAfterEject()
		}
	}
	return cmd.Ok()
}

// emulatePreventAllowRemoval acknowledges PREVENT_ALLOW_MEDIUM_REMOVAL.
// This firmware has no physical lock to engage; some hosts (classic Mac OS)
// require a GOOD response before proceeding with further commands.
func emulatePreventAllowRemoval(cmd *Cmd) Response {
	if _, fail, ok := backingStore(cmd); !ok {
		return fail
	}
	return cmd.Ok()
}

// emulateSeek validates the LBA is in range and otherwise does nothing,
// since every backing store here is random access with no seek latency to
// model (spec.md §4.6).
func emulateSeek(cmd *Cmd) Response {
	tgt := cmd.Target()
	if int64(cmd.LBA()) >= tgt.Geometry.CapacityLBA {
		return cmd.Fail(sense.IllegalRequest(0x2100))
	}
	return cmd.Ok()
}

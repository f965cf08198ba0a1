package command

import "github.com/zuluscsi/scsicore/sense"

// Response is the result of dispatching one Cmd: a SAM status byte and,
// for CHECK_CONDITION, the sense data to latch on the target (spec.md §7,
// §9 — sense is a typed Info value latched through a single Fail path,
// never constructed ad hoc per handler).
type Response struct {
	ID     uint16
	Status byte
}

// Ok builds a GOOD status response.
func (c *Cmd) Ok() Response {
	c.tgt.ClearSenseIfNotRequestSense()
	return Response{ID: c.id, Status: scsiStatGood}
}

// RespondStatus builds a response carrying an arbitrary SAM status byte.
func (c *Cmd) RespondStatus(status byte) Response {
	return Response{ID: c.id, Status: status}
}

// Fail latches info on the target and returns a CHECK_CONDITION response.
// This is the single path by which any handler reports an error, per
// spec.md §9.
func (c *Cmd) Fail(info sense.Info) Response {
	c.tgt.LatchSense(info)
	return Response{ID: c.id, Status: scsiStatCheckCondition}
}

// NotHandled reports an opcode this firmware does not emulate.
func (c *Cmd) NotHandled() Response {
	return c.Fail(sense.IllegalRequest(ascInvalidCommandOperationCode))
}

// MediumError is a preset failure for an SD/backing-store I/O error.
func (c *Cmd) MediumError() Response {
	return c.Fail(sense.MediumErr())
}

// IllegalRequest is a preset failure for a malformed or unsupported CDB.
func (c *Cmd) IllegalRequest() Response {
	return c.Fail(sense.IllegalRequest(ascInvalidFieldInCdb))
}

// TargetFailure is a preset failure for an internal/hardware error.
func (c *Cmd) TargetFailure() Response {
	return c.Fail(sense.Info{Key: 0x04, ASC: 0x44, ASCQ: 0x00, Valid: true})
}

const (
	scsiStatGood           = 0x00
	scsiStatCheckCondition = 0x02

	ascInvalidCommandOperationCode = 0x2000
	ascInvalidFieldInCdb           = 0x2400
)

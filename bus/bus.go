// Package bus implements the target-role SCSI-2 phase state machine of
// spec.md §4.1-4.2: arbitration/selection response, message negotiation,
// command dispatch, and the data/status/message-in sequence that closes
// out one nexus. It drives a phy.Port the same way initiator.PhyTransport
// drives one from the other side of the wire.
package bus

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/common/log"
	"github.com/zuluscsi/scsicore/command"
	"github.com/zuluscsi/scsicore/metrics"
	"github.com/zuluscsi/scsicore/phy"
	"github.com/zuluscsi/scsicore/pipeline"
	"github.com/zuluscsi/scsicore/scsi"
	"github.com/zuluscsi/scsicore/target"
	"github.com/zuluscsi/scsicore/toolbox"
)

// streamingThreshold is the data-phase length above which READ/WRITE on a
// direct-access LUN bypass command.Dispatch's buffer-materializing path and
// stream straight between the backing store and the wire via package
// pipeline, matching pipeline's own ring size so neither side of the split
// ever waits on a chunk bigger than the other can buffer.
const streamingThreshold = 64 * 1024

// DefaultCommandTimeout bounds how long one command (selection through bus
// free) may run before the watchdog treats it as hung (spec.md §5).
const DefaultCommandTimeout = 10 * time.Second

// Bus is one target-role endpoint: up to 8 LUNs (indexed by SCSI ID 0-7,
// unused entries left nil) sharing a single phy.Port.
type Bus struct {
	Port          phy.Port
	OurID         int
	Targets       [8]*target.Target
	Metrics       *metrics.Registry
	ToolboxSource toolbox.FileSource
	Caps          NegotiationCaps

	// Prefetch caches the bytes immediately following the last completed
	// READ on each LUN (spec.md §4.7). It is shared across every Target on
	// this Bus rather than owned per-Target, since pipeline.Prefetch keys
	// its single entry per LUN internally; nil disables read-ahead
	// entirely.
	Prefetch *pipeline.Prefetch

	// CommandTimeout overrides DefaultCommandTimeout; zero means use the
	// default.
	CommandTimeout time.Duration

	nextCmdID atomic.Uint32

	// unmapped holds one inactive, otherwise-zero target.Target per LUN
	// that has no entry in Targets, purely so an unmapped LUN can still
	// latch and later report sense data. command.Dispatch already treats
	// an inactive target as "LOGICAL_UNIT_NOT_SUPPORTED" for every opcode
	// except REQUEST_SENSE; routing the nil case through that same path,
	// rather than fabricating a bare status byte, is what lets a
	// REQUEST_SENSE following a CHECK_CONDITION on an unmapped LUN
	// actually retrieve the reason instead of re-tripping CHECK_CONDITION.
	unmapped [8]target.Target
}

// Run serves selections until ctx is canceled, handling one command per
// iteration. A single command's failure (a dropped nexus, a parity error)
// is logged and does not stop the loop; only ctx cancellation does.
func (b *Bus) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.serveOne(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Debugf("bus: command nexus ended: %v", err)
		}
	}
}

func (b *Bus) serveOne(ctx context.Context) error {
	initiatorID, err := b.Port.WaitSelection(ctx, b.OurID)
	if err != nil {
		return err
	}
	_ = initiatorID // not yet used for per-initiator negotiation state

	timeout := b.CommandTimeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	lun, err := b.messageOutPhase(cctx)
	if err != nil {
		b.Port.SetPhase(phy.PhaseBusFree)
		return err
	}

	tgt := b.Targets[lun]
	if tgt == nil {
		tgt = &b.unmapped[lun]
	}
	cdb, err := b.commandPhase(cctx)
	if err != nil {
		b.Port.SetPhase(phy.PhaseBusFree)
		return err
	}

	resp := b.runCommand(cctx, tgt, lun, cdb)

	if err := b.statusAndMessageInPhase(cctx, resp); err != nil {
		b.Port.SetPhase(phy.PhaseBusFree)
		return err
	}
	b.Port.SetPhase(phy.PhaseBusFree)
	return nil
}

// messageOutPhase reads the IDENTIFY message (and any extended message
// preceding it) and returns the addressed LUN.
func (b *Bus) messageOutPhase(ctx context.Context) (int, error) {
	b.Port.SetPhase(phy.PhaseMessageOut)
	msg := make([]byte, 1)
	if _, err := b.Port.Read(ctx, msg); err != nil {
		return 0, err
	}
	if msg[0] == scsi.MsgExtendedMessage {
		if err := b.negotiationPhase(ctx); err != nil {
			return 0, err
		}
		if _, err := b.Port.Read(ctx, msg); err != nil {
			return 0, err
		}
	}
	lun := 0
	if msg[0]&0x80 != 0 {
		lun = int(msg[0] & 0x07)
	}
	return lun, nil
}

// commandPhase reads a full CDB, deriving its length from the opcode the
// way a real initiator's controller does, so the target never has to be
// told up front how many bytes are coming.
func (b *Bus) commandPhase(ctx context.Context) ([]byte, error) {
	b.Port.SetPhase(phy.PhaseCommand)
	first := make([]byte, 1)
	if _, err := b.Port.Read(ctx, first); err != nil {
		return nil, err
	}
	opcode := first[0]
	length := scsi.CDBLen(opcode, 0)
	cdb := make([]byte, length)
	cdb[0] = opcode
	if _, err := b.Port.Read(ctx, cdb[1:]); err != nil {
		return nil, err
	}
	if opcode == 0x7f {
		extra := int(cdb[7])
		if extra > 0 {
			full := append(cdb, make([]byte, extra)...)
			if _, err := b.Port.Read(ctx, full[length:]); err != nil {
				return nil, err
			}
			cdb = full
		}
	}
	return cdb, nil
}

// runCommand sizes and runs the data phase (or hands off to a streamed
// pipeline transfer for a large direct-access READ/WRITE), dispatches the
// command, and records metrics.
func (b *Bus) runCommand(ctx context.Context, tgt *target.Target, lun int, cdb []byte) command.Response {
	opcode := cdb[0]

	if opcode >= toolbox.OpcodeRangeStart && opcode <= toolbox.OpcodeRangeEnd {
		dir, length := toolbox.TransferLength(cdb)
		vecs, err := b.dataOutPhase(ctx, dir, length)
		if err != nil {
			return command.Response{Status: scsi.SamStatCheckCondition}
		}
		cmd := command.NewCmd(b.newCmdID(), cdb, vecs, tgt, lun)
		resp := toolbox.Dispatch(cmd, b.ToolboxSource)
		if err := b.dataInPhase(ctx, dir, vecs); err != nil {
			return command.Response{Status: scsi.SamStatCheckCondition}
		}
		b.observe(opcode, resp.Status)
		return resp
	}

	// An unmapped LUN's placeholder target is never Active, so it always
	// falls through to the generic buffered path below, where
	// command.Dispatch reports LOGICAL_UNIT_NOT_SUPPORTED uniformly
	// instead of runStreamedTransfer's medium-absent sense, which is
	// meant for a real but empty/ejected LUN.
	if tgt.Active {
		if resp, handled := b.runStreamedTransfer(ctx, tgt, lun, cdb); handled {
			b.observe(opcode, resp.Status)
			return resp
		}
	}

	if tgt.Active && b.Prefetch != nil && isReadOpcode(opcode) && tgt.DeviceType != target.DeviceSequential {
		if resp, handled := b.tryPrefetchedRead(ctx, tgt, lun, cdb); handled {
			b.observe(opcode, resp.Status)
			return resp
		}
	}

	dir, length := command.TransferLength(tgt, cdb)
	vecs, err := b.dataOutPhase(ctx, dir, length)
	if err != nil {
		return command.Response{Status: scsi.SamStatCheckCondition}
	}
	cmd := command.NewCmd(b.newCmdID(), cdb, vecs, tgt, lun)
	resp := command.Dispatch(cmd)
	if err := b.dataInPhase(ctx, dir, vecs); err != nil {
		return command.Response{Status: scsi.SamStatCheckCondition}
	}

	if tgt.Active && b.Prefetch != nil && tgt.DeviceType != target.DeviceSequential {
		if resp.Status == scsi.SamStatGood && isReadOpcode(opcode) {
			b.maybeFillPrefetch(tgt, lun, cdb, length)
		}
		b.maybeInvalidatePrefetch(lun, opcode, cdb, resp)
	}

	b.observe(opcode, resp.Status)
	return resp
}

func (b *Bus) observe(opcode, status byte) {
	if b.Metrics != nil {
		b.Metrics.ObserveCommand(opcode, status)
	}
}

// dataOutPhase allocates the data buffer and, for a host->target transfer,
// receives it off the wire before the command handler ever sees it —
// replicating the precomputed-iovec contract package command inherited
// from its TCMU ancestor, where the kernel always filled DATA_OUT iovecs
// before calling the handler.
func (b *Bus) dataOutPhase(ctx context.Context, dir command.Direction, length int) ([][]byte, error) {
	if dir == command.DirNone || length == 0 {
		return nil, nil
	}
	buf := make([]byte, length)
	if dir == command.DirOut {
		b.Port.SetPhase(phy.PhaseDataOut)
		if _, err := b.Port.Read(ctx, buf); err != nil {
			return nil, err
		}
	}
	return [][]byte{buf}, nil
}

// dataInPhase transmits a target->host buffer the command handler just
// filled, the other half of the precomputed-iovec split.
func (b *Bus) dataInPhase(ctx context.Context, dir command.Direction, vecs [][]byte) error {
	if dir != command.DirIn || len(vecs) == 0 {
		return nil
	}
	b.Port.SetPhase(phy.PhaseDataIn)
	_, err := b.Port.Write(ctx, vecs[0])
	return err
}

func (b *Bus) statusAndMessageInPhase(ctx context.Context, resp command.Response) error {
	b.Port.SetPhase(phy.PhaseStatus)
	if _, err := b.Port.Write(ctx, []byte{resp.Status}); err != nil {
		return err
	}
	b.Port.SetPhase(phy.PhaseMessageIn)
	_, err := b.Port.Write(ctx, []byte{scsi.MsgCommandComplete})
	return err
}

func (b *Bus) newCmdID() uint16 {
	return uint16(b.nextCmdID.Add(1))
}

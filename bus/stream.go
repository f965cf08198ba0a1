package bus

import (
	"context"

	"github.com/zuluscsi/scsicore/command"
	"github.com/zuluscsi/scsicore/phy"
	"github.com/zuluscsi/scsicore/pipeline"
	"github.com/zuluscsi/scsicore/scsi"
	"github.com/zuluscsi/scsicore/sense"
	"github.com/zuluscsi/scsicore/target"
)

// runStreamedTransfer handles a large direct-access READ/WRITE by driving
// package pipeline directly against the backing store and the wire,
// bypassing command.Dispatch's emulateRead/emulateWrite (which materialize
// the whole transfer into one buffer) the way the teacher's fixed-size
// TCMU mailbox never had to. Small transfers and every other opcode return
// handled=false so the caller falls through to the generic buffered path;
// a sequential-device LUN's READ(6)/WRITE(6) always falls through too,
// since record framing there is dispatchTape's job, not a raw byte stream.
func (b *Bus) runStreamedTransfer(ctx context.Context, tgt *target.Target, lun int, cdb []byte) (command.Response, bool) {
	if tgt.DeviceType == target.DeviceSequential {
		return command.Response{}, false
	}
	opcode := cdb[0]
	write := opcode == scsi.Write6 || opcode == scsi.Write10 || opcode == scsi.Write12 || opcode == scsi.Write16
	read := opcode == scsi.Read6 || opcode == scsi.Read10 || opcode == scsi.Read12 || opcode == scsi.Read16
	if !write && !read {
		return command.Response{}, false
	}

	_, length := command.TransferLength(tgt, cdb)
	if length < streamingThreshold {
		return command.Response{}, false
	}

	cmd := command.NewCmd(b.newCmdID(), cdb, nil, tgt, lun)
	if tgt.IsEjected() || tgt.Image == nil {
		return cmd.Fail(sense.NotReady(scsi.AscMediumNotPresent)), true
	}
	if write && tgt.IsWriteProtected() {
		return cmd.Fail(sense.WriteProtected()), true
	}

	offset := int64(cmd.LBA()) * blockSizeFor(tgt)

	if write {
		b.Port.SetPhase(phy.PhaseDataOut)
		w := &pipeline.Writer{Store: tgt.Image, Port: b.Port, Offset: offset, Total: int64(length)}
		if err := w.Run(ctx); err != nil {
			return cmd.MediumError(), true
		}
		if b.Metrics != nil {
			b.Metrics.AddPipelineBytes("write", w.BytesDone())
		}
		if b.Prefetch != nil {
			b.Prefetch.Invalidate(lun)
		}
		return cmd.Ok(), true
	}

	b.Port.SetPhase(phy.PhaseDataIn)
	r := &pipeline.Reader{Store: tgt.Image, Port: b.Port, Offset: offset, Total: int64(length)}
	if err := r.Run(ctx); err != nil {
		return cmd.MediumError(), true
	}
	if b.Metrics != nil {
		b.Metrics.AddPipelineBytes("read", r.BytesDone())
	}
	return cmd.Ok(), true
}

func blockSizeFor(tgt *target.Target) int64 {
	if tgt.Geometry.BytesPerSector != 0 {
		return int64(tgt.Geometry.BytesPerSector)
	}
	return 512
}

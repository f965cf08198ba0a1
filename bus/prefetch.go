package bus

import (
	"context"

	"github.com/zuluscsi/scsicore/command"
	"github.com/zuluscsi/scsicore/phy"
	"github.com/zuluscsi/scsicore/scsi"
	"github.com/zuluscsi/scsicore/target"
)

func isReadOpcode(opcode byte) bool {
	switch opcode {
	case scsi.Read6, scsi.Read10, scsi.Read12, scsi.Read16:
		return true
	default:
		return false
	}
}

func isWriteOpcode(opcode byte) bool {
	switch opcode {
	case scsi.Write6, scsi.Write10, scsi.Write12, scsi.Write16:
		return true
	default:
		return false
	}
}

func isSeekOpcode(opcode byte) bool {
	return opcode == scsi.Seek6 || opcode == scsi.Seek10
}

// isEjectCDB reports whether cdb is a START STOP UNIT requesting LOEJ=1,
// START=0 — the actual eject case emulateStartStopUnit acts on, as opposed
// to LOEJ=1/START=1 (reinsert) or either bit clear.
func isEjectCDB(cdb []byte) bool {
	if len(cdb) < 5 || cdb[0] != scsi.StartStop {
		return false
	}
	return cdb[4]&0x02 != 0 && cdb[4]&0x01 == 0
}

// tryPrefetchedRead serves a READ entirely out of b.Prefetch when its LBA
// picks up exactly where the previous READ on this LUN left off (spec.md
// §4.7), skipping command.Dispatch and the backing store entirely.
// handled=false means nothing was cached for this request and the caller
// must fall through to the normal dispatch path.
func (b *Bus) tryPrefetchedRead(ctx context.Context, tgt *target.Target, lun int, cdb []byte) (command.Response, bool) {
	dir, length := command.TransferLength(tgt, cdb)
	if dir != command.DirIn || length == 0 {
		return command.Response{}, false
	}
	cmd := command.NewCmd(b.newCmdID(), cdb, nil, tgt, lun)
	data, ok := b.Prefetch.Take(lun, int64(cmd.LBA()), blockSizeFor(tgt), length)
	if !ok {
		return command.Response{}, false
	}
	b.Port.SetPhase(phy.PhaseDataIn)
	if _, err := b.Port.Write(ctx, data); err != nil {
		return command.Response{Status: scsi.SamStatCheckCondition}, true
	}
	if b.Metrics != nil {
		b.Metrics.AddPipelineBytes("read", uint64(len(data)))
	}
	return cmd.Ok(), true
}

// maybeFillPrefetch reads tgt.PrefetchBytes past a just-completed READ and
// caches it, so a sequential reader's next READ lands in tryPrefetchedRead
// instead of the backing store (spec.md §4.7). A read-ahead that falls off
// the end of the image, or a LUN with prefetch disabled, is a silent no-op.
func (b *Bus) maybeFillPrefetch(tgt *target.Target, lun int, cdb []byte, length int) {
	if b.Prefetch == nil || tgt.PrefetchBytes <= 0 || tgt.Image == nil {
		return
	}
	bs := blockSizeFor(tgt)
	cmd := command.NewCmd(0, cdb, nil, tgt, lun)
	nextLBA := int64(cmd.LBA()) + int64(length)/bs
	ahead := make([]byte, tgt.PrefetchBytes)
	n, _ := tgt.Image.ReadAt(ahead, nextLBA*bs)
	if n == 0 {
		return
	}
	b.Prefetch.Fill(lun, nextLBA, bs, ahead[:n])
}

// maybeInvalidatePrefetch drops lun's cached read-ahead on the events
// spec.md §4.7 names: a successful WRITE, an out-of-range SEEK, or an
// actual eject. A LUN-change invalidation isn't a separate case here —
// Prefetch already keys its cache per LUN, so selecting a different LUN
// can never observe another LUN's stale entry.
func (b *Bus) maybeInvalidatePrefetch(lun int, opcode byte, cdb []byte, resp command.Response) {
	if b.Prefetch == nil {
		return
	}
	switch {
	case isWriteOpcode(opcode) && resp.Status == scsi.SamStatGood:
		b.Prefetch.Invalidate(lun)
	case isSeekOpcode(opcode) && resp.Status != scsi.SamStatGood:
		b.Prefetch.Invalidate(lun)
	case isEjectCDB(cdb) && resp.Status == scsi.SamStatGood:
		b.Prefetch.Invalidate(lun)
	}
}

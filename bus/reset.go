package bus

import "github.com/zuluscsi/scsicore/sense"

// HandleReset latches a unit-attention condition on every active LUN, the
// one-shot notification spec.md §5 requires after a RST pulse so the next
// command each initiator issues surfaces it rather than silently resuming
// mid-nexus. The caller (the PHY reset interrupt, or the watchdog timeout
// in serveOne's context deadline) is responsible for clearing the port's
// own reset/phase state; this only updates target-side bookkeeping.
func (b *Bus) HandleReset() {
	for _, tgt := range b.Targets {
		if tgt != nil && tgt.Active {
			tgt.SetUnitAttention(sense.UnitAttentionReset())
		}
	}
	if b.Prefetch != nil {
		b.Prefetch.InvalidateAll()
	}
}

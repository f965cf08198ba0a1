package bus

import (
	"context"

	"github.com/zuluscsi/scsicore/phy"
	"github.com/zuluscsi/scsicore/scsi"
)

// syncPeriodUnitNs is the SDTR period field's unit: each count is 4ns,
// matching the SPI bus's transfer period resolution (spec.md §4.2).
const syncPeriodUnitNs = 4

// NegotiationCaps describes this firmware's platform limits for
// synchronous and wide transfer negotiation (spec.md §4.2).
type NegotiationCaps struct {
	MaxSyncOffset   int
	MinSyncPeriodNs int
	MaxBusWidth     int
}

// DefaultNegotiationCaps matches the asynchronous-only, 8-bit fallback a
// platform with no synchronous/wide support advertises.
func DefaultNegotiationCaps() NegotiationCaps {
	return NegotiationCaps{MaxSyncOffset: 0, MinSyncPeriodNs: 0, MaxBusWidth: 8}
}

// Negotiate resolves a host-requested synchronous/wide parameter set
// against this firmware's platform capability: offset is capped (never
// raised above our maximum), period is floored at our minimum (we never
// claim to go faster than we can), and width is capped at our maximum.
func Negotiate(caps NegotiationCaps, reqOffset, reqPeriodNs, reqWidth int) (offset, periodNs, width int) {
	offset = reqOffset
	if offset > caps.MaxSyncOffset {
		offset = caps.MaxSyncOffset
	}
	periodNs = reqPeriodNs
	if periodNs < caps.MinSyncPeriodNs {
		periodNs = caps.MinSyncPeriodNs
	}
	width = reqWidth
	if width > caps.MaxBusWidth {
		width = caps.MaxBusWidth
	}
	return offset, periodNs, width
}

// negotiationPhase handles one extended message received in MESSAGE_OUT:
// an SDTR (synchronous) or WDTR (wide) request, replying in kind with this
// firmware's negotiated counter-offer on MESSAGE_IN before control returns
// to the caller to read the IDENTIFY message that follows.
func (b *Bus) negotiationPhase(ctx context.Context) error {
	hdr := make([]byte, 1)
	if _, err := b.Port.Read(ctx, hdr); err != nil {
		return err
	}
	body := make([]byte, int(hdr[0]))
	if _, err := b.Port.Read(ctx, body); err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}

	switch body[0] {
	case scsi.MsgExtSDTR:
		if len(body) < 3 {
			return nil
		}
		reqPeriod := int(body[1]) * syncPeriodUnitNs
		reqOffset := int(body[2])
		offset, period, _ := Negotiate(b.Caps, reqOffset, reqPeriod, 8)
		b.Port.SetSync(offset, period)
		reply := []byte{scsi.MsgExtendedMessage, 3, scsi.MsgExtSDTR, byte(period / syncPeriodUnitNs), byte(offset)}
		return b.sendMessage(ctx, reply)

	case scsi.MsgExtWDTR:
		if len(body) < 2 {
			return nil
		}
		reqWidth := 8
		if body[1] >= 1 {
			reqWidth = 16
		}
		_, _, width := Negotiate(b.Caps, 0, 0, reqWidth)
		b.Port.SetBusWidth(width)
		widthExp := byte(0)
		if width > 8 {
			widthExp = 1
		}
		reply := []byte{scsi.MsgExtendedMessage, 2, scsi.MsgExtWDTR, widthExp}
		return b.sendMessage(ctx, reply)

	default:
		return b.sendMessage(ctx, []byte{scsi.MsgMessageReject})
	}
}

func (b *Bus) sendMessage(ctx context.Context, msg []byte) error {
	b.Port.SetPhase(phy.PhaseMessageIn)
	if _, err := b.Port.Write(ctx, msg); err != nil {
		return err
	}
	b.Port.SetPhase(phy.PhaseMessageOut)
	return nil
}

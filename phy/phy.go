// Package phy abstracts the physical SCSI-2 parallel bus: the wire-level
// signals, the REQ/ACK handshake, and synchronous/wide negotiation state.
// Microcontroller-specific DMA/PIO/clock back-ends are out of scope (see
// spec.md §1); this package only defines the contract a real back-end must
// satisfy, plus an in-memory SimPort for tests.
package phy

import (
	"context"
	"errors"
)

// Signal is one of the discrete control lines on the bus.
type Signal int

const (
	SignalBSY Signal = iota
	SignalSEL
	SignalCD
	SignalIO
	SignalMSG
	SignalATN
	SignalRST
	SignalREQ
	SignalACK
)

// Phase enumerates the ten discrete bus phases this package models.
type Phase int

const (
	PhaseBusFree Phase = iota
	PhaseBusBusy
	PhaseArbitration
	PhaseSelection
	PhaseCommand
	PhaseDataIn
	PhaseDataOut
	PhaseStatus
	PhaseMessageIn
	PhaseMessageOut
)

func (p Phase) String() string {
	switch p {
	case PhaseBusFree:
		return "BusFree"
	case PhaseBusBusy:
		return "BusBusy"
	case PhaseArbitration:
		return "Arbitration"
	case PhaseSelection:
		return "Selection"
	case PhaseCommand:
		return "Command"
	case PhaseDataIn:
		return "DataIn"
	case PhaseDataOut:
		return "DataOut"
	case PhaseStatus:
		return "Status"
	case PhaseMessageIn:
		return "MessageIn"
	case PhaseMessageOut:
		return "MessageOut"
	default:
		return "Unknown"
	}
}

// ErrResetAsserted is returned by Read/Write/Select when a watchdog or
// incoming bus reset aborts an in-flight transfer.
var ErrResetAsserted = errors.New("phy: bus reset asserted mid-transfer")

// Port is the contract every physical (or simulated) SCSI transceiver must
// satisfy. Bus-level code (package bus) only ever talks to a Port, never to
// hardware registers directly.
type Port interface {
	// AssertSignal/ReleaseSignal drive one control line.
	AssertSignal(s Signal)
	ReleaseSignal(s Signal)
	SignalAsserted(s Signal) bool

	// Select performs arbitration+selection for targetID, identifying
	// ourselves as initiatorID. Returns whether the target answered
	// within the selection window (~250ms per spec.md §5).
	Select(ctx context.Context, targetID, initiatorID int) (bool, error)

	// WaitSelection blocks, from the target side of the wire, until some
	// initiator selects ourID, returning that initiator's ID. Used by the
	// bus package's foreground loop; the mirror image of Select.
	WaitSelection(ctx context.Context, ourID int) (initiatorID int, err error)

	// Phase reports the bus's current phase, as last set by SetPhase.
	Phase() Phase
	SetPhase(p Phase)

	// Write/Read block on the REQ/ACK handshake, honoring ctx
	// cancellation (the watchdog reset path) and parity. They return the
	// number of bytes transferred and a non-nil error if the transfer
	// was aborted before completion.
	Write(ctx context.Context, data []byte) (int, error)
	Read(ctx context.Context, buf []byte) (int, error)

	// SetSync switches to synchronous transfer mode; offsetBytes == 0
	// means asynchronous.
	SetSync(offsetBytes int, periodNs int)
	SyncOffset() int
	SyncPeriodNs() int

	// SetBusWidth negotiates 8 or 16-bit wide transfers.
	SetBusWidth(width int)
	BusWidth() int

	// ResetRequested reports whether a bus-RST (ours or observed
	// incoming) is pending, for the hot inner handshake loop that can't
	// afford a ctx.Done() select on every byte.
	ResetRequested() bool
	ClearReset()
}

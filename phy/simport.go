package phy

import (
	"context"
	"sync"
)

// SimPort is an in-memory loopback Port used by tests and by the initiator
// engine when cloning an emulated (rather than physical) target. It stands
// in for the out-of-scope microcontroller DMA/PIO back-end: spec.md places
// the real hardware driver out of scope, but the rest of this module still
// needs something to drive against in tests.
type SimPort struct {
	mu sync.Mutex

	phase      Phase
	signals    map[Signal]bool
	syncOffset int
	syncPeriod int
	busWidth   int
	reset      bool

	// toInitiator/toTarget are the two directions of the simulated wire;
	// data written on one side is read from the other.
	toInitiator chan byte
	toTarget    chan byte

	// SelectResponder, if set, decides whether Select succeeds for a
	// given target ID (defaults to "always answers").
	SelectResponder func(targetID int) bool

	selections chan selectionEvent
}

type selectionEvent struct {
	targetID    int
	initiatorID int
}

// NewSimPort returns a ready-to-use loopback port with an 8-bit, async,
// bus-free default state.
func NewSimPort() *SimPort {
	return &SimPort{
		phase:       PhaseBusFree,
		signals:     make(map[Signal]bool),
		busWidth:    8,
		toInitiator: make(chan byte, 65536),
		toTarget:    make(chan byte, 65536),
		selections:  make(chan selectionEvent, 1),
	}
}

func (p *SimPort) AssertSignal(s Signal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signals[s] = true
	if s == SignalRST {
		p.reset = true
	}
}

func (p *SimPort) ReleaseSignal(s Signal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signals[s] = false
}

func (p *SimPort) SignalAsserted(s Signal) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signals[s]
}

func (p *SimPort) Select(ctx context.Context, targetID, initiatorID int) (bool, error) {
	p.mu.Lock()
	p.phase = PhaseSelection
	responder := p.SelectResponder
	p.mu.Unlock()
	ok := true
	if responder != nil {
		ok = responder(targetID)
	}
	if ok {
		select {
		case p.selections <- selectionEvent{targetID: targetID, initiatorID: initiatorID}:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return ok, nil
}

// WaitSelection implements Port.
func (p *SimPort) WaitSelection(ctx context.Context, ourID int) (int, error) {
	for {
		select {
		case ev := <-p.selections:
			if ev.targetID != ourID {
				continue
			}
			return ev.initiatorID, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

func (p *SimPort) Phase() Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

func (p *SimPort) SetPhase(ph Phase) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phase = ph
}

// TargetToInitiator returns the channel representing the target-to-initiator
// direction, for test harnesses wiring two SimPorts together by hand.
func (p *SimPort) TargetToInitiator() chan byte { return p.toInitiator }
func (p *SimPort) InitiatorToTarget() chan byte { return p.toTarget }

func (p *SimPort) Write(ctx context.Context, data []byte) (int, error) {
	for i, b := range data {
		if p.ResetRequested() {
			return i, ErrResetAsserted
		}
		select {
		case p.toInitiator <- b:
		case <-ctx.Done():
			return i, ctx.Err()
		}
	}
	return len(data), nil
}

func (p *SimPort) Read(ctx context.Context, buf []byte) (int, error) {
	for i := range buf {
		if p.ResetRequested() {
			return i, ErrResetAsserted
		}
		select {
		case b := <-p.toTarget:
			buf[i] = b
		case <-ctx.Done():
			return i, ctx.Err()
		}
	}
	return len(buf), nil
}

func (p *SimPort) SetSync(offsetBytes, periodNs int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.syncOffset = offsetBytes
	p.syncPeriod = periodNs
}

func (p *SimPort) SyncOffset() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.syncOffset
}

func (p *SimPort) SyncPeriodNs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.syncPeriod
}

func (p *SimPort) SetBusWidth(width int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.busWidth = width
}

func (p *SimPort) BusWidth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busWidth
}

func (p *SimPort) ResetRequested() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reset
}

func (p *SimPort) ClearReset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset = false
}

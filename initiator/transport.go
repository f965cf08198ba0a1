// Package initiator implements the drive-cloning engine of spec.md §4.9:
// scanning SCSI IDs on the bus, identifying devices, and streaming their
// contents to local image files.
package initiator

import (
	"context"
	"fmt"

	"github.com/zuluscsi/scsicore/phy"
)

// Transport runs one SCSI command to completion against a single target
// and returns its status byte. Two implementations exist: PhyTransport
// drives the bus directly through a phy.Port (this device acting as
// initiator on its own SCSI bus), and the Linux-only SGIOTransport passes
// commands through to a real SCSI generic device node.
type Transport interface {
	// RunCommand sends cdb to targetID. dataIn is filled on a DATA_IN
	// phase; dataOut is sent on a DATA_OUT phase. Exactly one of the two
	// should be non-empty for any given command. It returns the SCSI
	// status byte.
	RunCommand(ctx context.Context, targetID int, cdb []byte, dataIn []byte, dataOut []byte) (status byte, err error)
}

// PhyTransport drives commands as a SCSI-2 initiator over a phy.Port,
// following the arbitration/selection/IDENTIFY/COMMAND/DATA/STATUS/
// MESSAGE_IN phase sequence of spec.md §4.9.
type PhyTransport struct {
	Port        phy.Port
	InitiatorID int
}

const (
	msgIdentify        = 0x80
	msgCommandComplete = 0x00
)

// RunCommand implements Transport.
func (p *PhyTransport) RunCommand(ctx context.Context, targetID int, cdb []byte, dataIn []byte, dataOut []byte) (byte, error) {
	ok, err := p.Port.Select(ctx, targetID, p.InitiatorID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("initiator: target %d did not respond to selection", targetID)
	}

	status := byte(0xff)
	haveStatus := false

	for p.Port.Phase() != phy.PhaseBusFree {
		if p.Port.ResetRequested() {
			return 0, phy.ErrResetAsserted
		}
		switch p.Port.Phase() {
		case phy.PhaseMessageOut:
			if _, err := p.Port.Write(ctx, []byte{msgIdentify}); err != nil {
				return 0, err
			}
		case phy.PhaseMessageIn:
			msg := make([]byte, 1)
			if _, err := p.Port.Read(ctx, msg); err != nil {
				return 0, err
			}
			if msg[0] == msgCommandComplete {
				goto done
			}
		case phy.PhaseCommand:
			if _, err := p.Port.Write(ctx, cdb); err != nil {
				return 0, err
			}
		case phy.PhaseDataIn:
			if len(dataIn) == 0 {
				return 0, fmt.Errorf("initiator: unexpected DATA_IN phase with no receive buffer")
			}
			n, err := p.Port.Read(ctx, dataIn)
			if err != nil {
				return 0, err
			}
			if n != len(dataIn) {
				return 0, fmt.Errorf("initiator: short DATA_IN read: got %d of %d bytes", n, len(dataIn))
			}
		case phy.PhaseDataOut:
			if len(dataOut) == 0 {
				return 0, fmt.Errorf("initiator: unexpected DATA_OUT phase with no send buffer")
			}
			n, err := p.Port.Write(ctx, dataOut)
			if err != nil {
				return 0, err
			}
			if n != len(dataOut) {
				return 0, fmt.Errorf("initiator: short DATA_OUT write: got %d of %d bytes", n, len(dataOut))
			}
		case phy.PhaseStatus:
			buf := make([]byte, 1)
			if _, err := p.Port.Read(ctx, buf); err != nil {
				return 0, err
			}
			status = buf[0]
			haveStatus = true
		}
	}
done:
	if !haveStatus {
		return 0, fmt.Errorf("initiator: bus went free before a STATUS phase for target %d", targetID)
	}
	return status, nil
}

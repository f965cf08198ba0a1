//go:build linux

package initiator

import (
	"context"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// SGIOTransport sends commands through a Linux SCSI generic device node
// (/dev/sgN) via the SG_IO ioctl, for cloning a drive attached to the
// host's own SCSI/USB-SCSI controller rather than this device's emulated
// bus.
type SGIOTransport struct {
	f *os.File
}

// OpenSGIODevice opens a SCSI generic device node for use as a Transport.
// targetID passed to RunCommand is ignored — the device node already names
// one fixed target.
func OpenSGIODevice(path string) (*SGIOTransport, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("initiator: open %s: %w", path, err)
	}
	return &SGIOTransport{f: f}, nil
}

func (s *SGIOTransport) Close() error { return s.f.Close() }

const (
	sgIO            = 0x2285
	sgDxferNone     = -1
	sgDxferToDev    = -2
	sgDxferFromDev  = -3
	sgInfoOKMask    = 0x1
	sgDefaultTimeMs = 20000
)

// sgIOHdr mirrors sg_io_hdr_t from <scsi/sg.h>.
type sgIOHdr struct {
	interfaceID   int32
	dxferDir      int32
	cmdLen        uint8
	mxSbLen       uint8
	iovecCount    uint16
	dxferLen      uint32
	dxferp        uintptr
	cmdp          uintptr
	sbp           uintptr
	timeout       uint32
	flags         uint32
	packID        int32
	usrPtr        uintptr
	status        uint8
	maskedStatus  uint8
	msgStatus     uint8
	sbLenWr       uint8
	hostStatus    uint16
	driverStatus  uint16
	resid         int32
	duration      uint32
	info          uint32
}

// RunCommand implements Transport. The ctx's deadline, if any, is ignored
// beyond the fixed ioctl timeout: SG_IO blocks synchronously in the
// kernel and cannot be cancelled mid-flight.
func (s *SGIOTransport) RunCommand(ctx context.Context, _ int, cdb []byte, dataIn []byte, dataOut []byte) (byte, error) {
	senseBuf := make([]byte, 32)

	hdr := sgIOHdr{
		interfaceID: 'S',
		cmdLen:      uint8(len(cdb)),
		mxSbLen:     uint8(len(senseBuf)),
		timeout:     sgDefaultTimeMs,
		cmdp:        uintptr(unsafe.Pointer(&cdb[0])),
		sbp:         uintptr(unsafe.Pointer(&senseBuf[0])),
	}

	switch {
	case len(dataIn) > 0:
		hdr.dxferDir = sgDxferFromDev
		hdr.dxferLen = uint32(len(dataIn))
		hdr.dxferp = uintptr(unsafe.Pointer(&dataIn[0]))
	case len(dataOut) > 0:
		hdr.dxferDir = sgDxferToDev
		hdr.dxferLen = uint32(len(dataOut))
		hdr.dxferp = uintptr(unsafe.Pointer(&dataOut[0]))
	default:
		hdr.dxferDir = sgDxferNone
	}

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, s.f.Fd(), sgIO, uintptr(unsafe.Pointer(&hdr))); errno != 0 {
		return 0, fmt.Errorf("initiator: SG_IO ioctl: %w", errno)
	}
	if hdr.info&sgInfoOKMask == 0 {
		return hdr.status, fmt.Errorf("initiator: SG_IO reported status=%#02x host=%#02x driver=%#02x",
			hdr.status, hdr.hostStatus, hdr.driverStatus)
	}
	return hdr.status, nil
}

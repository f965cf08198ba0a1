package command

import "github.com/zuluscsi/scsicore/target"

// emulateInquiry dispatches between standard and EVPD inquiry, mirroring
// the teacher's EmulateInquiry (cmd_handler.go): bit 0 of CDB byte 1
// selects EVPD; a non-EVPD request with a non-zero page code is illegal.
func emulateInquiry(cmd *Cmd) Response {
	tgt := cmd.Target()
	tgt.MaybeReinsertOnInquiry()

	if (cmd.GetCDB(1) & 0x01) == 0 {
		if cmd.GetCDB(2) != 0x00 {
			return cmd.IllegalRequest()
		}
		return emulateStdInquiry(cmd, tgt)
	}
	return emulateEvpdInquiry(cmd, tgt)
}

// emulateStdInquiry builds the 36-byte standard INQUIRY response, using the
// target's device type and identity strings (spec.md §4.5).
func emulateStdInquiry(cmd *Cmd, tgt *target.Target) Response {
	tgt.ApplyAppleQuirkDefaults()

	buf := make([]byte, 36)
	buf[0] = peripheralDeviceType(tgt.DeviceType)
	if !tgt.Active {
		buf[0] = 0x7f // peripheral qualifier 3: LUN not present
	}
	if isRemovableType(tgt.DeviceType) {
		buf[1] = 0x80 // removable bit
	}
	buf[2] = 0x02 // SCSI-2
	buf[3] = 0x02 // response data format
	buf[4] = 31   // additional length
	buf[7] = 0x02 // CmdQue

	copy(buf[8:16], tgt.InquiryVendorBytes())
	copy(buf[16:32], tgt.InquiryProductBytes())
	copy(buf[32:36], tgt.InquiryRevisionBytes())

	if _, err := cmd.Write(buf); err != nil {
		return cmd.TargetFailure()
	}
	return cmd.Ok()
}

// emulateEvpdInquiry answers vendor product data pages: page 0x00 (supported
// pages list) and page 0x80 (unit serial number), the two pages a typical
// initiator probes for (adapted from the teacher's page-0x83 device-ID
// handling, simplified since this firmware has no NAA WWN to report).
func emulateEvpdInquiry(cmd *Cmd, tgt *target.Target) Response {
	switch cmd.GetCDB(2) {
	case 0x00:
		data := []byte{peripheralDeviceType(tgt.DeviceType), 0x00, 0x00, 0x02, 0x00, 0x80}
		cmd.Write(data)
		return cmd.Ok()
	case 0x80:
		serial := tgt.InquirySerialBytes()
		data := make([]byte, 4+len(serial))
		data[0] = peripheralDeviceType(tgt.DeviceType)
		data[1] = 0x80
		data[3] = byte(len(serial))
		copy(data[4:], serial)
		cmd.Write(data)
		return cmd.Ok()
	default:
		return cmd.IllegalRequest()
	}
}

func peripheralDeviceType(dt target.DeviceType) byte {
	switch dt {
	case target.DeviceOptical:
		return 0x05
	case target.DeviceSequential:
		return 0x01
	default:
		return 0x00
	}
}

func isRemovableType(dt target.DeviceType) bool {
	switch dt {
	case target.DeviceRemovable, target.DeviceOptical, target.DeviceFloppy,
		target.DeviceMagnetoOptical, target.DeviceZip100, target.DeviceZip250, target.DeviceJaz:
		return true
	default:
		return false
	}
}

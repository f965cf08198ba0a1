// Package sense implements the structured SCSI sense data described in
// spec.md's error-handling design: a small sum type per LUN, latched at
// CHECK_CONDITION and cleared only by an explicit Take, never by an
// unrelated command in passing.
package sense

import "github.com/zuluscsi/scsicore/scsi"

// Info is the pending sense state for one LUN. It is latched by whichever
// command last failed and consumed (cleared) only by REQUEST_SENSE or by a
// later command succeeding.
type Info struct {
	Key      byte
	ASC      byte
	ASCQ     byte
	Info     uint32 // residual/ILI info field
	Filemark bool
	EOM      bool
	ILI      bool
	Valid    bool // false means "no sense pending"
}

func fromASCCombined(key byte, ascCombined uint16) Info {
	return Info{
		Key:   key,
		ASC:   byte(ascCombined >> 8),
		ASCQ:  byte(ascCombined),
		Valid: true,
	}
}

// NoSense is the zero-value "nothing pending" sense.
var NoSense = Info{Key: scsi.SenseNoSense, Valid: false}

// Aborted models a transient PHY failure: parity error, ACK timeout, or a
// spurious phase change observed mid-transfer.
func Aborted() Info { return fromASCCombined(scsi.SenseAbortedCommand, scsi.AscNoAdditionalSenseInfo) }

// MediumErr models an SD read/write failure or backing-store truncation.
func MediumErr() Info { return fromASCCombined(scsi.SenseMediumError, scsi.AscReadError) }

// NotReady models an ejected LUN or absent SD card, with the caller supplied
// ASC distinguishing "no medium" from "not yet spun up".
func NotReady(ascCombined uint16) Info { return fromASCCombined(scsi.SenseNotReady, ascCombined) }

// IllegalRequest models a malformed CDB, unsupported mode page, or
// out-of-range LBA.
func IllegalRequest(ascCombined uint16) Info {
	return fromASCCombined(scsi.SenseIllegalRequest, ascCombined)
}

// WriteProtected models a write to a read-only backing store, ROM, or tape
// past its length cap.
func WriteProtected() Info {
	return fromASCCombined(scsi.SenseDataProtect, scsi.AscWriteProtected)
}

// UnitAttention models a one-shot reset/medium-change notification.
func UnitAttention(ascCombined uint16) Info {
	return fromASCCombined(scsi.SenseUnitAttention, ascCombined)
}

// UnitAttentionReset is the specific unit attention a LUN latches after a
// bus RST, matching the "POWER ON, RESET, OR BUS DEVICE RESET OCCURRED"
// additional sense code.
func UnitAttentionReset() Info {
	return UnitAttention(scsi.AscPowerOnResetOrBusReset)
}

// Recovered models a soft read error that was retried successfully.
func Recovered() Info { return fromASCCombined(scsi.SenseRecoveredError, scsi.AscNoAdditionalSenseInfo) }

// BlankCheck models a tape read running past EOM.
func BlankCheck() Info { return fromASCCombined(scsi.SenseBlankCheck, scsi.AscNoAdditionalSenseInfo) }

// FilemarkHit returns a NoSense-key sense with only the Filemark flag set,
// the shape SPACE/READ use when a filemark is encountered on an otherwise
// successful command.
func FilemarkHit() Info {
	i := fromASCCombined(scsi.SenseNoSense, scsi.AscNoAdditionalSenseInfo)
	i.Filemark = true
	return i
}

// EOMHit returns a sense with the EOM flag set, used when a tape command
// reaches end-of-medium.
func EOMHit() Info {
	i := fromASCCombined(scsi.SenseBlankCheck, scsi.AscNoAdditionalSenseInfo)
	i.EOM = true
	return i
}

// ILIShort returns a sense with the ILI flag and residual byte count set,
// used by variable-length tape reads where the host buffer doesn't match
// the record length exactly.
func ILIShort(residual uint32) Info {
	i := fromASCCombined(scsi.SenseNoSense, scsi.AscNoAdditionalSenseInfo)
	i.ILI = true
	i.Info = residual
	return i
}

// Marshal renders Info into the 18-byte fixed-format sense buffer a
// REQUEST_SENSE or CHECK_CONDITION status carries.
func (i Info) Marshal() []byte {
	buf := make([]byte, 18)
	buf[0] = 0x70 // fixed format, current errors
	flags := i.Key & 0x0f
	if i.Filemark {
		flags |= 0x80
	}
	if i.EOM {
		flags |= 0x40
	}
	if i.ILI {
		flags |= 0x20
	}
	buf[2] = flags
	buf[3] = byte(i.Info >> 24)
	buf[4] = byte(i.Info >> 16)
	buf[5] = byte(i.Info >> 8)
	buf[6] = byte(i.Info)
	buf[7] = 10 // additional sense length (18-8)
	buf[12] = i.ASC
	buf[13] = i.ASCQ
	return buf
}

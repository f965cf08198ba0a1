package metrics

import "fmt"

func opcodeLabel(opcode byte) string {
	return fmt.Sprintf("0x%02x", opcode)
}

func statusLabel(status byte) string {
	switch status {
	case 0x00:
		return "good"
	case 0x02:
		return "check_condition"
	case 0x08:
		return "busy"
	case 0x18:
		return "reservation_conflict"
	default:
		return fmt.Sprintf("0x%02x", status)
	}
}

func senseKeyLabel(key byte) string {
	switch key {
	case 0x00:
		return "no_sense"
	case 0x01:
		return "recovered_error"
	case 0x02:
		return "not_ready"
	case 0x03:
		return "medium_error"
	case 0x04:
		return "hardware_error"
	case 0x05:
		return "illegal_request"
	case 0x06:
		return "unit_attention"
	case 0x07:
		return "data_protect"
	case 0x08:
		return "blank_check"
	case 0x0b:
		return "aborted_command"
	default:
		return fmt.Sprintf("0x%02x", key)
	}
}

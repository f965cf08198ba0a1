package toolbox

import (
	"encoding/binary"

	"github.com/zuluscsi/scsicore/command"
)

// TransferLength reports the data-phase direction/length for a vendor CDB
// in OpcodeRangeStart..OpcodeRangeEnd, mirroring Dispatch's own per-opcode
// field layout so the bus layer can size the phase buffer before it builds
// the Cmd it hands to Dispatch.
func TransferLength(cdb []byte) (command.Direction, int) {
	if len(cdb) < 2 {
		return command.DirNone, 0
	}
	switch cdb[0] {
	case 0xD0, 0xD7: // list files / list CD images
		return command.DirIn, ListPageSize
	case 0xD1: // get file chunk
		if len(cdb) < 8 {
			return command.DirNone, 0
		}
		return command.DirIn, int(binary.BigEndian.Uint16(cdb[6:8]))
	case 0xD2, 0xDA: // file count / CD image count
		return command.DirIn, 4
	case 0xD3: // send file prep: fixed-width filename field
		return command.DirOut, EntryNameLen
	case 0xD4: // send file chunk
		if len(cdb) < 8 {
			return command.DirNone, 0
		}
		return command.DirOut, int(binary.BigEndian.Uint16(cdb[6:8]))
	case 0xD5, 0xD8: // send file end / set next CD image
		return command.DirNone, 0
	case 0xD9: // metadata: subcommand 1 is 3 bytes, subcommand 0 a list page
		if cdb[1] == 0x01 {
			return command.DirIn, 3
		}
		return command.DirIn, ListPageSize
	default:
		return command.DirNone, 0
	}
}

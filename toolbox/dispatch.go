package toolbox

import (
	"encoding/binary"

	"github.com/zuluscsi/scsicore/command"
)

// Dispatch handles one vendor-range command (0xD0-0xDA) against src.
func Dispatch(cmd *command.Cmd, src FileSource) command.Response {
	switch cmd.Command() {
	case 0xD0:
		return listFiles(cmd, src)
	case 0xD1:
		return getFile(cmd, src)
	case 0xD2:
		return countFiles(cmd, src)
	case 0xD3:
		return sendFilePrep(cmd, src)
	case 0xD4:
		return sendFile10(cmd, src)
	case 0xD5:
		return sendFileEnd(cmd, src)
	case 0xD7:
		return listCDImages(cmd, src)
	case 0xD8:
		return setNextCDImage(cmd, src)
	case 0xD9:
		return metadata(cmd, src)
	case 0xDA:
		return countCDImages(cmd, src)
	default:
		return cmd.NotHandled()
	}
}

// listFiles implements 0xD0: CDB[1] is the requested page number.
func listFiles(cmd *command.Cmd, src FileSource) command.Response {
	page := int(cmd.GetCDB(1))
	entries, totalPages, err := src.ListPage(page)
	if err != nil {
		return cmd.TargetFailure()
	}
	return writeListPage(cmd, entries, totalPages)
}

// writeListPage marshals a page of entries into the fixed ListPageSize
// wire format: a 2-byte entry count, a 2-byte total-page count, then
// EntriesPerPage fixed-width entries.
func writeListPage(cmd *command.Cmd, entries []FileEntry, totalPages int) command.Response {
	if len(entries) > EntriesPerPage {
		entries = entries[:EntriesPerPage]
	}
	buf := make([]byte, ListPageSize)
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(entries)))
	binary.BigEndian.PutUint16(buf[2:4], uint16(totalPages))
	for i, e := range entries {
		off := 4 + i*entrySize
		copy(buf[off:off+EntryNameLen], []byte(e.Name))
		binary.BigEndian.PutUint32(buf[off+EntryNameLen:off+EntryNameLen+4], uint32(e.Size))
		if e.IsDir {
			buf[off+EntryNameLen+4] = 1
		}
	}
	if _, err := cmd.Write(buf); err != nil {
		return cmd.TargetFailure()
	}
	return cmd.Ok()
}

// getFile implements 0xD1: a 10-byte CDB carrying the file index at
// CDB[1], a big-endian uint32 byte offset at CDB[2:6], and a big-endian
// uint16 chunk length at CDB[6:8].
func getFile(cmd *command.Cmd, src FileSource) command.Response {
	index := int(cmd.GetCDB(1))
	offset := int64(binary.BigEndian.Uint32([]byte{cmd.GetCDB(2), cmd.GetCDB(3), cmd.GetCDB(4), cmd.GetCDB(5)}))
	length := int(binary.BigEndian.Uint16([]byte{cmd.GetCDB(6), cmd.GetCDB(7)}))

	buf := make([]byte, length)
	n, err := src.ReadFileChunk(index, offset, buf)
	if err != nil {
		return cmd.TargetFailure()
	}
	if _, err := cmd.Write(buf[:n]); err != nil {
		return cmd.TargetFailure()
	}
	return cmd.Ok()
}

// countFiles implements 0xD2: a 4-byte big-endian count.
func countFiles(cmd *command.Cmd, src FileSource) command.Response {
	n, err := src.FileCount()
	if err != nil {
		return cmd.TargetFailure()
	}
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(n))
	if _, err := cmd.Write(buf); err != nil {
		return cmd.TargetFailure()
	}
	return cmd.Ok()
}

// sendFilePrep implements 0xD3: begins a staged upload. The filename is a
// fixed EntryNameLen-byte field sent as host->device data, and CDB[2:6]
// carries the big-endian uint32 total upload size.
func sendFilePrep(cmd *command.Cmd, src FileSource) command.Response {
	nameBuf := make([]byte, EntryNameLen)
	if _, err := cmd.Read(nameBuf); err != nil {
		return cmd.TargetFailure()
	}
	size := int64(binary.BigEndian.Uint32([]byte{cmd.GetCDB(2), cmd.GetCDB(3), cmd.GetCDB(4), cmd.GetCDB(5)}))
	name := trimNulName(nameBuf)
	if err := src.BeginUpload(name, size); err != nil {
		return cmd.TargetFailure()
	}
	return cmd.Ok()
}

// sendFile10 implements 0xD4: one chunk of an in-progress upload. CDB[6:8]
// carries the big-endian uint16 chunk length.
func sendFile10(cmd *command.Cmd, src FileSource) command.Response {
	length := int(binary.BigEndian.Uint16([]byte{cmd.GetCDB(6), cmd.GetCDB(7)}))
	chunk := make([]byte, length)
	if _, err := cmd.Read(chunk); err != nil {
		return cmd.TargetFailure()
	}
	if err := src.WriteUploadChunk(chunk); err != nil {
		return cmd.TargetFailure()
	}
	return cmd.Ok()
}

// sendFileEnd implements 0xD5: finalizes the staged upload.
func sendFileEnd(cmd *command.Cmd, src FileSource) command.Response {
	if err := src.EndUpload(); err != nil {
		return cmd.TargetFailure()
	}
	return cmd.Ok()
}

// listCDImages implements 0xD7: a page of CD image names, same fixed
// entry width as listFiles (no IsDir/size fields are meaningful here, so
// they're left zero).
func listCDImages(cmd *command.Cmd, src FileSource) command.Response {
	names, err := src.CDImageNames()
	if err != nil {
		return cmd.TargetFailure()
	}
	page := int(cmd.GetCDB(1))
	start := page * EntriesPerPage
	var entries []FileEntry
	for i := 0; i < EntriesPerPage && start+i < len(names); i++ {
		entries = append(entries, FileEntry{Name: names[start+i]})
	}
	totalPages := (len(names) + EntriesPerPage - 1) / EntriesPerPage
	return writeListPage(cmd, entries, totalPages)
}

// setNextCDImage implements 0xD8.
func setNextCDImage(cmd *command.Cmd, src FileSource) command.Response {
	if err := src.SetNextCDImage(); err != nil {
		return cmd.TargetFailure()
	}
	return cmd.Ok()
}

// countCDImages implements 0xDA: a 4-byte big-endian count.
func countCDImages(cmd *command.Cmd, src FileSource) command.Response {
	n, err := src.CDImageCount()
	if err != nil {
		return cmd.TargetFailure()
	}
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(n))
	if _, err := cmd.Write(buf); err != nil {
		return cmd.TargetFailure()
	}
	return cmd.Ok()
}

// metadata implements 0xD9: CDB[1] selects the subcommand (0 = list
// devices, 1 = capability flags + API version), per Toolbox.h. Subcommand
// 0 is the legacy TOOLBOX_LIST_DEVICES alias and reports the CD image
// list (page 0 only — the metadata CDB has no room for a page number).
func metadata(cmd *command.Cmd, src FileSource) command.Response {
	switch cmd.GetCDB(1) {
	case 0x00:
		names, err := src.CDImageNames()
		if err != nil {
			return cmd.TargetFailure()
		}
		var entries []FileEntry
		for i := 0; i < EntriesPerPage && i < len(names); i++ {
			entries = append(entries, FileEntry{Name: names[i]})
		}
		totalPages := (len(names) + EntriesPerPage - 1) / EntriesPerPage
		return writeListPage(cmd, entries, totalPages)
	case 0x01:
		buf := make([]byte, 3)
		buf[0] = CapLargeTransfers | CapSendFile32K
		buf[1] = 0
		buf[2] = APIVersion
		if _, err := cmd.Write(buf); err != nil {
			return cmd.TargetFailure()
		}
		return cmd.Ok()
	default:
		return cmd.IllegalRequest()
	}
}

func trimNulName(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

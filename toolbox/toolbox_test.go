package toolbox

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/zuluscsi/scsicore/command"
	"github.com/zuluscsi/scsicore/target"
)

type fakeSource struct {
	files        []FileEntry
	fileData     map[int][]byte
	cdImages     []string
	nextSet      bool
	uploadName   string
	uploadSize   int64
	uploadedData []byte
	uploadEnded  bool
}

func (f *fakeSource) ListPage(page int) ([]FileEntry, int, error) {
	total := (len(f.files) + EntriesPerPage - 1) / EntriesPerPage
	start := page * EntriesPerPage
	if start >= len(f.files) {
		return nil, total, nil
	}
	end := start + EntriesPerPage
	if end > len(f.files) {
		end = len(f.files)
	}
	return f.files[start:end], total, nil
}

func (f *fakeSource) FileCount() (int, error) { return len(f.files), nil }

func (f *fakeSource) FileByIndex(index int) (FileEntry, error) {
	if index < 0 || index >= len(f.files) {
		return FileEntry{}, errors.New("out of range")
	}
	return f.files[index], nil
}

func (f *fakeSource) ReadFileChunk(index int, offset int64, buf []byte) (int, error) {
	data := f.fileData[index]
	if offset >= int64(len(data)) {
		return 0, nil
	}
	n := copy(buf, data[offset:])
	return n, nil
}

func (f *fakeSource) BeginUpload(name string, size int64) error {
	f.uploadName = name
	f.uploadSize = size
	f.uploadedData = nil
	return nil
}

func (f *fakeSource) WriteUploadChunk(data []byte) error {
	f.uploadedData = append(f.uploadedData, data...)
	return nil
}

func (f *fakeSource) EndUpload() error {
	f.uploadEnded = true
	return nil
}

func (f *fakeSource) CDImageNames() ([]string, error) { return f.cdImages, nil }
func (f *fakeSource) CDImageCount() (int, error)       { return len(f.cdImages), nil }
func (f *fakeSource) SetNextCDImage() error {
	f.nextSet = true
	return nil
}

func newToolboxCmd(cdb []byte, vecBytes int) (*command.Cmd, [][]byte) {
	tgt := target.NewTarget()
	tgt.Active = true
	vecs := [][]byte{make([]byte, vecBytes)}
	return command.NewCmd(1, cdb, vecs, tgt, 0), vecs
}

func TestListFilesReturnsEntriesAndTotalPages(t *testing.T) {
	src := &fakeSource{files: []FileEntry{
		{Name: "one.hda", Size: 1024},
		{Name: "two.iso", Size: 2048, IsDir: false},
	}}
	cdb := []byte{0xD0, 0, 0, 0, 0, 0}
	cmd, vecs := newToolboxCmd(cdb, ListPageSize)

	resp := Dispatch(cmd, src)
	if resp.Status != 0x00 {
		t.Fatalf("expected GOOD, got 0x%x", resp.Status)
	}
	count := binary.BigEndian.Uint16(vecs[0][0:2])
	totalPages := binary.BigEndian.Uint16(vecs[0][2:4])
	if count != 2 {
		t.Fatalf("expected 2 entries, got %d", count)
	}
	if totalPages != 1 {
		t.Fatalf("expected 1 total page, got %d", totalPages)
	}
	name := string(vecs[0][4 : 4+EntryNameLen])
	if trimNulName([]byte(name)) != "one.hda" {
		t.Fatalf("expected first entry name one.hda, got %q", trimNulName([]byte(name)))
	}
	size := binary.BigEndian.Uint32(vecs[0][4+EntryNameLen : 4+EntryNameLen+4])
	if size != 1024 {
		t.Fatalf("expected size 1024, got %d", size)
	}
}

func TestGetFileReturnsRequestedChunk(t *testing.T) {
	src := &fakeSource{
		files:    []FileEntry{{Name: "disk.hda", Size: 5}},
		fileData: map[int][]byte{0: []byte("hello world")},
	}
	cdb := make([]byte, 10)
	cdb[0] = 0xD1
	cdb[1] = 0 // file index
	binary.BigEndian.PutUint32(cdb[2:6], 6) // offset
	binary.BigEndian.PutUint16(cdb[6:8], 5) // length

	cmd, vecs := newToolboxCmd(cdb, 5)
	resp := Dispatch(cmd, src)
	if resp.Status != 0x00 {
		t.Fatalf("expected GOOD, got 0x%x", resp.Status)
	}
	if string(vecs[0]) != "world" {
		t.Fatalf("expected chunk %q, got %q", "world", vecs[0])
	}
}

func TestCountFilesReportsLength(t *testing.T) {
	src := &fakeSource{files: []FileEntry{{Name: "a"}, {Name: "b"}, {Name: "c"}}}
	cdb := []byte{0xD2, 0, 0, 0, 0, 0}
	cmd, vecs := newToolboxCmd(cdb, 4)
	resp := Dispatch(cmd, src)
	if resp.Status != 0x00 {
		t.Fatalf("expected GOOD, got 0x%x", resp.Status)
	}
	if binary.BigEndian.Uint32(vecs[0]) != 3 {
		t.Fatalf("expected count 3, got %d", binary.BigEndian.Uint32(vecs[0]))
	}
}

func TestStagedUploadRoundTrip(t *testing.T) {
	src := &fakeSource{}

	prepCDB := make([]byte, 10)
	prepCDB[0] = 0xD3
	binary.BigEndian.PutUint32(prepCDB[2:6], 11)
	prepCmd, prepVecs := newToolboxCmd(prepCDB, EntryNameLen)
	copy(prepVecs[0], "upload.bin")
	if resp := Dispatch(prepCmd, src); resp.Status != 0x00 {
		t.Fatalf("prep failed: status 0x%x", resp.Status)
	}
	if src.uploadName != "upload.bin" || src.uploadSize != 11 {
		t.Fatalf("unexpected upload metadata: name=%q size=%d", src.uploadName, src.uploadSize)
	}

	chunkCDB := make([]byte, 10)
	chunkCDB[0] = 0xD4
	binary.BigEndian.PutUint16(chunkCDB[6:8], 11)
	chunkCmd, chunkVecs := newToolboxCmd(chunkCDB, 11)
	copy(chunkVecs[0], "hello world")
	if resp := Dispatch(chunkCmd, src); resp.Status != 0x00 {
		t.Fatalf("chunk failed: status 0x%x", resp.Status)
	}

	endCDB := []byte{0xD5, 0, 0, 0, 0, 0}
	endCmd, _ := newToolboxCmd(endCDB, 0)
	if resp := Dispatch(endCmd, src); resp.Status != 0x00 {
		t.Fatalf("end failed: status 0x%x", resp.Status)
	}

	if !src.uploadEnded {
		t.Fatal("expected upload to be finalized")
	}
	if string(src.uploadedData) != "hello world" {
		t.Fatalf("expected uploaded bytes %q, got %q", "hello world", src.uploadedData)
	}
}

func TestCDImageListAndSelectAndCount(t *testing.T) {
	src := &fakeSource{cdImages: []string{"game1.iso", "game2.iso"}}

	listCDB := []byte{0xD7, 0, 0, 0, 0, 0}
	listCmd, listVecs := newToolboxCmd(listCDB, ListPageSize)
	if resp := Dispatch(listCmd, src); resp.Status != 0x00 {
		t.Fatalf("list failed: status 0x%x", resp.Status)
	}
	count := binary.BigEndian.Uint16(listVecs[0][0:2])
	if count != 2 {
		t.Fatalf("expected 2 cd images, got %d", count)
	}

	setCDB := []byte{0xD8, 0, 0, 0, 0, 0}
	setCmd, _ := newToolboxCmd(setCDB, 0)
	if resp := Dispatch(setCmd, src); resp.Status != 0x00 {
		t.Fatalf("set next failed: status 0x%x", resp.Status)
	}
	if !src.nextSet {
		t.Fatal("expected SetNextCDImage to have been called")
	}

	countCDB := []byte{0xDA, 0, 0, 0, 0, 0}
	countCmd, countVecs := newToolboxCmd(countCDB, 4)
	if resp := Dispatch(countCmd, src); resp.Status != 0x00 {
		t.Fatalf("count failed: status 0x%x", resp.Status)
	}
	if binary.BigEndian.Uint32(countVecs[0]) != 2 {
		t.Fatalf("expected count 2, got %d", binary.BigEndian.Uint32(countVecs[0]))
	}
}

func TestMetadataCapabilitiesSubcommand(t *testing.T) {
	src := &fakeSource{}
	cdb := []byte{0xD9, 0x01, 0, 0, 0, 0}
	cmd, vecs := newToolboxCmd(cdb, 3)
	resp := Dispatch(cmd, src)
	if resp.Status != 0x00 {
		t.Fatalf("expected GOOD, got 0x%x", resp.Status)
	}
	if vecs[0][0]&CapLargeTransfers == 0 || vecs[0][0]&CapSendFile32K == 0 {
		t.Fatalf("expected both capability flags set, got 0x%x", vecs[0][0])
	}
	if vecs[0][2] != APIVersion {
		t.Fatalf("expected API version %d, got %d", APIVersion, vecs[0][2])
	}
}

func TestUnknownOpcodeNotHandled(t *testing.T) {
	src := &fakeSource{}
	cdb := []byte{0xD6, 0, 0, 0, 0, 0} // TOOLBOX_TOGGLE_DEBUG is not implemented
	cmd, _ := newToolboxCmd(cdb, 0)
	resp := Dispatch(cmd, src)
	if resp.Status != 0x02 {
		t.Fatalf("expected CHECK_CONDITION for unimplemented opcode, got 0x%x", resp.Status)
	}
}

// Package toolbox implements the vendor side-channel opcodes of spec.md
// §4.10: a small file-browser protocol (0xD0-0xDA) that lets a host-side
// GUI tool list, fetch, and upload files on the device's storage, and pick
// the next CD image for a multi-disc changer.
package toolbox

// FileEntry describes one file or directory in a listing.
type FileEntry struct {
	Name  string
	Size  int64
	IsDir bool
}

// FileSource is the filesystem this package browses, injected so tests
// don't need a real filesystem — the same "accept an interface, don't
// reach for a global" discipline the command package's backingStore
// helper applies to backing images.
type FileSource interface {
	// ListPage returns up to EntriesPerPage entries starting at page
	// (0-indexed) and the total number of pages.
	ListPage(page int) (entries []FileEntry, totalPages int, err error)
	// FileCount returns how many files/directories exist in total.
	FileCount() (int, error)
	// FileByIndex returns the entry at a stable listing index.
	FileByIndex(index int) (FileEntry, error)
	// ReadFileChunk reads into buf starting at offset within the file at
	// index, returning the number of bytes actually read (may be less
	// than len(buf) at end of file).
	ReadFileChunk(index int, offset int64, buf []byte) (int, error)

	// BeginUpload starts a staged host->device upload of a new file.
	BeginUpload(name string, size int64) error
	// WriteUploadChunk appends the next chunk of a staged upload.
	WriteUploadChunk(data []byte) error
	// EndUpload finalizes the staged upload.
	EndUpload() error

	// CDImageNames lists the available CD image files for the changer.
	CDImageNames() ([]string, error)
	// CDImageCount returns len(CDImageNames()) without needing to build
	// the full list.
	CDImageCount() (int, error)
	// SetNextCDImage advances the changer to the next CD image.
	SetNextCDImage() error
}

// OpcodeRangeStart and OpcodeRangeEnd bound the vendor command range this
// package claims, inclusive, so the bus layer can route a CDB here ahead
// of command.Dispatch without duplicating the opcode list.
const (
	OpcodeRangeStart = 0xD0
	OpcodeRangeEnd   = 0xDA
)

// Wire-format constants for the paged file listing (0xD0). Every entry is
// fixed-width so a page is a fixed-size buffer, keeping the protocol
// simple for a host-side tool to parse.
const (
	EntryNameLen   = 32 // matches the original firmware's MAX_MAC_PATH
	EntriesPerPage = 8
	entrySize      = EntryNameLen + 4 + 1 // name + big-endian uint32 size + isDir flag
	ListPageSize   = 4 + EntriesPerPage*entrySize
)

// Toolbox API version and capability flags reported by the 0xD9 metadata
// subcommand, per Toolbox.h.
const (
	APIVersion = 0

	CapLargeTransfers = 0x01
	CapSendFile32K    = 0x02
)

// Package tape implements the two sequential-device backing modes of
// spec.md §4.8: a multi-file folder tape and a single-file SIMH .TAP
// image, both presented through the Medium interface the command
// package's tape opcode handlers consume.
package tape

import "io"

// SpaceCode selects what SPACE counts over (spec.md §4.8).
type SpaceCode int

const (
	SpaceRecords   SpaceCode = 0
	SpaceFilemarks SpaceCode = 1
	SpaceEndOfData SpaceCode = 3
)

// Result reports what a tape positioning or read operation actually hit.
type Result int

const (
	ResultOK Result = iota
	ResultFilemark
	ResultEndOfMedium
	ResultBeginningOfTape
)

// Medium is the contract both tape backing modes satisfy. Each mode keeps
// its own position (a byte offset into the .TAP file, or a segment index
// plus a byte offset within it for a folder tape); Read and Write operate
// one record at a time, matching how SCSI sequential-access
// commands are themselves framed one record per command.
type Medium interface {
	// ReadForward reads the next record into buf (starting at the
	// medium's current position) and advances past it. It returns the
	// number of bytes copied into buf, the actual record length (which
	// may exceed len(buf) in variable-block mode, signaling ILI), and
	// what was hit.
	ReadForward(buf []byte) (n int, recordLen int, result Result, err error)

	// ReadBackward is the mirror of ReadForward, moving the position
	// backward across the record preceding the current position.
	ReadBackward(buf []byte) (n int, recordLen int, result Result, err error)

	// WriteRecord writes one data record at the current position,
	// truncating anything beyond it (per SIMH / tape semantics: writing
	// is never an insert).
	WriteRecord(data []byte) error

	// WriteFilemarks writes n filemark records.
	WriteFilemarks(n int) error

	// Space moves the position by count units of code, honoring
	// direction via count's sign. It reports how many units were
	// actually traversed and what stopped it early (a filemark or EOM).
	Space(code SpaceCode, count int) (actual int, result Result, err error)

	// EraseLong truncates the medium at the current position and writes
	// an end-of-medium marker there.
	EraseLong() error
	// EraseShort writes an erase-gap marker at the current position
	// without truncating.
	EraseShort() error

	// Rewind returns the position to the start of the medium.
	Rewind() error

	io.Closer
}

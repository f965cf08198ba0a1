// Package pipeline implements the bidirectional overlapped transfer engine
// of spec.md §4.7: a fixed-size power-of-two ring buffer drained and filled
// by two independent cursors, one per side (backing store and PHY wire), so
// that SD I/O and SCSI handshake latency overlap instead of serializing.
package pipeline

// ringSize is the transfer ring's capacity in bytes. It must be a power of
// two so cursor arithmetic can wrap with a bitmask instead of a modulo,
// mirroring the teacher's raw mmap offset arithmetic in poll.go generalized
// from a fixed kernel mailbox to an arbitrary-sized in-process ring.
const ringSize = 64 * 1024

const ringMask = ringSize - 1

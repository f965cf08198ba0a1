package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
)

// romMagic is the fixed 8-byte magic string at the start of an embedded ROM
// drive image, per spec.md §6.
var romMagic = [8]byte{'Z', 'U', 'L', 'U', 'R', 'O', 'M', 0}

// romHeaderSize is the fixed 64-byte header size (magic + sizes + reserved
// padding, flash-page aligned) described in spec.md §6.
const romHeaderSize = 64

// RomStore backs a LUN with a read-only image embedded in MCU flash: a
// 64-byte header ({magic[8], image_size u64, block_size u32, reserved...})
// followed by the raw payload.
type RomStore struct {
	// Image is the full ROM region (header + payload) as mapped into
	// this process's address space by the embedder (e.g. a flash-backed
	// mmap, or simply a []byte slice of loaded firmware data).
	Image []byte

	mu         sync.Mutex
	payload    []byte
	imageSize  int64
	blockSize  uint32
}

func (r *RomStore) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Image) < romHeaderSize {
		return fmt.Errorf("store: rom image too small for header (%d bytes)", len(r.Image))
	}
	if !bytes.Equal(r.Image[:8], romMagic[:]) {
		return fmt.Errorf("store: rom image missing ZULUROM magic")
	}
	order := binary.LittleEndian
	r.imageSize = int64(order.Uint64(r.Image[8:16]))
	r.blockSize = order.Uint32(r.Image[16:20])
	end := romHeaderSize + r.imageSize
	if end > int64(len(r.Image)) {
		return fmt.Errorf("store: rom image_size %d exceeds mapped region", r.imageSize)
	}
	r.payload = r.Image[romHeaderSize:end]
	return nil
}

func (r *RomStore) IsWritable() bool { return false }

func (r *RomStore) Size() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.imageSize
}

// BlockSize returns the block size recorded in the ROM header.
func (r *RomStore) BlockSize() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blockSize
}

func (r *RomStore) ReadAt(p []byte, off int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if off >= int64(len(r.payload)) {
		return 0, fmt.Errorf("store: rom read past end of image")
	}
	n := copy(p, r.payload[off:])
	return n, nil
}

func (r *RomStore) WriteAt(p []byte, off int64) (int, error) {
	return 0, fmt.Errorf("store: rom images are read-only")
}

func (r *RomStore) Flush() error { return nil }
func (r *RomStore) Close() error { return nil }

package pipeline

import "sync"

// prefetchKey identifies a cached run of sectors: which LUN, the LBA the
// cached bytes start at, and the block size they were read at (a LUN's
// block size can change across a MODE_SELECT, so it's part of the key).
type prefetchKey struct {
	LUN       int
	NextLBA   int64
	BlockSize int64
}

// Prefetch is a small per-target cache of the bytes immediately following a
// completed READ (spec.md §4.7): a subsequent READ that starts exactly at
// the cached LBA consumes the cache instead of rereading the backing store.
// It holds at most one entry per LUN.
type Prefetch struct {
	mu      sync.Mutex
	entries map[int]prefetchEntry
}

type prefetchEntry struct {
	key  prefetchKey
	data []byte
}

// NewPrefetch returns an empty cache.
func NewPrefetch() *Prefetch {
	return &Prefetch{entries: make(map[int]prefetchEntry)}
}

// Fill records data as available starting at nextLBA for lun/blockSize,
// replacing whatever was cached for that LUN before.
func (p *Prefetch) Fill(lun int, nextLBA, blockSize int64, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	p.entries[lun] = prefetchEntry{key: prefetchKey{LUN: lun, NextLBA: nextLBA, BlockSize: blockSize}, data: cp}
}

// Take returns the cached bytes if a READ for lun at lba/blockSize exactly
// matches what was prefetched, consuming the entry. It returns ok=false on
// an LBA or block-size mismatch or a request longer than what's cached; a
// shorter request is served from the start of the cached bytes.
func (p *Prefetch) Take(lun int, lba, blockSize int64, length int) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, found := p.entries[lun]
	if !found {
		return nil, false
	}
	if e.key.NextLBA != lba || e.key.BlockSize != blockSize || len(e.data) < length {
		return nil, false
	}
	delete(p.entries, lun)
	return e.data[:length], true
}

// Invalidate drops any cached entry for lun, per spec.md §4.7: called on
// WRITE, out-of-range SEEK, or eject. A LUN change needs no call, since
// each LUN's entry is looked up only by that LUN.
func (p *Prefetch) Invalidate(lun int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, lun)
}

// InvalidateAll drops every cached entry, used on a full bus reset.
func (p *Prefetch) InvalidateAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = make(map[int]prefetchEntry)
}

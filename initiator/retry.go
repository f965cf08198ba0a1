package initiator

// RetryPolicy controls how a batch read failure is retried during cloning
// (spec.md §4.9 step 6): first the whole batch is retried up to MaxRetries
// times, then individual sectors within the batch are retried one at a
// time, and any sector that still fails is skipped and counted.
type RetryPolicy struct {
	MaxRetries int
}

// DefaultRetryPolicy matches the original firmware's InitiatorMaxRetry
// default of 5.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 5}
}

// BatchReader reads count sectors of size sectorSize starting at lba into
// dst, returning an error if the whole-batch transfer failed.
type BatchReader func(lba uint32, count int, dst []byte) error

// ReadBatchWithRetry implements the three-tier retry/skip strategy: retry
// the batch as a whole, then fall back to sector-by-sector, then give up on
// individual bad sectors (zero-filling them) and keep going. It returns the
// number of sectors that could not be read after all retries.
func (p RetryPolicy) ReadBatchWithRetry(read BatchReader, lba uint32, count int, sectorSize int, dst []byte) (badSectors int) {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := read(lba, count, dst); err == nil {
			return 0
		} else {
			lastErr = err
		}
	}
	_ = lastErr

	for i := 0; i < count; i++ {
		off := i * sectorSize
		sector := dst[off : off+sectorSize]
		ok := false
		for attempt := 0; attempt <= p.MaxRetries; attempt++ {
			if err := read(lba+uint32(i), 1, sector); err == nil {
				ok = true
				break
			}
		}
		if !ok {
			for j := range sector {
				sector[j] = 0
			}
			badSectors++
		}
	}
	return badSectors
}

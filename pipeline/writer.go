package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/zuluscsi/scsicore/phy"
	"github.com/zuluscsi/scsicore/store"
)

// Default SD write batching sizes (spec.md §4.7's min_sd_write/
// max_sd_write), tuned for typical SD card erase-block granularity.
const (
	DefaultMinSDWrite = 4 * 1024
	DefaultMaxSDWrite = 32 * 1024
)

// Writer streams Total bytes received from Port into Store starting at
// Offset, implementing the WRITE path of spec.md §4.7. The spec names
// three cursors (bytesSCSIStarted, bytesSCSI, bytesSD); because this
// module's phy.Port.Read already blocks for the full REQ/ACK handshake of
// one call, "started" and "completed" collapse into the single bytesSCSI
// cursor here — there is no point at which a chunk is in flight but not
// yet acknowledged the way there is on the raw hardware ISR path.
type Writer struct {
	Store  store.BackingStore
	Port   phy.Port
	Offset int64
	Total  int64

	// MinSDWrite/MaxSDWrite bound each batch flushed to Store; zero
	// values fall back to the package defaults.
	MinSDWrite int
	MaxSDWrite int

	ring    [ringSize]byte
	bytesSCSI atomic.Uint64
	bytesSD   atomic.Uint64
}

func (w *Writer) BytesDone() uint64 { return w.bytesSD.Load() }

// Run drives the transfer to completion or ctx cancellation. WRITE
// commands only report GOOD once every batch has been flushed to the
// backing store (spec.md §4.7's ordering guarantee), so Run itself performs
// the final Flush before returning success.
func (w *Writer) Run(ctx context.Context) error {
	minW := w.MinSDWrite
	if minW <= 0 {
		minW = DefaultMinSDWrite
	}
	maxW := w.MaxSDWrite
	if maxW <= 0 {
		maxW = DefaultMaxSDWrite
	}

	for w.bytesSD.Load() < uint64(w.Total) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		scsiDone := w.bytesSCSI.Load()
		sdDone := w.bytesSD.Load()

		if scsiDone < uint64(w.Total) && scsiDone-sdDone < ringSize {
			room := ringSize - int(scsiDone-sdDone)
			remaining := w.Total - int64(scsiDone)
			chunk := room
			if int64(chunk) > remaining {
				chunk = int(remaining)
			}
			if chunk > 0 {
				n, err := w.fillFromPort(ctx, scsiDone, chunk)
				if err != nil {
					return err
				}
				scsiDone += uint64(n)
				w.bytesSCSI.Store(scsiDone)
			}
		}

		if avail := scsiDone - sdDone; avail > 0 {
			batch := int(avail)
			if batch > maxW {
				batch = maxW
			}
			if batch < minW && int64(sdDone)+int64(batch) < w.Total {
				// Not enough staged yet for a full batch and more is
				// still coming from the host; wait for another fill.
				continue
			}
			n, err := w.drainToStore(sdDone, batch)
			if err != nil {
				return err
			}
			sdDone += uint64(n)
			w.bytesSD.Store(sdDone)
		}
	}
	return w.Store.Flush()
}

func (w *Writer) fillFromPort(ctx context.Context, streamOff uint64, n int) (int, error) {
	start := int(streamOff & ringMask)
	if start+n <= ringSize {
		return w.Port.Read(ctx, w.ring[start:start+n])
	}
	first := ringSize - start
	n1, err := w.Port.Read(ctx, w.ring[start:ringSize])
	if err != nil {
		return n1, err
	}
	n2, err := w.Port.Read(ctx, w.ring[0:n-first])
	return n1 + n2, err
}

func (w *Writer) drainToStore(streamOff uint64, n int) (int, error) {
	start := int(streamOff & ringMask)
	storeOff := w.Offset + int64(streamOff)
	if start+n <= ringSize {
		return w.Store.WriteAt(w.ring[start:start+n], storeOff)
	}
	first := ringSize - start
	n1, err := w.Store.WriteAt(w.ring[start:ringSize], storeOff)
	if err != nil {
		return n1, err
	}
	n2, err := w.Store.WriteAt(w.ring[0:n-first], storeOff+int64(first))
	return n1 + n2, err
}

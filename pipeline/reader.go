package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/zuluscsi/scsicore/phy"
	"github.com/zuluscsi/scsicore/store"
)

// Reader streams Total bytes starting at Offset from Store out through
// Port, implementing the READ path of spec.md §4.7: bytesSD tracks how far
// the backing-store side has staged data into the ring, bytesSCSIDone
// tracks how far the PHY has actually put bytes on the wire. Staging never
// runs more than ringSize bytes ahead of what the PHY has drained.
type Reader struct {
	Store  store.BackingStore
	Port   phy.Port
	Offset int64
	Total  int64

	ring          [ringSize]byte
	bytesSD       atomic.Uint64
	bytesSCSIDone atomic.Uint64
}

// BytesDone reports how many bytes have reached the wire so far, for
// progress reporting and test assertions.
func (r *Reader) BytesDone() uint64 { return r.bytesSCSIDone.Load() }

// Run drives the transfer to completion or ctx cancellation (a watchdog
// reset, per spec.md §5). It alternates staging from the backing store and
// draining to the PHY within a single goroutine; the bus's foreground loop
// calls Run inline, so it starts no goroutine of its own.
func (r *Reader) Run(ctx context.Context) error {
	for r.bytesSCSIDone.Load() < uint64(r.Total) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		done := r.bytesSCSIDone.Load()
		staged := r.bytesSD.Load()

		if staged < uint64(r.Total) && staged-done < ringSize {
			room := ringSize - int(staged-done)
			remaining := r.Total - int64(staged)
			chunk := room
			if int64(chunk) > remaining {
				chunk = int(remaining)
			}
			if chunk > 0 {
				n, err := r.fillRing(int64(staged), chunk)
				if err != nil {
					return err
				}
				staged += uint64(n)
				r.bytesSD.Store(staged)
			}
		}

		if avail := staged - done; avail > 0 {
			n, err := r.drainRing(ctx, done, int(avail))
			if err != nil {
				return err
			}
			done += uint64(n)
			r.bytesSCSIDone.Store(done)
		}
	}
	return nil
}

// fillRing reads n bytes from the backing store at stream offset streamOff
// into the ring, wrapping at the ring boundary.
func (r *Reader) fillRing(streamOff int64, n int) (int, error) {
	start := int(streamOff & ringMask)
	storeOff := r.Offset + streamOff
	if start+n <= ringSize {
		return r.Store.ReadAt(r.ring[start:start+n], storeOff)
	}
	first := ringSize - start
	n1, err := r.Store.ReadAt(r.ring[start:ringSize], storeOff)
	if err != nil {
		return n1, err
	}
	n2, err := r.Store.ReadAt(r.ring[0:n-first], storeOff+int64(first))
	return n1 + n2, err
}

// drainRing writes n bytes from the ring (starting at stream offset
// streamOff) out through the PHY port, wrapping at the ring boundary.
func (r *Reader) drainRing(ctx context.Context, streamOff uint64, n int) (int, error) {
	start := int(streamOff & ringMask)
	if start+n <= ringSize {
		return r.Port.Write(ctx, r.ring[start:start+n])
	}
	first := ringSize - start
	n1, err := r.Port.Write(ctx, r.ring[start:ringSize])
	if err != nil {
		return n1, err
	}
	n2, err := r.Port.Write(ctx, r.ring[0:n-first])
	return n1 + n2, err
}

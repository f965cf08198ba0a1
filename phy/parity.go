package phy

import "math/bits"

// ParityOf computes odd parity for a single data byte: the parity bit that,
// combined with the byte's set bits, makes the total count of set bits odd.
func ParityOf(b byte) bool {
	return bits.OnesCount8(b)%2 == 0
}

// Checksum accumulates an odd-parity check across a whole transfer. A single
// bit error flips the running accumulator; an even number of bit errors
// within one byte's parity cancels out and is missed — this is a documented,
// accepted limitation of the single-bit parity scheme (spec.md §4.1).
type Checksum struct {
	errors int
}

// Add folds one more (byte, receivedParityBit) pair into the checksum.
func (c *Checksum) Add(b byte, receivedParity bool) {
	if ParityOf(b) != receivedParity {
		c.errors++
	}
}

// OK reports whether every byte folded in so far matched its parity bit.
func (c *Checksum) OK() bool {
	return c.errors == 0
}

// Errors returns the number of parity mismatches observed.
func (c *Checksum) Errors() int {
	return c.errors
}

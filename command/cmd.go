// Package command implements the SCSI command dispatcher: CDB decoding,
// response construction, and the per-opcode handlers for the SBC, MMC,
// and SSC command sets this firmware emulates (spec.md §4.6, §7).
package command

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/zuluscsi/scsicore/scsi"
	"github.com/zuluscsi/scsicore/target"
)

// Cmd represents one SCSI command received on the bus: the CDB bytes, the
// scatter/gather data buffer, and the target/LUN it addresses.
type Cmd struct {
	id     uint16
	cdb    []byte
	vecs   [][]byte
	offset int
	vecoff int
	tgt    *target.Target
	lun    int

	// Buf is a reusable scratch buffer, carried across commands by the
	// caller to avoid reallocating on every dispatch.
	Buf []byte
}

// NewCmd builds a Cmd from a raw CDB and the data-transfer iovecs.
func NewCmd(id uint16, cdb []byte, vecs [][]byte, tgt *target.Target, lun int) *Cmd {
	return &Cmd{id: id, cdb: cdb, vecs: vecs, tgt: tgt, lun: lun}
}

// Command returns the opcode byte.
func (c *Cmd) Command() byte { return c.cdb[0] }

// CdbLen returns the CDB length in bytes, per SPC-4 4.2.5.1.
func (c *Cmd) CdbLen() int {
	b7 := byte(0)
	if len(c.cdb) > 7 {
		b7 = c.cdb[7]
	}
	return scsi.CDBLen(c.cdb[0], b7)
}

// GetCDB returns the byte at index within the CDB.
func (c *Cmd) GetCDB(index int) byte { return c.cdb[index] }

// Target returns the LUN's target record.
func (c *Cmd) Target() *target.Target { return c.tgt }

// LUN returns the addressed logical unit number.
func (c *Cmd) LUN() int { return c.lun }

// LBA returns the block address this command addresses.
func (c *Cmd) LBA() uint64 {
	order := binary.BigEndian
	switch c.CdbLen() {
	case 6:
		val := uint32(c.cdb[1]&0x1f)<<16 | uint32(c.cdb[2])<<8 | uint32(c.cdb[3])
		return uint64(val)
	case 10, 12:
		return uint64(order.Uint32(c.cdb[2:6]))
	case 16:
		return order.Uint64(c.cdb[2:10])
	default:
		panic(fmt.Sprintf("command: unusual cdb length %d", c.CdbLen()))
	}
}

// XferLen returns the number of blocks (for READ/WRITE-family commands)
// this command transfers.
func (c *Cmd) XferLen() uint32 {
	order := binary.BigEndian
	switch c.CdbLen() {
	case 6:
		return uint32(c.cdb[4])
	case 10:
		return uint32(order.Uint16(c.cdb[7:9]))
	case 12:
		return order.Uint32(c.cdb[6:10])
	case 16:
		return order.Uint32(c.cdb[10:14])
	default:
		panic(fmt.Sprintf("command: unusual cdb length %d", c.CdbLen()))
	}
}

// AllocationLength6 returns the one-byte allocation length field (CDB byte
// 4) used by the 6-byte INQUIRY, MODE_SENSE(6), and REQUEST_SENSE CDBs.
func (c *Cmd) AllocationLength6() int {
	return int(c.cdb[4])
}

// Write copies b into the command's data-out/data-in scatter buffer,
// advancing across iovec boundaries as needed.
func (c *Cmd) Write(b []byte) (int, error) {
	toWrite := len(b)
	boff := 0
	for toWrite != 0 {
		if c.vecoff == len(c.vecs) {
			return boff, errors.New("command: out of buffer space")
		}
		wrote := copy(c.vecs[c.vecoff][c.offset:], b[boff:])
		boff += wrote
		toWrite -= wrote
		c.offset += wrote
		if c.offset == len(c.vecs[c.vecoff]) {
			c.vecoff++
			c.offset = 0
		}
	}
	return boff, nil
}

// Read copies from the command's data buffer into b.
func (c *Cmd) Read(b []byte) (int, error) {
	toRead := len(b)
	boff := 0
	for toRead != 0 {
		if c.vecoff == len(c.vecs) {
			return boff, errors.New("command: out of buffer data")
		}
		read := copy(b[boff:], c.vecs[c.vecoff][c.offset:])
		boff += read
		toRead -= read
		c.offset += read
		if c.offset == len(c.vecs[c.vecoff]) {
			c.vecoff++
			c.offset = 0
		}
	}
	return boff, nil
}

// scratch returns (growing if needed) the reusable buffer sized exactly n.
func (c *Cmd) scratch(n int) []byte {
	if cap(c.Buf) < n {
		c.Buf = make([]byte, n)
	}
	return c.Buf[:n]
}

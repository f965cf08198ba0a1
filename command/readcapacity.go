package command

import "encoding/binary"

// emulateReadCapacity10 answers READ_CAPACITY(10), adapted from the
// teacher's EmulateReadCapacity16 (cmd_handler.go) to the 8-byte short
// reply: last valid LBA followed by block size, both big-endian.
func emulateReadCapacity10(cmd *Cmd) Response {
	_, fail, ok := backingStore(cmd)
	if !ok {
		return fail
	}
	bs := blockSize(cmd)
	lastLBA := cmd.Target().Geometry.CapacityLBA - 1
	if lastLBA < 0 {
		lastLBA = 0
	}

	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], uint32(lastLBA))
	binary.BigEndian.PutUint32(buf[4:8], uint32(bs))
	if _, err := cmd.Write(buf); err != nil {
		return cmd.TargetFailure()
	}
	return cmd.Ok()
}

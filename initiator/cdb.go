package initiator

import "github.com/zuluscsi/scsicore/scsi"

// testUnitReadyCDB builds a 6-byte TEST UNIT READY.
func testUnitReadyCDB() []byte {
	return []byte{scsi.TestUnitReady, 0, 0, 0, 0, 0}
}

// startStopUnitCDB builds a 6-byte START STOP UNIT. start selects load vs
// unload; eject additionally asserts the eject bit on unload, matching the
// original firmware's `command[4] = 0b00000010` eject(6)/stop(7) encoding.
func startStopUnitCDB(start, eject bool) []byte {
	cdb := []byte{scsi.StartStop, 0x01, 0, 0, 0, 0}
	if start {
		cdb[4] |= 0x01
		cdb[1] = 0x00
	} else if eject {
		cdb[4] = 0x02
	}
	return cdb
}

// inquiryCDB builds a 6-byte standard INQUIRY requesting allocLen bytes.
func inquiryCDB(allocLen byte) []byte {
	return []byte{scsi.Inquiry, 0, 0, 0, allocLen, 0}
}

// requestSenseCDB builds a 6-byte REQUEST SENSE requesting allocLen bytes.
func requestSenseCDB(allocLen byte) []byte {
	return []byte{scsi.RequestSense, 0, 0, 0, allocLen, 0}
}

// readCapacity10CDB builds the 10-byte READ CAPACITY(10).
func readCapacity10CDB() []byte {
	cdb := make([]byte, 10)
	cdb[0] = scsi.ReadCapacity
	return cdb
}

// read10CDB builds a READ(10) for count sectors starting at lba.
func read10CDB(lba uint32, count uint16) []byte {
	cdb := make([]byte, 10)
	cdb[0] = scsi.Read10
	cdb[2] = byte(lba >> 24)
	cdb[3] = byte(lba >> 16)
	cdb[4] = byte(lba >> 8)
	cdb[5] = byte(lba)
	cdb[7] = byte(count >> 8)
	cdb[8] = byte(count)
	return cdb
}

// read6CDB builds a READ(6) for count sectors starting at lba (21-bit LBA).
func read6CDB(lba uint32, count byte) []byte {
	cdb := make([]byte, 6)
	cdb[0] = scsi.Read6
	cdb[1] = byte(lba>>16) & 0x1f
	cdb[2] = byte(lba >> 8)
	cdb[3] = byte(lba)
	cdb[4] = count
	return cdb
}

package command

import (
	"encoding/binary"

	"github.com/zuluscsi/scsicore/store"
)

// tocSource is satisfied by a backing store that can enumerate its CD
// tracks (currently only store.FolderStore); other stores report a single
// synthetic data track spanning the whole image.
type tocSource interface {
	Tracks() []store.CueTrack
}

// TOCTrack is one track descriptor for a READ_TOC response.
type TOCTrack struct {
	Number   int
	IsAudio  bool
	StartLBA int64
}

func tracksFromCue(cue []store.CueTrack) []TOCTrack {
	out := make([]TOCTrack, len(cue))
	for i, c := range cue {
		out[i] = TOCTrack{Number: i + 1, IsAudio: c.IsAudio, StartLBA: c.StartLBA}
	}
	return out
}

// emulateReadTOC answers READ_TOC/PMA/ATIP for format 0 (track
// descriptors), the minimum MMC-2 subset a CD-ROM driver needs to mount a
// data disc (spec.md §4.6). The device type is not checked: any LUN with
// media mounted answers, and a store without a cue sheet reports one data
// track spanning the whole image.
func emulateReadTOC(cmd *Cmd) Response {
	tgt := cmd.Target()
	rw, fail, ok := backingStore(cmd)
	if !ok {
		return fail
	}

	var tracks []TOCTrack
	if src, is := rw.(tocSource); is {
		tracks = tracksFromCue(src.Tracks())
	} else {
		tracks = []TOCTrack{{Number: 1, IsAudio: false, StartLBA: 0}}
	}
	if len(tracks) == 0 {
		return cmd.IllegalRequest()
	}

	buf := make([]byte, 4+8*(len(tracks)+1))
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(buf)-2))
	buf[2] = byte(tracks[0].Number)
	buf[3] = byte(tracks[len(tracks)-1].Number)

	off := 4
	for _, tr := range tracks {
		ctrl := byte(0x04) // data track
		if tr.IsAudio {
			ctrl = 0x00
		}
		buf[off+1] = ctrl
		buf[off+2] = byte(tr.Number)
		binary.BigEndian.PutUint32(buf[off+4:off+8], uint32(tr.StartLBA))
		off += 8
	}
	// Lead-out track descriptor.
	buf[off+2] = 0xaa
	binary.BigEndian.PutUint32(buf[off+4:off+8], uint32(tgt.Geometry.CapacityLBA))

	outlen := int(binary.BigEndian.Uint16(cmd.cdb[7:9]))
	if outlen > 0 && outlen < len(buf) {
		buf = buf[:outlen]
	}
	if _, err := cmd.Write(buf); err != nil {
		return cmd.TargetFailure()
	}
	return cmd.Ok()
}

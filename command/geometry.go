package command

// AppleGeometry fabricates a sensible (heads, sectorsPerTrack) pair for an
// image of sizeBytes under the apple quirk (spec.md §4.6, §9). Mac OS's
// driver only uses this to sanity-check that cylinders*heads*sectors roughly
// matches the reported block count; it never round-trips the value, so
// exact historical CHS tables aren't required, only a deterministic
// formula that stays within old BIOS-era limits (heads <= 255, cylinders
// <= 65535).
//
// This firmware uses the same fixed-sectors-per-track scheme most SCSI2SD
// and BlueSCSI deployments settle on: sectorsPerTrack is always 32, and
// heads is the smallest power of two in {1,2,4,8,16,32,64,128} for which
// the resulting cylinder count fits in 16 bits.
//
// Test vector: a 20 MiB image (20*1024*1024 / 512 = 40960 sectors) yields
// heads=1, sectorsPerTrack=32, cylinders=1280 — comfortably under the
// 65535-cylinder ceiling at the smallest head count, so AppleGeometry
// returns (1, 32) for that size.
func AppleGeometry(sizeBytes int64) (heads, sectorsPerTrack int) {
	const sectorSize = 512
	const spt = 32
	totalSectors := sizeBytes / sectorSize
	if totalSectors <= 0 {
		return 1, spt
	}
	for _, h := range []int{1, 2, 4, 8, 16, 32, 64, 128} {
		cyls := (totalSectors + int64(h*spt) - 1) / int64(h*spt)
		if cyls <= 65535 {
			return h, spt
		}
	}
	return 128, spt
}

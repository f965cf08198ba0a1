package command

// emulateRequestSense returns the LUN's latched sense data and clears it
// (spec.md §3, §7). A successful REQUEST_SENSE never overwrites the latch
// with NoSense through the normal Ok() path, so it builds the response
// directly rather than calling cmd.Ok().
func emulateRequestSense(cmd *Cmd) Response {
	info := cmd.Target().TakeSense()
	buf := info.Marshal()

	allocLen := cmd.AllocationLength6()
	if allocLen > 0 && allocLen < len(buf) {
		buf = buf[:allocLen]
	}
	if _, err := cmd.Write(buf); err != nil {
		return cmd.TargetFailure()
	}
	return Response{ID: cmd.id, Status: scsiStatGood}
}

package initiator

import (
	"fmt"
	"os"
)

// CollisionPolicy picks what happens when a generated clone filename
// already exists on disk.
type CollisionPolicy int

const (
	// StopIfExists refuses to overwrite an existing clone.
	StopIfExists CollisionPolicy = iota
	// NewNumberedCopy appends an incrementing "(N)" suffix until a free
	// name is found.
	NewNumberedCopy
	// Overwrite reuses the existing filename unconditionally.
	Overwrite
)

// FilenameTemplate returns the "HDxx_imaged.hda"-style base name for a
// device, keyed by its peripheral device type (spec.md §4.9 step 3).
func FilenameTemplate(id int, peripheralDeviceType byte) (base, ext string) {
	switch peripheralDeviceType {
	case 0x00, 0x04, 0x07: // direct-access, optical memory, MO treated like fixed disk by default
		return fmt.Sprintf("HD%d_imaged", id), ".hda"
	case 0x05: // CD/DVD
		return fmt.Sprintf("CD%d_imaged", id), ".iso"
	case 0x01: // sequential-access (tape) has no clone template of its own;
		// fall through to the removable-media template, matching the
		// original firmware's handling of any type it doesn't special-case.
		return fmt.Sprintf("RM%d_imaged", id), ".img"
	default:
		return fmt.Sprintf("RM%d_imaged", id), ".img"
	}
}

// ResolveFilename applies policy to (base+ext) in dir, returning the path
// to actually write to, or "" with ok=false if policy is StopIfExists and
// the plain name is already taken.
func ResolveFilename(dir, base, ext string, policy CollisionPolicy, copyIndex int) (path string, ok bool) {
	plain := dir + "/" + base + ext
	if _, err := os.Stat(plain); os.IsNotExist(err) {
		return plain, true
	}

	switch policy {
	case StopIfExists:
		return "", false
	case Overwrite:
		return plain, true
	case NewNumberedCopy:
		for n := copyIndex; ; n++ {
			candidate := fmt.Sprintf("%s/%s(%d)%s", dir, base, n, ext)
			if _, err := os.Stat(candidate); os.IsNotExist(err) {
				return candidate, true
			}
		}
	default:
		return "", false
	}
}

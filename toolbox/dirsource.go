package toolbox

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// DirSource is the real filesystem-backed FileSource scsicored exposes over
// the vendor channel: Dir's entries back the 0xD0-0xD5 browse and upload
// opcodes, and the files under Dir whose extension matches one of
// CDImageExts back the 0xD7/0xD8/0xDA changer opcodes.
type DirSource struct {
	Dir          string
	CDImageExts  []string // e.g. {".iso", ".bin", ".cue"}; nil makes the changer list empty

	mu      sync.Mutex
	entries []FileEntry // snapshotted by refresh, indexed for FileByIndex

	uploadFile *os.File
	uploadSize int64
}

// NewDirSource returns a DirSource listing Dir's top-level entries, with
// the default CD image extension set.
func NewDirSource(dir string) *DirSource {
	return &DirSource{Dir: dir, CDImageExts: []string{".iso", ".bin", ".cue"}}
}

func (d *DirSource) refresh() error {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return fmt.Errorf("toolbox: read %s: %w", d.Dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	out := make([]FileEntry, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, FileEntry{Name: e.Name(), Size: info.Size(), IsDir: e.IsDir()})
	}
	d.entries = out
	return nil
}

func (d *DirSource) ListPage(page int) ([]FileEntry, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.refresh(); err != nil {
		return nil, 0, err
	}
	total := (len(d.entries) + EntriesPerPage - 1) / EntriesPerPage
	if total == 0 {
		total = 1
	}
	start := page * EntriesPerPage
	if start >= len(d.entries) {
		return nil, total, nil
	}
	end := start + EntriesPerPage
	if end > len(d.entries) {
		end = len(d.entries)
	}
	return d.entries[start:end], total, nil
}

func (d *DirSource) FileCount() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.refresh(); err != nil {
		return 0, err
	}
	return len(d.entries), nil
}

func (d *DirSource) FileByIndex(index int) (FileEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.refresh(); err != nil {
		return FileEntry{}, err
	}
	if index < 0 || index >= len(d.entries) {
		return FileEntry{}, fmt.Errorf("toolbox: index %d out of range", index)
	}
	return d.entries[index], nil
}

func (d *DirSource) ReadFileChunk(index int, offset int64, buf []byte) (int, error) {
	entry, err := d.FileByIndex(index)
	if err != nil {
		return 0, err
	}
	f, err := os.Open(filepath.Join(d.Dir, entry.Name))
	if err != nil {
		return 0, fmt.Errorf("toolbox: open %s: %w", entry.Name, err)
	}
	defer f.Close()
	n, err := f.ReadAt(buf, offset)
	if err != nil && n == 0 {
		return 0, nil
	}
	return n, nil
}

func (d *DirSource) BeginUpload(name string, size int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("toolbox: upload name %q must not contain a path separator", name)
	}
	f, err := os.Create(filepath.Join(d.Dir, name))
	if err != nil {
		return fmt.Errorf("toolbox: create %s: %w", name, err)
	}
	d.uploadFile = f
	d.uploadSize = size
	return nil
}

func (d *DirSource) WriteUploadChunk(data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.uploadFile == nil {
		return fmt.Errorf("toolbox: no upload in progress")
	}
	_, err := d.uploadFile.Write(data)
	return err
}

func (d *DirSource) EndUpload() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.uploadFile == nil {
		return fmt.Errorf("toolbox: no upload in progress")
	}
	err := d.uploadFile.Close()
	d.uploadFile = nil
	return err
}

func (d *DirSource) cdImages() ([]string, error) {
	if len(d.CDImageExts) == 0 {
		return nil, nil
	}
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return nil, fmt.Errorf("toolbox: read %s: %w", d.Dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, want := range d.CDImageExts {
			if ext == want {
				names = append(names, e.Name())
				break
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

func (d *DirSource) CDImageNames() ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cdImages()
}

func (d *DirSource) CDImageCount() (int, error) {
	names, err := d.CDImageNames()
	if err != nil {
		return 0, err
	}
	return len(names), nil
}

// SetNextCDImage is a no-op here: the changer's "current image" selection is
// owned by the target package (RotationState.ImageIndex/NextImageDeferred),
// not by this file listing — the bus layer is responsible for wiring a
// successful 0xD8 call through to the relevant Target.
func (d *DirSource) SetNextCDImage() error { return nil }

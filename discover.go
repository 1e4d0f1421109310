package cab

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DiscoverVolumes returns the paths of a cabinet set, starting with first and
// following the next cabinet names stored in each header. Names are looked up
// in the directory of first, ignoring case if there is no exact match.
func DiscoverVolumes(first string) ([]string, error) {
	dir := filepath.Dir(first)
	names, err := DiscoverVolumesFS(os.DirFS(dir), filepath.Base(first))
	if err != nil {
		return nil, err
	}
	for i, name := range names {
		names[i] = filepath.Join(dir, filepath.FromSlash(name))
	}
	return names, nil
}

// DiscoverVolumesFS works like DiscoverVolumes but uses the provided file system.
func DiscoverVolumesFS(fsys fs.FS, first string) ([]string, error) {
	var vols []string
	seen := make(map[string]bool)
	name := first
	for {
		key := strings.ToLower(name)
		if seen[key] {
			return nil, fmt.Errorf("cab: cabinet set loops back to %s", name)
		}
		seen[key] = true

		v, err := readVolumeHeader(fsys, name)
		if err != nil {
			if len(vols) == 0 {
				return nil, err
			}
			// A missing or unreadable successor ends the set; opening reports the gap
			break
		}
		vols = append(vols, name)
		if v.Flags&FlagNextCabinet == 0 || v.NextFile == "" {
			break
		}
		next, ok := lookupName(fsys, path.Dir(name), baseName(v.NextFile))
		if !ok {
			break
		}
		name = next
	}
	return vols, nil
}

func readVolumeHeader(fsys fs.FS, name string) (*Volume, error) {
	f, size, r, err := openVolumeFile(fsys, name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	o := defaultOptions()
	v := &Volume{Name: name, r: io.NewSectionReader(r, 0, size)}
	if err := decodeHeader(newCursor(v.r), v, &o); err != nil {
		return nil, err
	}
	return v, nil
}

// openVolumeFile opens a file for random access. Files that do not support
// it are read into memory.
func openVolumeFile(fsys fs.FS, name string) (fs.File, int64, io.ReaderAt, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, 0, nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, nil, err
	}
	if stat.IsDir() {
		f.Close()
		return nil, 0, nil, fmt.Errorf("cab: %s is a directory", name)
	}
	if r, ok := f.(io.ReaderAt); ok {
		return f, stat.Size(), r, nil
	}
	data, err := io.ReadAll(f)
	if err != nil {
		f.Close()
		return nil, 0, nil, err
	}
	return f, int64(len(data)), bytes.NewReader(data), nil
}

func lookupName(fsys fs.FS, dir, name string) (string, bool) {
	exact := path.Join(dir, name)
	if _, err := fs.Stat(fsys, exact); err == nil {
		return exact, true
	}
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(entry.Name(), name) {
			return path.Join(dir, entry.Name()), true
		}
	}
	return "", false
}

// OpenFile opens the cabinet at path together with all following volumes of
// its set. The files are closed by Cabinet.Close.
func OpenFile(name string, opts ...Option) (*Cabinet, error) {
	return OpenFS(os.DirFS(filepath.Dir(name)), filepath.Base(name), opts...)
}

// OpenFS works like OpenFile but uses the provided file system.
func OpenFS(fsys fs.FS, first string, opts ...Option) (*Cabinet, error) {
	names, err := DiscoverVolumesFS(fsys, first)
	if err != nil {
		return nil, err
	}
	var sources []VolumeSource
	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			c.Close()
		}
	}
	for _, name := range names {
		f, size, r, err := openVolumeFile(fsys, name)
		if err != nil {
			closeAll()
			return nil, err
		}
		closers = append(closers, f)
		sources = append(sources, VolumeSource{Name: name, ReaderAt: r, Size: size})
	}
	c, err := OpenVolumes(sources, opts...)
	if err != nil {
		closeAll()
		return nil, err
	}
	c.closers = closers
	return c, nil
}

// IsCabinet reports whether the file starts with the cabinet signature.
func IsCabinet(r io.ReaderAt) bool {
	var sig [4]byte
	if _, err := r.ReadAt(sig[:], 0); err != nil {
		return false
	}
	return sig == signature
}

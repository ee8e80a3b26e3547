package manifest

import (
	"os"
	"path/filepath"
)

// Metadata describes a path selected by the user.
//
// Metadata is advisory and independent of Collect.
type Metadata struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	IsDir     bool   `json:"isDir"`
	IsSymlink bool   `json:"isSymlink"`
	Size      int64  `json:"size"`
	// Error is not empty if the path (or the symlink's target) cannot be described.
	Error string `json:"error,omitempty"`
}

// Inspect describes each of the given paths.
//
// Symlinks are resolved separately from the link itself so the caller can tell "is a symlink" apart from "the
// symlink's target is a directory". Failures are reported per path in Metadata.Error.
func Inspect(paths []string) []Metadata {
	ms := make([]Metadata, 0, len(paths))

	for _, p := range paths {
		m := Metadata{Path: p, Name: filepath.Base(p)}

		lfi, err := os.Lstat(p)
		if err != nil {
			m.Error = err.Error()
			ms = append(ms, m)
			continue
		}

		fi := lfi
		if m.IsSymlink = lfi.Mode()&os.ModeSymlink != 0; m.IsSymlink {
			if fi, err = os.Stat(p); err != nil {
				m.Error = err.Error()
				ms = append(ms, m)
				continue
			}
		}

		if m.IsDir = fi.IsDir(); !m.IsDir {
			m.Size = fi.Size()
		}

		ms = append(ms, m)
	}

	return ms
}

// Package util contains the file naming helpers shared by the command line and the server.
package util

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ReserveFile creates an empty file that did not exist prior to this call and returns its name.
//
// The first argument is the parent directory of the file to be created, the second the stem and the third the
// extension. If "stem+ext" already exists, numeric suffixes are tried in order: "stem-1+ext", "stem-2+ext", etc. Use
// StemAndExt to split an existing name so that "docs.tar.gz" becomes "docs-1.tar.gz" instead of "docs.tar-1.gz".
//
// The file is only a placeholder so that two jobs never pick the same name; the archive is later renamed over it.
// Caller should remove the file if the job fails.
func ReserveFile(parent, stem, ext string) (name string, err error) {
	name = filepath.Join(parent, stem+ext)
	for i := 0; ; {
		f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		switch {
		case err == nil:
			if err = f.Close(); err != nil {
				return "", fmt.Errorf("close file \"%s\" error: %w", name, err)
			}

			return name, nil
		case errors.Is(err, fs.ErrExist):
			i++
			name = filepath.Join(parent, fmt.Sprintf("%s-%d%s", stem, i, ext))
		default:
			return "", fmt.Errorf("create file \"%s\" error: %w", name, err)
		}
	}
}

// MkExclDir creates a new child directory that did not exist prior to this call and returns its name.
//
// stem is the desired name of the directory. The actual directory that is created might have numeric suffixes such as
// stem-1, stem-2, etc.
func MkExclDir(parent, stem string, perm os.FileMode) (name string, err error) {
	name = filepath.Join(parent, stem)
	for i := 0; ; {
		switch err = os.Mkdir(name, perm); {
		case err == nil:
			return name, nil
		case errors.Is(err, fs.ErrExist):
			i++
			name = filepath.Join(parent, fmt.Sprintf("%s-%d", stem, i))
		default:
			return "", fmt.Errorf("create directory \"%s\" error: %w", name, err)
		}
	}
}

// DirBase joins both filepath.Dir and filepath.Base for the given file name.
//
// Printing both the parent directory and the base name makes it clearer where a file is when the working directory
// is not obvious.
func DirBase(name string) string {
	dir := filepath.Dir(name)
	base := filepath.Base(name)
	if dir != "" && dir != "." {
		return filepath.Join(filepath.Base(dir), base)
	}

	abs, err := filepath.Abs(name)
	if err == nil {
		return filepath.Join(filepath.Base(filepath.Dir(abs)), base)
	}

	return base
}

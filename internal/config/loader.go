package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-ini/ini"
)

// FileName is the name of the configuration file.
const FileName = ".sealer"

// Loader can be used for loading .sealer configuration.
type Loader struct {
	// Dir is the directory where the search for FileName starts.
	//
	// Default to the working directory.
	Dir string

	cfg *ini.File
}

// Load will traverse the directory hierarchy upwards to find the first ".sealer" file available and load its
// contents into the Loader.
//
// The name of the .sealer file is returned, or an empty string if none was found in which case every setting keeps
// its default value.
func (l *Loader) Load(ctx context.Context) (string, error) {
	cur := l.Dir
	if cur == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}

		cur = wd
	}

	cur, err := filepath.Abs(cur)
	if err != nil {
		return "", err
	}

	var path string
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		path = filepath.Join(cur, FileName)
		fi, err := os.Stat(path)
		if err == nil && !fi.IsDir() {
			break
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			l.cfg = ini.Empty()
			return "", nil
		}

		cur = parent
	}

	l.cfg, err = ini.Load(path)
	if err != nil {
		l.cfg = ini.Empty()
		return path, err
	}

	return path, nil
}

func (l *Loader) file() *ini.File {
	if l.cfg == nil {
		l.cfg = ini.Empty()
	}

	return l.cfg
}

// DefaultLoader is the default Loader instance for package-level methods.
var DefaultLoader = &Loader{cfg: ini.Empty()}

// Load calls Loader.Load on the DefaultLoader instance.
func Load(ctx context.Context) (string, error) {
	return DefaultLoader.Load(ctx)
}

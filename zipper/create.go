package zipper

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nguyengg/sealer/errs"
	"github.com/nguyengg/sealer/manifest"
	"github.com/nguyengg/sealer/progress"
	"github.com/sirupsen/logrus"
)

// Create writes the archive (see Write) to the named output file.
//
// The archive is first written to a temporary file in the same directory as output, then renamed to output only after
// it has been finalised and flushed to disk. On any error, including cancellation, the temporary file is removed so no
// truncated archive is ever left behind; a pre-existing file at output is left untouched.
func Create(ctl *progress.Controller, m *manifest.Manifest, output string, password string, method Method, optFns ...func(*Options)) (err error) {
	opts := newOptions(optFns...)

	f, err := CreateTemp(output)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = f.Close()
			RemoveQuietly(opts.Logger, f.Name())
		}
	}()

	if err = Write(ctl, m, f, password, method, func(o *Options) {
		*o = *opts
	}); err != nil {
		return err
	}

	return Commit(f, output)
}

// CreateTemp creates the temporary file that will be renamed to output by Commit.
func CreateTemp(output string) (*os.File, error) {
	f, err := os.CreateTemp(filepath.Dir(output), "."+filepath.Base(output)+".*.partial")
	if err != nil {
		return nil, errs.New(errs.IO, "create output file", output, err)
	}

	return f, nil
}

// Commit syncs and closes f, then renames it to output.
//
// f is not removed on error; the caller is responsible for that.
func Commit(f *os.File, output string) error {
	if err := f.Chmod(0644); err != nil {
		return errs.New(errs.IO, "change output file mode", f.Name(), err)
	}

	if err := f.Sync(); err != nil {
		return errs.New(errs.IO, "flush output file", f.Name(), err)
	}

	if err := f.Close(); err != nil {
		return errs.New(errs.IO, "close output file", f.Name(), err)
	}

	if err := os.Rename(f.Name(), output); err != nil {
		return errs.New(errs.IO, "rename output file", output, err)
	}

	return nil
}

// RemoveQuietly removes the named file, logging instead of returning any error other than fs.ErrNotExist.
func RemoveQuietly(logger logrus.FieldLogger, name string) {
	if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.WithError(err).WithField("file", name).Warn("clean up partial output error")
	}
}

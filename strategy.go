package sealer

import (
	"os"
	"path/filepath"
	"time"

	"github.com/nguyengg/sealer/errs"
	"github.com/nguyengg/sealer/manifest"
	"github.com/nguyengg/sealer/progress"
	"github.com/nguyengg/sealer/solid"
	"github.com/nguyengg/sealer/zipper"
)

// archiver writes the archive of one EncryptionMethod.
type archiver interface {
	// Name returns the name of the method for logging.
	Name() string
	// Ext returns the file name extension of the archives it writes.
	Ext() string
	// Write writes the archive of m to output.
	//
	// Write must leave nothing at output on error.
	Write(ctl *progress.Controller, m *manifest.Manifest, output, password string) error
}

func (e *Engine) archiverFor(method EncryptionMethod) (archiver, error) {
	switch method {
	case StrongZip:
		return &zipArchiver{method: zipper.AES256, opts: &e.opts}, nil
	case LegacyZip:
		return &zipArchiver{method: zipper.ZipCrypto, opts: &e.opts}, nil
	case SolidArchive:
		return &solidArchiver{opts: &e.opts}, nil
	default:
		return nil, errs.Errorf(errs.Format, "select encryption method", "", "unknown encryption method %s", method)
	}
}

// zipArchiver streams files straight into an encrypted ZIP archive.
type zipArchiver struct {
	method zipper.Method
	opts   *Options
}

var _ archiver = &zipArchiver{}

func (a *zipArchiver) Name() string {
	return a.method.String()
}

func (a *zipArchiver) Ext() string {
	return ".zip"
}

func (a *zipArchiver) Write(ctl *progress.Controller, m *manifest.Manifest, output, password string) error {
	return zipper.Create(ctl, m, output, password, a.method, func(opts *zipper.Options) {
		opts.BufferSize = a.opts.BufferSize
		opts.Logger = a.opts.Logger
	})
}

// solidArchiver copies the selection into a staging directory, then compresses the whole directory at once.
//
// Copying is reported as the first half of the progress. The compression reports no progress, so it is approximated
// with synthetic advances up to 95%.
type solidArchiver struct {
	opts *Options
}

var _ archiver = &solidArchiver{}

func (a *solidArchiver) Name() string {
	return "solid/" + a.opts.Codec.Name()
}

func (a *solidArchiver) Ext() string {
	return solid.Ext
}

func (a *solidArchiver) Write(ctl *progress.Controller, m *manifest.Manifest, output, password string) (err error) {
	staging, err := os.MkdirTemp("", "sealer-staging-*")
	if err != nil {
		return errs.New(errs.IO, "create staging directory", "", err)
	}

	defer func() {
		if rmErr := os.RemoveAll(staging); rmErr != nil {
			a.opts.Logger.WithError(rmErr).WithField("dir", staging).Warn("clean up staging directory error")
		}
	}()

	ctl.SetTotal(m.TotalBytes)
	ctl.Phase(0, 50)
	if err = a.stage(ctl, m, staging); err != nil {
		return err
	}

	f, err := zipper.CreateTemp(output)
	if err != nil {
		return err
	}

	ctl.Status("compressing " + filepath.Base(output))
	stop := ctl.Simulate(2, 250*time.Millisecond, 95)
	err = solid.CompressDir(ctl.Context(), staging, f, password, func(opts *solid.Options) {
		opts.Codec = a.opts.Codec
		opts.KDF = a.opts.KDF
	})
	stop()

	if err == nil {
		err = zipper.Commit(f, output)
	}
	if err != nil {
		_ = f.Close()
		zipper.RemoveQuietly(a.opts.Logger, f.Name())
		return err
	}

	return nil
}

// stage replicates every entry of m under dir.
func (a *solidArchiver) stage(ctl *progress.Controller, m *manifest.Manifest, dir string) error {
	buf := make([]byte, a.opts.BufferSize)

	for _, e := range m.Entries {
		if err := ctl.Check(); err != nil {
			return err
		}

		dst := filepath.Join(dir, filepath.FromSlash(e.RelPath))
		if e.IsDir {
			if err := os.MkdirAll(dst, 0755); err != nil {
				return errs.New(errs.IO, "create staging directory", dst, err)
			}

			continue
		}

		ctl.Status("staging " + e.RelPath)
		if err := stageFile(ctl, e, dst, buf); err != nil {
			return err
		}
	}

	return nil
}

func stageFile(ctl *progress.Controller, e manifest.Entry, dst string, buf []byte) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errs.New(errs.IO, "create staging directory", filepath.Dir(dst), err)
	}

	src, err := os.Open(e.AbsPath)
	if err != nil {
		return errs.New(errs.IO, "open file", e.AbsPath, err)
	}
	defer src.Close()

	w, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return errs.New(errs.IO, "create staging file", dst, err)
	}

	if _, err = progress.CopyBuffer(ctl, w, src, buf); err != nil {
		_ = w.Close()
		return errs.Wrap(err, errs.IO, "stage file", e.AbsPath)
	}

	if err = w.Close(); err != nil {
		return errs.New(errs.IO, "close staging file", dst, err)
	}

	return nil
}

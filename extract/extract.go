// Package extract safely extracts password-protected ZIP, 7z and solid archives.
//
// Extraction runs in three phases so that hostile archives are rejected before anything is written:
//
//  1. every entry is listed and the entry count and advertised uncompressed size are checked against the limits.
//  2. the password is verified.
//  3. entries are written, each one through SafeJoin and VerifyParent, with the limits checked again against the bytes
//     actually written since archive headers can lie.
package extract

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/nguyengg/sealer/errs"
	"github.com/nguyengg/sealer/progress"
	"github.com/sirupsen/logrus"
)

const (
	// MaxEntries is the maximum number of entries (files and directories) an archive may contain.
	MaxEntries = 10_000
	// MaxTotalBytes is the maximum total uncompressed size of all files in an archive.
	MaxTotalBytes int64 = 10 << 30
)

// Options customises Extract.
type Options struct {
	// BufferSize is the length of the buffer used to copy file contents out of the archive.
	//
	// Default to progress.DefaultChunkSize.
	BufferSize int

	// Logger receives warnings about skipped entries and failed clean-ups.
	//
	// Default to logrus.StandardLogger.
	Logger logrus.FieldLogger

	// maxEntries and maxTotalBytes are only ever lowered by tests.
	maxEntries    int
	maxTotalBytes int64
}

// Extract extracts the named archive into dir, creating dir if it does not exist.
//
// The archive format is determined by Detect. File entries are written with O_EXCL so existing files are never
// overwritten; directory entries are created as needed; symlinks and other special entries are skipped with a
// warning. Returns the canonical path of dir.
//
// Errors are classified: errs.ResourceLimit and errs.InvalidPassword are returned before anything is written,
// errs.PathTraversal stops extraction at the offending entry, errs.Cancelled is returned when ctl is cancelled.
// Entries extracted before a failure are kept, but a partially written file is removed.
func Extract(ctl *progress.Controller, name, dir, password string, optFns ...func(*Options)) (string, error) {
	opts := &Options{
		BufferSize:    progress.DefaultChunkSize,
		Logger:        logrus.StandardLogger(),
		maxEntries:    MaxEntries,
		maxTotalBytes: MaxTotalBytes,
	}
	for _, fn := range optFns {
		fn(opts)
	}

	ctx := ctl.Context()

	format, err := Detect(ctx, name)
	if err != nil {
		return "", err
	}

	r, err := open(format, name, password)
	if err != nil {
		return "", err
	}
	defer r.Close()

	ctl.Status("listing " + filepath.Base(name))
	n, total, err := list(ctl, r, opts)
	if err != nil {
		return "", err
	}

	if err = r.verify(ctx); err != nil {
		return "", err
	}

	opts.Logger.WithFields(logrus.Fields{
		"format":  format,
		"entries": n,
		"size":    humanize.IBytes(uint64(total)),
	}).Debug("archive verified")

	root, err := makeRoot(dir)
	if err != nil {
		return "", err
	}

	x := &extractor{
		ctl:    ctl,
		r:      r,
		root:   root,
		opts:   opts,
		buf:    make([]byte, opts.BufferSize),
		budget: opts.maxTotalBytes,
	}

	ctl.SetTotal(total)
	if err = x.extractAll(); err != nil {
		return root, err
	}

	return root, nil
}

// list counts the entries and sums the advertised sizes of file entries, failing as soon as a limit is exceeded.
func list(ctl *progress.Controller, r reader, opts *Options) (n int, total int64, err error) {
	for e, err := range r.entries() {
		if err != nil {
			return n, total, err
		}

		if err = ctl.Check(); err != nil {
			return n, total, err
		}

		if n++; n > opts.maxEntries {
			return n, total, errs.Errorf(errs.ResourceLimit, "list entries", "", "archive has more than %d entries", opts.maxEntries)
		}

		if e.mode.IsRegular() {
			if e.size < 0 || e.size > opts.maxTotalBytes-total {
				return n, total, errs.Errorf(errs.ResourceLimit, "list entries", "", "archive expands to more than %s", humanize.IBytes(uint64(opts.maxTotalBytes)))
			}

			total += e.size
		}
	}

	return n, total, nil
}

// makeRoot creates dir if needed and returns its canonical path.
func makeRoot(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errs.New(errs.IO, "create output directory", dir, err)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errs.New(errs.IO, "resolve output directory", dir, err)
	}

	root, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", errs.New(errs.IO, "resolve output directory", dir, err)
	}

	return root, nil
}

type extractor struct {
	ctl  *progress.Controller
	r    reader
	root string
	opts *Options
	buf  []byte
	// budget is the number of bytes that may still be written before the size limit is exceeded.
	budget int64
	count  int
}

func (x *extractor) extractAll() error {
	for e, err := range x.r.entries() {
		if err != nil {
			return err
		}

		if err = x.ctl.Check(); err != nil {
			return err
		}

		// the listing may not match what is read the second time round.
		if x.count++; x.count > x.opts.maxEntries {
			return errs.Errorf(errs.ResourceLimit, "extract entries", "", "archive has more than %d entries", x.opts.maxEntries)
		}

		switch {
		case e.mode.IsDir():
			err = x.mkdir(e)
		case e.mode.IsRegular():
			err = x.writeFile(e)
		default:
			x.opts.Logger.WithFields(logrus.Fields{
				"entry": e.name,
				"type":  e.mode.Type().String(),
			}).Warn("skipping special entry")
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func (x *extractor) mkdir(e *entry) error {
	p, err := SafeJoin(x.root, e.name)
	if err != nil {
		// "./" and the like name the destination itself.
		if errors.Is(err, errs.PathTraversal) && isSelf(e.name) {
			return nil
		}

		return err
	}

	if err = os.MkdirAll(p, 0755); err != nil {
		return errs.New(errs.IO, "create directory", p, err)
	}

	return VerifyParent(x.root, p)
}

func (x *extractor) writeFile(e *entry) (err error) {
	p, err := SafeJoin(x.root, e.name)
	if err != nil {
		return err
	}

	if err = os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return errs.New(errs.IO, "create directory", filepath.Dir(p), err)
	}

	if err = VerifyParent(x.root, p); err != nil {
		return err
	}

	x.ctl.Status("extracting " + e.name)

	w, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, e.mode.Perm()|0600)
	if err != nil {
		return errs.New(errs.IO, "create file", p, err)
	}

	defer func() {
		if err != nil {
			_ = w.Close()
			if rmErr := os.Remove(p); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				x.opts.Logger.WithError(rmErr).WithField("file", p).Warn("clean up partial file error")
			}
		}
	}()

	rc, err := e.open()
	if err != nil {
		return x.r.classify(err, e.name)
	}
	defer rc.Close()

	bw := &budgetWriter{w: w, name: p, budget: &x.budget, limit: x.opts.maxTotalBytes}
	if _, err = progress.CopyBuffer(x.ctl, bw, rc, x.buf); err != nil {
		return x.r.classify(err, e.name)
	}

	if err = w.Close(); err != nil {
		return errs.New(errs.IO, "close file", p, err)
	}

	return nil
}

// budgetWriter fails with errs.ResourceLimit once more than budget bytes would have been written.
//
// Write errors from the underlying file are classified as errs.IO here so they are not mistaken for archive read
// errors by the caller.
type budgetWriter struct {
	w      io.Writer
	name   string
	budget *int64
	limit  int64
}

func (b *budgetWriter) Write(p []byte) (int, error) {
	if int64(len(p)) > *b.budget {
		return 0, errs.Errorf(errs.ResourceLimit, "write file", b.name, "archive expands to more than %s", humanize.IBytes(uint64(b.limit)))
	}

	n, err := b.w.Write(p)
	*b.budget -= int64(n)
	if err != nil {
		return n, errs.New(errs.IO, "write file", b.name, err)
	}

	return n, nil
}

func isSelf(name string) bool {
	return path.Clean(strings.ReplaceAll(name, `\`, "/")) == "."
}

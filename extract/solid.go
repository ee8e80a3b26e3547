package extract

import (
	"context"
	"io"
	"iter"
	"os"

	"github.com/nguyengg/sealer/errs"
	"github.com/nguyengg/sealer/solid"
)

// solidReader reads solid archives.
//
// The archive is a single sealed stream, so every call to entries decrypts it again from the start. The password is
// verified once when the archive is opened.
type solidReader struct {
	name     string
	f        *os.File
	password string
}

var _ reader = &solidReader{}

func openSolid(name, password string) (*solidReader, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errs.New(errs.IO, "open solid archive", name, err)
	}

	r, err := solid.NewReader(f, password)
	if err != nil {
		_ = f.Close()
		return nil, errs.Wrap(err, errs.Format, "open solid archive", name)
	}
	_ = r.Close()

	return &solidReader{name: name, f: f, password: password}, nil
}

func (r *solidReader) entries() iter.Seq2[*entry, error] {
	return func(yield func(*entry, error) bool) {
		if _, err := r.f.Seek(0, io.SeekStart); err != nil {
			yield(nil, errs.New(errs.IO, "seek solid archive", r.name, err))
			return
		}

		sr, err := solid.NewReader(r.f, r.password)
		if err != nil {
			yield(nil, err)
			return
		}
		defer sr.Close()

		for e, err := range sr.Entries() {
			if err != nil {
				yield(nil, err)
				return
			}

			if !yield(&entry{
				name:      e.Name(),
				mode:      e.FileInfo().Mode(),
				size:      e.Size,
				encrypted: true,
				open: func() (io.ReadCloser, error) {
					return io.NopCloser(e), nil
				},
			}, nil) {
				return
			}
		}
	}
}

func (r *solidReader) verify(context.Context) error {
	return nil
}

func (r *solidReader) classify(err error, name string) error {
	return errs.Wrap(err, errs.Format, "read entry", name)
}

func (r *solidReader) Close() error {
	return r.f.Close()
}

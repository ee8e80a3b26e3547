package extract

import (
	"compress/flate"
	"context"
	"errors"
	"io"
	"io/fs"
	"iter"

	"github.com/nguyengg/sealer/errs"
	"github.com/yeka/zip"
)

// zipReader reads ZIP archives whose entries are encrypted with AES (WinZip AE-1/AE-2) or ZipCrypto.
type zipReader struct {
	name     string
	rc       *zip.ReadCloser
	password string
}

var _ reader = &zipReader{}

func openZip(name, password string) (*zipReader, error) {
	rc, err := zip.OpenReader(name)
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil, errs.New(errs.IO, "open zip archive", name, err)
		}

		return nil, errs.New(errs.Format, "open zip archive", name, err)
	}

	return &zipReader{name: name, rc: rc, password: password}, nil
}

func (r *zipReader) entries() iter.Seq2[*entry, error] {
	return func(yield func(*entry, error) bool) {
		for _, f := range r.rc.File {
			e := &entry{
				name:      f.Name,
				mode:      f.Mode(),
				size:      int64(f.UncompressedSize64),
				encrypted: f.IsEncrypted(),
				open: func() (io.ReadCloser, error) {
					if f.IsEncrypted() {
						f.SetPassword(r.password)
					}

					return f.Open()
				},
			}

			if !yield(e, nil) {
				return
			}
		}
	}
}

func (r *zipReader) verify(ctx context.Context) error {
	e, err := smallestEncrypted(r)
	if err != nil || e == nil {
		return err
	}

	switch err = drain(ctx, e); {
	case err == nil:
		return nil
	case errs.KindOf(err) == errs.Cancelled:
		return err
	default:
		// a wrong ZipCrypto key turns the entry into garbage which can fail to decode in any number of ways.
		return errs.Wrap(err, errs.InvalidPassword, "decrypt entry", e.name)
	}
}

// classify reports the failures that a wrong password produces as errs.InvalidPassword.
//
// An AES entry fails its password verifier outright. ZipCrypto has no reliable verifier, so a wrong password only
// surfaces as garbage that fails to inflate or fails the CRC check.
func (r *zipReader) classify(err error, name string) error {
	var corrupt flate.CorruptInputError

	switch {
	case errors.Is(err, zip.ErrPassword),
		errors.Is(err, zip.ErrChecksum),
		errors.As(err, &corrupt),
		errors.Is(err, io.ErrUnexpectedEOF):
		return errs.Wrap(err, errs.InvalidPassword, "decrypt entry", name)
	default:
		return errs.Wrap(err, errs.Format, "read entry", name)
	}
}

func (r *zipReader) Close() error {
	return r.rc.Close()
}

package extract

import (
	"context"
	"errors"
	"io/fs"
	"iter"

	"github.com/bodgit/sevenzip"
	"github.com/nguyengg/sealer/errs"
)

// sevenZipReader reads 7-Zip archives, optionally AES-encrypted.
type sevenZipReader struct {
	name string
	rc   *sevenzip.ReadCloser
}

var _ reader = &sevenZipReader{}

func openSevenZip(name, password string) (*sevenZipReader, error) {
	rc, err := sevenzip.OpenReaderWithPassword(name, password)
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil, errs.New(errs.IO, "open 7z archive", name, err)
		}

		// archives with encrypted headers cannot even be listed with a wrong password.
		return nil, sevenZipError(err, "open 7z archive", name)
	}

	return &sevenZipReader{name: name, rc: rc}, nil
}

func (r *sevenZipReader) entries() iter.Seq2[*entry, error] {
	return func(yield func(*entry, error) bool) {
		for _, f := range r.rc.File {
			fi := f.FileInfo()

			// 7z does not say which folders are encrypted without decoding them, so every file is a candidate.
			e := &entry{
				name:      f.Name,
				mode:      fi.Mode(),
				size:      int64(f.UncompressedSize),
				encrypted: !fi.IsDir(),
				open:      f.Open,
			}

			if !yield(e, nil) {
				return
			}
		}
	}
}

func (r *sevenZipReader) verify(ctx context.Context) error {
	e, err := smallestEncrypted(r)
	if err != nil || e == nil {
		return err
	}

	if err = drain(ctx, e); err != nil {
		return r.classify(err, e.name)
	}

	return nil
}

func (r *sevenZipReader) classify(err error, name string) error {
	return sevenZipError(err, "read entry", name)
}

func sevenZipError(err error, op, name string) error {
	var readErr *sevenzip.ReadError
	if errors.As(err, &readErr) && readErr.Encrypted {
		return errs.Wrap(err, errs.InvalidPassword, "decrypt entry", name)
	}

	return errs.Wrap(err, errs.Format, op, name)
}

func (r *sevenZipReader) Close() error {
	return r.rc.Close()
}

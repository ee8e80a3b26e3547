package extract

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"iter"

	"github.com/nguyengg/sealer/errs"
	"github.com/nguyengg/sealer/progress"
)

// entry is a file or directory in an archive being extracted.
type entry struct {
	name string
	mode fs.FileMode
	// size is the uncompressed size as advertised by the archive; it may be a lie.
	size int64
	// encrypted is true if reading the entry requires the password.
	encrypted bool
	open      func() (io.ReadCloser, error)
}

// reader is implemented by each supported archive format.
type reader interface {
	// entries produces an iterator over the archive entries in archive order.
	//
	// entries may be called more than once. The open function of an entry is only valid until the iterator advances
	// unless the format supports random access (ZIP and 7z).
	entries() iter.Seq2[*entry, error]

	// verify checks the password, typically by decrypting the smallest encrypted file entry.
	//
	// Returns an errs.InvalidPassword error if the password is wrong. An archive with no encrypted entries passes.
	verify(ctx context.Context) error

	// classify returns the error to report for a failure reading the content of an entry.
	classify(err error, name string) error

	io.Closer
}

func open(format Format, name, password string) (reader, error) {
	switch format {
	case Zip:
		return openZip(name, password)
	case SevenZip:
		return openSevenZip(name, password)
	case Solid:
		return openSolid(name, password)
	default:
		return nil, errs.Errorf(errs.Format, "open archive", name, "unsupported format %v", format)
	}
}

// smallestEncrypted returns the smallest encrypted file entry, or nil if there is none.
//
// Zero-length entries are not eligible since some formats do not run them through the cipher at all.
func smallestEncrypted(r reader) (*entry, error) {
	var smallest *entry

	for e, err := range r.entries() {
		if err != nil {
			return nil, err
		}

		if e.encrypted && e.mode.IsRegular() && e.size > 0 && (smallest == nil || e.size < smallest.size) {
			smallest = e
		}
	}

	return smallest, nil
}

// errOversized is returned by drain when an entry produces more bytes than its advertised size.
var errOversized = errors.New("entry is larger than its advertised size")

// drain reads the entry to the end, which runs its content through decryption and integrity checks.
//
// At most one byte past the advertised size is read. Getting that byte is an error since the integrity check of the
// entry would never be reached.
func drain(ctx context.Context, e *entry) error {
	rc, err := e.open()
	if err != nil {
		return err
	}
	defer rc.Close()

	n, err := progress.CopyBuffer(progress.New(ctx, nil, nil), io.Discard, io.LimitReader(rc, e.size+1), nil)
	if err == nil && n > e.size {
		return errOversized
	}

	return err
}

// Package solid reads and writes password-protected solid archives.
//
// A solid archive is a tar stream of a whole directory tree, compressed as one unit (see package codec), then
// encrypted and authenticated in fixed-size chunks with a key derived from the password by Argon2id. Unlike a ZIP
// archive, nothing about the contents (not even file names) is visible without the password.
package solid

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"

	"github.com/nguyengg/sealer/codec"
	"github.com/nguyengg/sealer/errs"
	"github.com/nguyengg/sealer/progress"
)

// Ext is the file name extension of solid archives.
const Ext = ".sxa"

// Options customises CompressDir.
type Options struct {
	// Codec is the compression codec.
	//
	// Default to codec.XzCodec.
	Codec codec.Codec

	// KDF controls the cost of deriving the key from the password.
	//
	// Default to DefaultKDF.
	KDF KDF
}

// CompressDir compresses and encrypts the contents of the named directory, writing the archive to dst.
//
// Entries are named relative to dir, so dir itself does not appear in the archive. The walk is lexical and
// depth-first; directories (including empty ones) are recorded as their own entries, symlinks are followed for files
// and skipped for directories, and other special files are skipped. CompressDir does not report progress but checks
// for cancellation of ctx between entries and while copying.
//
// On error, whatever was written to dst is not a valid archive and should be discarded.
func CompressDir(ctx context.Context, dir string, dst io.Writer, password string, optFns ...func(*Options)) error {
	opts := &Options{
		Codec: codec.XzCodec{},
		KDF:   DefaultKDF,
	}
	for _, fn := range optFns {
		fn(opts)
	}

	sw, err := newSealWriter(dst, password, opts.Codec.ID(), opts.KDF)
	if err != nil {
		return errs.Wrap(err, errs.IO, "create archive", "")
	}

	enc, err := opts.Codec.NewEncoder(sw)
	if err != nil {
		return errs.New(errs.IO, "create encoder", "", err)
	}

	tw := tar.NewWriter(enc)
	ctl := progress.New(ctx, nil, nil)
	buf := make([]byte, progress.DefaultChunkSize)

	err = filepath.WalkDir(dir, func(srcPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return errs.New(errs.IO, "walk dir", srcPath, err)
		}

		if err = ctl.Check(); err != nil {
			return err
		}

		if srcPath == dir {
			return nil
		}

		rel, err := filepath.Rel(dir, srcPath)
		if err != nil {
			return errs.New(errs.IO, "compute relative path", srcPath, err)
		}

		fi, err := os.Stat(srcPath)
		if err != nil {
			return errs.New(errs.IO, "stat file", srcPath, err)
		}

		switch {
		case fi.IsDir():
			if d.Type()&fs.ModeSymlink != 0 {
				return nil
			}

			return writeHeader(tw, fi, filepath.ToSlash(rel)+"/")

		case fi.Mode().IsRegular():
			if err = writeHeader(tw, fi, filepath.ToSlash(rel)); err != nil {
				return err
			}

			return addFile(ctl, tw, srcPath, buf)

		default:
			return nil
		}
	})
	if err != nil {
		return err
	}

	if err = tw.Close(); err != nil {
		return errs.New(errs.IO, "close tar writer", "", err)
	}
	if err = enc.Close(); err != nil {
		return errs.New(errs.IO, "close encoder", "", err)
	}
	if err = sw.Close(); err != nil {
		return errs.New(errs.IO, "close archive", "", err)
	}

	return nil
}

func writeHeader(tw *tar.Writer, fi os.FileInfo, name string) error {
	hdr, err := tar.FileInfoHeader(fi, "")
	if err != nil {
		return errs.New(errs.IO, "create tar header", name, err)
	}

	// ownership is meaningless on the extracting side.
	hdr.Name = name
	hdr.Uid, hdr.Gid, hdr.Uname, hdr.Gname = 0, 0, "", ""

	if err = tw.WriteHeader(hdr); err != nil {
		return errs.New(errs.IO, "write tar header", name, err)
	}

	return nil
}

func addFile(ctl *progress.Controller, w io.Writer, name string, buf []byte) error {
	src, err := os.Open(name)
	if err != nil {
		return errs.New(errs.IO, "open file", name, err)
	}
	defer src.Close()

	if _, err = progress.CopyBuffer(ctl, w, src, buf); err != nil {
		return errs.Wrap(err, errs.IO, "add file to archive", name)
	}

	return nil
}

// Reader reads the entries of a solid archive.
type Reader struct {
	sr  *sealReader
	dec io.ReadCloser
	tr  *tar.Reader
}

// NewReader verifies the password and prepares to read entries from src.
//
// The password is checked before any entry is decoded: a wrong password is reported as an errs.InvalidPassword error
// here. A header that is not a solid archive is an errs.Format error.
func NewReader(src io.Reader, password string) (*Reader, error) {
	sr, id, err := openSeal(src, password)
	if err != nil {
		return nil, err
	}

	c, ok := codec.FromID(id)
	if !ok {
		return nil, errs.Errorf(errs.Format, "read header", "", "unknown codec %d", id)
	}

	dec, err := c.NewDecoder(sr)
	if err != nil {
		return nil, errs.Wrap(err, errs.Format, "create decoder", "")
	}

	return &Reader{
		sr:  sr,
		dec: dec,
		tr:  tar.NewReader(dec),
	}, nil
}

// Entry is a file or directory in a solid archive.
//
// Read returns the content of the current file entry and is only valid until the iterator advances.
type Entry struct {
	*tar.Header
	io.Reader
}

// Name returns the slash-separated name of the entry, with directory names having no trailing slash.
func (e *Entry) Name() string {
	return path.Clean(e.Header.Name)
}

// Entries produces an iterator over the entries in archive order.
//
// Iteration stops at the first error, which is classified as errs.Format unless it is already a classified error.
func (r *Reader) Entries() iter.Seq2[*Entry, error] {
	return func(yield func(*Entry, error) bool) {
		for {
			hdr, err := r.tr.Next()
			if err == io.EOF {
				// drain the padding after the tar trailer so the final chunk is authenticated.
				if _, err = io.Copy(io.Discard, r.dec); err == nil {
					return
				}
			}

			if err != nil {
				yield(nil, errs.Wrap(err, errs.Format, "read entry", ""))
				return
			}

			if !yield(&Entry{Header: hdr, Reader: r.tr}, nil) {
				return
			}
		}
	}
}

// Close releases the decoder but does not close the underlying io.Reader.
func (r *Reader) Close() error {
	if err := r.dec.Close(); err != nil {
		return fmt.Errorf("close decoder error: %w", err)
	}

	return nil
}

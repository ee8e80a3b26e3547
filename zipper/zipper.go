// Package zipper creates password-protected ZIP archives from a manifest.
//
// Files are streamed into the archive in fixed-size chunks; every chunk polls the progress.Controller for cancellation
// and reports its size. Directories are kept as explicit records so empty directories survive a round trip.
package zipper

import (
	"fmt"
	"io"
	"os"

	"github.com/nguyengg/sealer/errs"
	"github.com/nguyengg/sealer/manifest"
	"github.com/nguyengg/sealer/progress"
	"github.com/sirupsen/logrus"
	"github.com/yeka/zip"
)

// Method is the per-entry encryption scheme of the archive.
type Method int

const (
	// AES256 uses WinZip AE-2 encryption with a 256-bit AES key.
	AES256 Method = iota + 1
	// ZipCrypto uses the legacy PKWARE "traditional" encryption.
	//
	// ZipCrypto is weak and exists for compatibility with tools that cannot read AES-encrypted entries.
	ZipCrypto
)

func (m Method) String() string {
	switch m {
	case AES256:
		return "AES-256"
	case ZipCrypto:
		return "ZipCrypto"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

func (m Method) encryption() (zip.EncryptionMethod, error) {
	switch m {
	case AES256:
		return zip.AES256Encryption, nil
	case ZipCrypto:
		return zip.StandardEncryption, nil
	default:
		return 0, errs.Errorf(errs.Format, "select encryption", "", "unknown method %v", m)
	}
}

// Options customises Write and Create.
type Options struct {
	// BufferSize is the length of the buffer used to copy files into the archive.
	//
	// BufferSize bounds the amount of work done between two cancellation checks. Default to
	// progress.DefaultChunkSize.
	BufferSize int

	// Logger receives warnings about failed clean-ups.
	//
	// Default to logrus.StandardLogger.
	Logger logrus.FieldLogger
}

func newOptions(optFns ...func(*Options)) *Options {
	opts := &Options{
		BufferSize: progress.DefaultChunkSize,
		Logger:     logrus.StandardLogger(),
	}
	for _, fn := range optFns {
		fn(opts)
	}

	return opts
}

// Write writes every entry of the manifest, in order, to a new ZIP archive written to dst.
//
// Each file entry is encrypted with the given password and method and compressed with Deflate. The archive's central
// directory is written only after every entry has been added successfully; on error, whatever was written to dst is
// not a valid archive and should be discarded (see Create).
func Write(ctl *progress.Controller, m *manifest.Manifest, dst io.Writer, password string, method Method, optFns ...func(*Options)) error {
	opts := newOptions(optFns...)

	enc, err := method.encryption()
	if err != nil {
		return err
	}

	ctl.SetTotal(m.TotalBytes)

	zw := zip.NewWriter(dst)
	buf := make([]byte, opts.BufferSize)

	for _, e := range m.Entries {
		if err = ctl.Check(); err != nil {
			return err
		}

		if e.IsDir {
			fh := &zip.FileHeader{
				Name:   e.RelPath + "/",
				Method: zip.Store,
			}
			fh.SetMode(os.ModeDir | 0755)

			if _, err = zw.CreateHeader(fh); err != nil {
				return errs.New(errs.IO, "create directory record", e.RelPath, err)
			}

			continue
		}

		ctl.Status("adding " + e.RelPath)

		w, err := zw.Encrypt(e.RelPath, password, enc)
		if err != nil {
			return errs.New(errs.IO, "create file record", e.RelPath, err)
		}

		if err = addFile(ctl, w, e, buf); err != nil {
			return err
		}
	}

	if err = zw.Close(); err != nil {
		return errs.New(errs.IO, "write central directory", "", err)
	}

	return nil
}

func addFile(ctl *progress.Controller, w io.Writer, e manifest.Entry, buf []byte) error {
	src, err := os.Open(e.AbsPath)
	if err != nil {
		return errs.New(errs.IO, "open file", e.AbsPath, err)
	}
	defer src.Close()

	if _, err = progress.CopyBuffer(ctl, w, src, buf); err != nil {
		return errs.Wrap(err, errs.IO, "add file to archive", e.AbsPath)
	}

	return nil
}

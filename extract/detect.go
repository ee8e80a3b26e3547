package extract

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"
	"github.com/nguyengg/sealer/errs"
	"github.com/nguyengg/sealer/solid"
)

// Format is the container format of an archive to be extracted.
type Format int

const (
	// Zip is a ZIP archive whose entries may be encrypted with AES or ZipCrypto.
	Zip Format = iota
	// SevenZip is a 7-Zip archive, optionally AES-encrypted.
	SevenZip
	// Solid is a solid archive created by package solid.
	Solid
)

func (f Format) String() string {
	switch f {
	case Zip:
		return "zip"
	case SevenZip:
		return "7z"
	case Solid:
		return "solid"
	default:
		return "unknown"
	}
}

// Detect determines the format of the named archive.
//
// The file name extension is used first. If the extension is not recognised, the leading bytes of the file are
// examined instead; anything that cannot be identified is assumed to be a ZIP archive.
func Detect(ctx context.Context, name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case solid.Ext:
		return Solid, nil
	case ".7z":
		return SevenZip, nil
	case ".zip":
		return Zip, nil
	}

	f, err := os.Open(name)
	if err != nil {
		return Zip, errs.New(errs.IO, "open archive", name, err)
	}
	defer f.Close()

	head := make([]byte, len(solid.Magic))
	n, err := io.ReadFull(f, head)
	switch {
	case err == nil && solid.IsSolid(head):
		return Solid, nil
	case err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF):
		return Zip, errs.New(errs.IO, "read archive", name, err)
	case n == 0:
		return Zip, errs.Errorf(errs.Format, "detect format", name, "empty file")
	}

	if _, err = f.Seek(0, io.SeekStart); err != nil {
		return Zip, errs.New(errs.IO, "seek archive", name, err)
	}

	format, _, err := archives.Identify(ctx, filepath.Base(name), f)
	if err != nil {
		return Zip, nil
	}

	switch format.(type) {
	case archives.SevenZip, *archives.SevenZip:
		return SevenZip, nil
	default:
		return Zip, nil
	}
}

// Package codec provides the stream compressors that can back a solid archive.
package codec

import (
	"io"
)

// Codec has methods to create compressor/encoder and decompressor/decoder.
type Codec interface {
	// Name returns the canonical name of the codec, e.g. "xz".
	Name() string
	// ID returns the single byte that identifies the codec in a solid archive header.
	ID() byte
	// NewDecoder creates a decoder to decompress contents from the given io.Reader.
	NewDecoder(src io.Reader) (io.ReadCloser, error)
	// NewEncoder creates an encoder to compress contents to the given io.Writer.
	NewEncoder(dst io.Writer) (io.WriteCloser, error)
}

// DefaultName is the name of the default compression codec.
const DefaultName = "xz"

const (
	idXz   byte = 1
	idZstd byte = 2
	idGzip byte = 3
)

// FromName returns a Codec with the given name.
//
// The boolean return value is false if the name is not recognised, in which case the default codec is returned.
func FromName(name string) (Codec, bool) {
	switch name {
	case "xz":
		return XzCodec{}, true
	case "zstd", "zst":
		return ZstdCodec{}, true
	case "gzip", "gz":
		return GzipCodec{}, true
	default:
		return XzCodec{}, false
	}
}

// FromID returns the Codec identified by the given header byte.
func FromID(id byte) (Codec, bool) {
	switch id {
	case idXz:
		return XzCodec{}, true
	case idZstd:
		return ZstdCodec{}, true
	case idGzip:
		return GzipCodec{}, true
	default:
		return nil, false
	}
}

package solid

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/nguyengg/sealer/errs"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Magic is the signature at the start of every solid archive.
const Magic = "SXA1"

const (
	version = 1

	saltSize   = 16
	prefixSize = chacha20poly1305.NonceSizeX - 8
	headerSize = len(Magic) + 1 + 1 + 4 + 4 + 1 + saltSize + prefixSize

	// chunkSize is the maximum plaintext length of one sealed chunk.
	chunkSize = 64 * 1024

	// finalBit is set in the length prefix of the last chunk.
	finalBit = 1 << 31

	// kdf parameters read from a header are bounded so a crafted archive cannot make key derivation arbitrarily
	// expensive.
	maxKDFTime    = 16
	maxKDFMemory  = 1024 * 1024
	maxKDFThreads = 64
)

// KDF holds the Argon2id parameters used to derive the archive key from the password.
type KDF struct {
	Time    uint32
	Memory  uint32 // in KiB
	Threads uint8
}

// DefaultKDF is the recommended Argon2id setting for interactive use: 3 passes over 64 MiB with 4 lanes.
var DefaultKDF = KDF{Time: 3, Memory: 64 * 1024, Threads: 4}

func (k KDF) valid() bool {
	return k.Time > 0 && k.Time <= maxKDFTime &&
		k.Memory >= 8*uint32(k.Threads) && k.Memory <= maxKDFMemory &&
		k.Threads > 0 && k.Threads <= maxKDFThreads
}

// header is the fixed-size preamble of the sealed stream.
//
// The serialised header is authenticated as the additional data of the verifier tag that follows it, so a tampered
// header and a wrong password are indistinguishable; both surface as errs.InvalidPassword.
type header struct {
	codec  byte
	kdf    KDF
	salt   [saltSize]byte
	prefix [prefixSize]byte
}

func (h *header) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, headerSize)
	b = append(b, Magic...)
	b = append(b, version, h.codec)
	b = binary.BigEndian.AppendUint32(b, h.kdf.Time)
	b = binary.BigEndian.AppendUint32(b, h.kdf.Memory)
	b = append(b, h.kdf.Threads)
	b = append(b, h.salt[:]...)
	b = append(b, h.prefix[:]...)
	return b, nil
}

func (h *header) UnmarshalBinary(b []byte) error {
	if len(b) != headerSize {
		return fmt.Errorf("invalid header length: expected %d bytes, got %d", headerSize, len(b))
	}
	if string(b[:len(Magic)]) != Magic {
		return fmt.Errorf("not a solid archive")
	}

	b = b[len(Magic):]
	if b[0] != version {
		return fmt.Errorf("unsupported version %d", b[0])
	}

	h.codec = b[1]
	h.kdf.Time = binary.BigEndian.Uint32(b[2:6])
	h.kdf.Memory = binary.BigEndian.Uint32(b[6:10])
	h.kdf.Threads = b[10]
	copy(h.salt[:], b[11:11+saltSize])
	copy(h.prefix[:], b[11+saltSize:])

	if !h.kdf.valid() {
		return fmt.Errorf("invalid key derivation parameters")
	}

	return nil
}

func (h *header) aead(password string) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(password), h.salt[:], h.kdf.Time, h.kdf.Memory, h.kdf.Threads, chacha20poly1305.KeySize)
	defer clear(key)

	return chacha20poly1305.NewX(key)
}

func nonce(prefix [prefixSize]byte, counter uint64) []byte {
	n := make([]byte, 0, chacha20poly1305.NonceSizeX)
	n = append(n, prefix[:]...)
	return binary.BigEndian.AppendUint64(n, counter)
}

// chunk additional data marks the final chunk so truncation at a chunk boundary is detected.
var (
	adMore  = []byte{0}
	adFinal = []byte{1}
)

// sealWriter encrypts everything written to it in fixed-size authenticated chunks.
//
// Each chunk is written as a 4-byte big-endian length followed by the ciphertext; the high bit of the length marks the
// final chunk and is also bound to the ciphertext as additional data. The nonce of chunk i is the random
// per-archive prefix followed by i as a 64-bit big-endian counter; counter 0 is reserved for the verifier.
type sealWriter struct {
	w       io.Writer
	aead    cipher.AEAD
	prefix  [prefixSize]byte
	counter uint64
	buf     []byte
	out     []byte
	closed  bool
}

// newSealWriter writes the header and password verifier to dst, then returns the io.WriteCloser to write plaintext.
//
// Close must be called to write the final chunk; an archive that was not closed fails to open with errs.Format.
func newSealWriter(dst io.Writer, password string, codecID byte, kdf KDF) (*sealWriter, error) {
	if !kdf.valid() {
		return nil, fmt.Errorf("invalid key derivation parameters %+v", kdf)
	}

	h := &header{codec: codecID, kdf: kdf}
	if _, err := rand.Read(h.salt[:]); err != nil {
		return nil, fmt.Errorf("generate salt error: %w", err)
	}
	if _, err := rand.Read(h.prefix[:]); err != nil {
		return nil, fmt.Errorf("generate nonce error: %w", err)
	}

	aead, err := h.aead(password)
	if err != nil {
		return nil, fmt.Errorf("create cipher error: %w", err)
	}

	hb, _ := h.MarshalBinary()
	verifier := aead.Seal(nil, nonce(h.prefix, 0), nil, hb)
	if _, err = dst.Write(append(hb, verifier...)); err != nil {
		return nil, fmt.Errorf("write header error: %w", err)
	}

	return &sealWriter{
		w:       dst,
		aead:    aead,
		prefix:  h.prefix,
		counter: 1,
		buf:     make([]byte, 0, chunkSize),
		out:     make([]byte, 4, 4+chunkSize+aead.Overhead()),
	}, nil
}

func (s *sealWriter) Write(p []byte) (n int, err error) {
	if s.closed {
		return 0, errors.New("write to closed writer")
	}

	for len(p) > 0 {
		// a full buffer is flushed only when more data arrives so that the last chunk can always be marked final.
		if len(s.buf) == chunkSize {
			if err = s.flush(false); err != nil {
				return
			}
		}

		m := copy(s.buf[len(s.buf):chunkSize], p)
		s.buf = s.buf[:len(s.buf)+m]
		p = p[m:]
		n += m
	}

	return
}

func (s *sealWriter) flush(final bool) error {
	ad, flag := adMore, uint32(0)
	if final {
		ad, flag = adFinal, finalBit
	}

	out := s.aead.Seal(s.out[:4], nonce(s.prefix, s.counter), s.buf, ad)
	binary.BigEndian.PutUint32(out[:4], uint32(len(out)-4)|flag)
	if _, err := s.w.Write(out); err != nil {
		return err
	}

	s.counter++
	s.buf = s.buf[:0]
	return nil
}

// Close writes the final chunk but does not close the underlying io.Writer.
func (s *sealWriter) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true
	return s.flush(true)
}

// sealReader decrypts the stream produced by sealWriter.
type sealReader struct {
	r       io.Reader
	aead    cipher.AEAD
	prefix  [prefixSize]byte
	counter uint64
	in      []byte
	plain   []byte
	final   bool
}

// openSeal reads the header from src and verifies the password against it.
//
// Returns an errs.InvalidPassword error if the verifier does not authenticate, and an errs.Format error if src does not
// start with a valid header. The codec byte of the header is returned alongside the reader.
func openSeal(src io.Reader, password string) (*sealReader, byte, error) {
	hb := make([]byte, headerSize)
	if _, err := io.ReadFull(src, hb); err != nil {
		return nil, 0, errs.New(errs.Format, "read header", "", err)
	}

	h := &header{}
	if err := h.UnmarshalBinary(hb); err != nil {
		return nil, 0, errs.New(errs.Format, "read header", "", err)
	}

	aead, err := h.aead(password)
	if err != nil {
		return nil, 0, errs.New(errs.IO, "create cipher", "", err)
	}

	verifier := make([]byte, aead.Overhead())
	if _, err = io.ReadFull(src, verifier); err != nil {
		return nil, 0, errs.New(errs.Format, "read header", "", err)
	}

	if _, err = aead.Open(nil, nonce(h.prefix, 0), verifier, hb); err != nil {
		return nil, 0, errs.New(errs.InvalidPassword, "verify password", "", errors.New("authentication failed"))
	}

	return &sealReader{
		r:       src,
		aead:    aead,
		prefix:  h.prefix,
		counter: 1,
		in:      make([]byte, chunkSize+aead.Overhead()),
	}, h.codec, nil
}

func (s *sealReader) Read(p []byte) (int, error) {
	for len(s.plain) == 0 {
		if s.final {
			return 0, s.trailing()
		}

		if err := s.next(); err != nil {
			return 0, err
		}
	}

	n := copy(p, s.plain)
	s.plain = s.plain[n:]
	return n, nil
}

func (s *sealReader) next() error {
	var lb [4]byte
	if _, err := io.ReadFull(s.r, lb[:]); err != nil {
		return truncated(err)
	}

	n := binary.BigEndian.Uint32(lb[:])
	final, ad := n&finalBit != 0, adMore
	if final {
		n &^= finalBit
		ad = adFinal
	}

	if n < uint32(s.aead.Overhead()) || n > uint32(len(s.in)) {
		return errs.Errorf(errs.Format, "read chunk", "", "invalid chunk length %d", n)
	}

	in := s.in[:n]
	if _, err := io.ReadFull(s.r, in); err != nil {
		return truncated(err)
	}

	plain, err := s.aead.Open(in[:0], nonce(s.prefix, s.counter), in, ad)
	if err != nil {
		return errs.Errorf(errs.Format, "read chunk", "", "chunk %d is corrupted", s.counter)
	}

	s.final = final
	s.counter++
	s.plain = plain
	return nil
}

// trailing checks that nothing follows the final chunk.
func (s *sealReader) trailing() error {
	var b [1]byte
	switch n, err := s.r.Read(b[:]); {
	case n > 0:
		return errs.Errorf(errs.Format, "read chunk", "", "unexpected data after final chunk")
	case err == nil, errors.Is(err, io.EOF):
		return io.EOF
	default:
		return errs.New(errs.IO, "read chunk", "", err)
	}
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errs.New(errs.Format, "read chunk", "", io.ErrUnexpectedEOF)
	}

	return errs.New(errs.IO, "read chunk", "", err)
}

// IsSolid returns true if the given leading bytes of a file start with Magic.
func IsSolid(head []byte) bool {
	return bytes.HasPrefix(head, []byte(Magic))
}

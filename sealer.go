// Package sealer creates and extracts password-protected archives.
//
// Three variants are supported, see EncryptionMethod. An Engine runs one job at a time: EncryptFiles walks the
// selected paths and writes an archive, DecryptFile safely extracts one. Progress is reported through a
// progress.Sink and jobs can be cancelled with Engine.Cancel or by cancelling the context.
package sealer

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"

	"github.com/nguyengg/sealer/solid"
)

// EncryptionMethod selects the container and the encryption of a new archive.
type EncryptionMethod int

const (
	// StrongZip is a ZIP archive whose entries are encrypted with AES-256.
	StrongZip EncryptionMethod = iota + 1
	// LegacyZip is a ZIP archive whose entries are encrypted with ZipCrypto.
	//
	// ZipCrypto is weak but can be opened by every ZIP tool.
	LegacyZip
	// SolidArchive compresses the whole selection as one stream then encrypts it, file names included.
	SolidArchive
)

// ParseEncryptionMethod parses the case-insensitive name of an EncryptionMethod.
//
// Accepted names are "strong" or "aes256", "legacy" or "zipcrypto", and "solid" or "sxa".
func ParseEncryptionMethod(s string) (EncryptionMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strong", "aes256", "aes":
		return StrongZip, nil
	case "legacy", "zipcrypto":
		return LegacyZip, nil
	case "solid", "sxa":
		return SolidArchive, nil
	default:
		return 0, fmt.Errorf("unknown encryption method %q", s)
	}
}

func (m EncryptionMethod) String() string {
	switch m {
	case StrongZip:
		return "strong"
	case LegacyZip:
		return "legacy"
	case SolidArchive:
		return "solid"
	default:
		return fmt.Sprintf("EncryptionMethod(%d)", int(m))
	}
}

// Ext returns the file name extension of archives created with this method.
func (m EncryptionMethod) Ext() string {
	if m == SolidArchive {
		return solid.Ext
	}

	return ".zip"
}

// MarshalText implements encoding.TextMarshaler.
func (m EncryptionMethod) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *EncryptionMethod) UnmarshalText(text []byte) (err error) {
	*m, err = ParseEncryptionMethod(string(text))
	return
}

// UnmarshalFlag lets EncryptionMethod be used as a command-line flag.
func (m *EncryptionMethod) UnmarshalFlag(value string) (err error) {
	*m, err = ParseEncryptionMethod(value)
	return
}

// Password is an archive password.
//
// Its String, GoString and Format methods never reveal the value so that a Password cannot leak into logs or error
// messages by accident. Convert to string explicitly to use it.
type Password string

const redacted = "[REDACTED]"

func (p Password) String() string {
	return redacted
}

func (p Password) GoString() string {
	return redacted
}

// Format implements fmt.Formatter.
func (p Password) Format(f fmt.State, _ rune) {
	_, _ = io.WriteString(f, redacted)
}

// MarshalText implements encoding.TextMarshaler so that encoding a Password never reveals it either.
func (p Password) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Password) UnmarshalText(text []byte) error {
	*p = Password(text)
	return nil
}

const (
	passwordLength  = 16
	passwordCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// GeneratePassword returns a random password of 16 alphanumeric characters.
func GeneratePassword() (string, error) {
	// bytes at or above maxByte are rejected so every character is equally likely.
	const maxByte = 256 - 256%len(passwordCharset)

	var (
		sb  strings.Builder
		buf = make([]byte, passwordLength*2)
	)
	sb.Grow(passwordLength)

	for sb.Len() < passwordLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random bytes error: %w", err)
		}

		for _, b := range buf {
			if int(b) >= maxByte {
				continue
			}

			sb.WriteByte(passwordCharset[int(b)%len(passwordCharset)])
			if sb.Len() == passwordLength {
				break
			}
		}
	}

	return sb.String(), nil
}

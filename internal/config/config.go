// Package config reads the optional .sealer configuration file.
//
// The file is in INI format:
//
//	[encrypt]
//	method = strong
//
//	[solid]
//	compression = zstd
//
//	[progress]
//	interval = 250ms
//
// Resource limits of extraction cannot be configured.
package config

import (
	"fmt"
	"time"

	"github.com/nguyengg/sealer"
	"github.com/nguyengg/sealer/codec"
)

// EncryptConfig contains encrypt configurations.
type EncryptConfig struct {
	// Method is the default encryption method, sealer.StrongZip if not configured.
	Method sealer.EncryptionMethod
}

// ForEncrypt returns configuration for encrypt.
func (l *Loader) ForEncrypt() (c EncryptConfig, err error) {
	c.Method = sealer.StrongZip

	sec, err := l.file().GetSection("encrypt")
	if err != nil {
		return c, nil
	}

	if v := sec.Key("method").String(); v != "" {
		if c.Method, err = sealer.ParseEncryptionMethod(v); err != nil {
			return c, fmt.Errorf("invalid [encrypt] method: %w", err)
		}
	}

	return c, nil
}

// ForEncrypt calls Loader.ForEncrypt on the DefaultLoader instance.
func ForEncrypt() (EncryptConfig, error) {
	return DefaultLoader.ForEncrypt()
}

// SolidConfig contains configurations for solid archives.
type SolidConfig struct {
	// Codec is the compression codec, codec.XzCodec if not configured.
	Codec codec.Codec
}

// ForSolid returns configuration for solid archives.
func (l *Loader) ForSolid() (c SolidConfig, err error) {
	c.Codec = codec.XzCodec{}

	sec, err := l.file().GetSection("solid")
	if err != nil {
		return c, nil
	}

	if v := sec.Key("compression").String(); v != "" {
		cd, ok := codec.FromName(v)
		if !ok {
			return c, fmt.Errorf("invalid [solid] compression: unknown codec %q", v)
		}

		c.Codec = cd
	}

	return c, nil
}

// ForSolid calls Loader.ForSolid on the DefaultLoader instance.
func ForSolid() (SolidConfig, error) {
	return DefaultLoader.ForSolid()
}

// ProgressConfig contains progress reporting configurations.
type ProgressConfig struct {
	// Interval is the minimum duration between two progress events, zero if not configured.
	Interval time.Duration
}

// ForProgress returns configuration for progress reporting.
func (l *Loader) ForProgress() (c ProgressConfig, err error) {
	sec, err := l.file().GetSection("progress")
	if err != nil {
		return c, nil
	}

	if k := sec.Key("interval"); k.String() != "" {
		if c.Interval, err = k.Duration(); err != nil || c.Interval < 0 {
			return ProgressConfig{}, fmt.Errorf("invalid [progress] interval %q", k.String())
		}
	}

	return c, nil
}

// ForProgress calls Loader.ForProgress on the DefaultLoader instance.
func ForProgress() (ProgressConfig, error) {
	return DefaultLoader.ForProgress()
}

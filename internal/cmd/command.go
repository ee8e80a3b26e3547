// Package cmd implements the sealer command line.
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/sealer"
	"github.com/nguyengg/sealer/internal/config"
	"github.com/nguyengg/sealer/progress"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

type Sealer struct {
	Encrypt  Encrypt  `command:"encrypt" alias:"e" description:"encrypt files or directories into a password-protected archive"`
	Decrypt  Decrypt  `command:"decrypt" alias:"d" description:"extract password-protected archives"`
	Password Password `command:"password" alias:"pw" description:"generate random passwords"`
	List     List     `command:"ls" description:"show the metadata of files or directories"`
	Serve    Serve    `command:"serve" description:"serve the engine over HTTP for a local front end"`
}

func NewParser() (*flags.Parser, error) {
	opts := &Sealer{}

	p := flags.NewNamedParser("sealer", flags.Default)
	if _, err := p.AddGroup("Global Options", "", opts); err != nil {
		return nil, err
	}

	return p, nil
}

// jobFlags contains the flags shared by the commands that run archive jobs.
type jobFlags struct {
	Verbose  bool   `short:"v" long:"verbose" description:"log debug messages"`
	Password string `long:"password" description:"the archive password; prefer the SEALER_PASSWORD environment variable or the interactive prompt so it does not end up in the shell history"`
}

// sink renders progress on bar; with --verbose every event is also logged at debug level.
func (f jobFlags) sink(bar *progressbar.ProgressBar, logger logrus.FieldLogger) progress.Sink {
	if !f.Verbose {
		return progress.BarSink(bar)
	}

	return progress.Multi(progress.BarSink(bar), progress.LogSink(logger))
}

// settings are the values read from the .sealer file.
type settings struct {
	encrypt  config.EncryptConfig
	solid    config.SolidConfig
	progress config.ProgressConfig
}

func loadSettings(ctx context.Context, logger logrus.FieldLogger) (s settings, err error) {
	name, err := config.Load(ctx)
	if err != nil {
		return s, fmt.Errorf("load config error: %w", err)
	}
	if name != "" {
		logger.WithField("file", name).Debug("loaded config")
	}

	if s.encrypt, err = config.ForEncrypt(); err != nil {
		return s, err
	}
	if s.solid, err = config.ForSolid(); err != nil {
		return s, err
	}
	if s.progress, err = config.ForProgress(); err != nil {
		return s, err
	}

	return s, nil
}

// engineOptions returns the sealer.Options customisations from the settings.
func (s settings) engineOptions() []func(*sealer.Options) {
	return []func(*sealer.Options){
		func(opts *sealer.Options) {
			opts.Codec = s.solid.Codec
			if s.progress.Interval > 0 {
				opts.Interval = s.progress.Interval
			}
		},
	}
}

func (s settings) newEngine(logger logrus.FieldLogger, sink progress.Sink) *sealer.Engine {
	return sealer.New(append(s.engineOptions(), sealer.WithLogger(logger), sealer.WithSink(sink))...)
}

func checkArgs(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	return nil
}

func toStrings(files []flags.Filename) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = string(f)
	}

	return names
}

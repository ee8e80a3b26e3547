package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/sealer"
	"github.com/nguyengg/sealer/progress"
	"github.com/nguyengg/sealer/util"
	"github.com/sirupsen/logrus"
)

type Encrypt struct {
	Method   sealer.EncryptionMethod `short:"m" long:"method" description:"strong (AES-256 zip), legacy (ZipCrypto zip) or solid (.sxa); default to [encrypt] method of .sealer, or strong"`
	Output   flags.Filename          `short:"o" long:"output" description:"the archive to create; default to a new file in the working directory named after the input"`
	Generate bool                    `short:"g" long:"generate" description:"generate a random password and print it to stdout instead of reading one"`
	Args     struct {
		Files []flags.Filename `positional-arg-name:"file" description:"the files/directories to be encrypted" required:"yes"`
	} `positional-args:"yes"`

	jobFlags
}

func (c *Encrypt) Execute(args []string) error {
	if err := checkArgs(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := newLogger(c.Verbose)
	s, err := loadSettings(ctx, logger)
	if err != nil {
		return err
	}

	method := c.Method
	if method == 0 {
		method = s.encrypt.Method
	}

	var password sealer.Password
	if c.Generate {
		p, err := sealer.GeneratePassword()
		if err != nil {
			return err
		}

		fmt.Printf("Password: %s\n", p)
		password = sealer.Password(p)
	} else if password, err = readPassword(c.Password, true); err != nil {
		return err
	}

	files := toStrings(c.Args.Files)
	output, reserved := string(c.Output), false
	if output == "" {
		if output, err = util.ReserveFile(".", util.ArchiveStem(files), method.Ext()); err != nil {
			return fmt.Errorf("create archive error: %w", err)
		}

		reserved = true
	}

	log := logger.WithFields(logrus.Fields{"archive": util.DirBase(output)})

	bar := progress.NewBar(util.TruncateRightWithSuffix(filepath.Base(output), 30, "..."))
	msg, err := s.newEngine(log, c.sink(bar, log)).EncryptFiles(ctx, files, output, password, method)
	if err != nil {
		_ = bar.Exit()

		if reserved {
			if rmErr := os.Remove(output); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				log.WithError(rmErr).Warn("clean up reserved archive error")
			}
		}

		log.WithError(err).Error(sealer.Message(err))
		return err
	}

	fmt.Println(msg)
	return nil
}

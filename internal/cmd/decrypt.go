package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/sealer"
	"github.com/nguyengg/sealer/errs"
	"github.com/nguyengg/sealer/progress"
	"github.com/nguyengg/sealer/util"
	"github.com/sirupsen/logrus"
)

type Decrypt struct {
	Output flags.Filename `short:"o" long:"output" description:"the directory to extract into; default to a new directory in the working directory named after each archive"`
	Args   struct {
		Files []flags.Filename `positional-arg-name:"file" description:"the archives to be extracted" required:"yes"`
	} `positional-args:"yes"`

	jobFlags
}

func (c *Decrypt) Execute(args []string) error {
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

	password, err := readPassword(c.Password, false)
	if err != nil {
		return err
	}

	success := 0
	n := len(c.Args.Files)
	for i, file := range c.Args.Files {
		log := withPrefix(logger, i, n, string(file))
		log.Info("start decrypting")

		if err = c.decrypt(ctx, s, log, string(file), password); err == nil {
			log.Info("done decrypting")
			success++
			continue
		}

		if errors.Is(err, errs.Cancelled) {
			break
		}

		log.WithError(err).Error(sealer.Message(err))
	}

	logger.Infof("successfully decrypted %d/%d archives", success, n)
	if success != n {
		return fmt.Errorf("decrypted %d/%d archives", success, n)
	}

	return nil
}

func (c *Decrypt) decrypt(ctx context.Context, s settings, log logrus.FieldLogger, name string, password sealer.Password) (err error) {
	dir, created := string(c.Output), false
	if dir == "" {
		if dir, err = util.MkExclDir(".", util.OutputDirStem(name), 0755); err != nil {
			return err
		}

		created = true
	}

	bar := progress.NewBar(util.TruncateRightWithSuffix(filepath.Base(name), 30, "..."))
	msg, err := s.newEngine(log, c.sink(bar, log)).DecryptFile(ctx, name, dir, password)
	if err != nil {
		_ = bar.Exit()

		// only succeeds if nothing was extracted, which is always the case with a wrong password.
		if created {
			_ = os.Remove(dir)
		}

		return err
	}

	fmt.Println(msg)
	return nil
}

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nguyengg/sealer/util"
	"github.com/sirupsen/logrus"
)

func newLogger(verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
	})

	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	return logger
}

// prefix creates a consistent prefix for all file-based commands to use.
//
// i and n are the zero-based ordinal and expected count.
func prefix(i, n int, name string) string {
	return fmt.Sprintf(`[%d/%d] "%s"`, i+1, n, util.TruncateRightWithSuffix(filepath.Base(name), 30, "..."))
}

// withPrefix returns a logger whose entries all carry the prefix of the given file.
func withPrefix(logger logrus.FieldLogger, i, n int, name string) *logrus.Entry {
	return logger.WithField("archive", prefix(i, n, name))
}

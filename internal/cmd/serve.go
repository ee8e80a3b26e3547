package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/nguyengg/sealer/internal/server"
)

type Serve struct {
	Addr    string `long:"addr" description:"the address to listen on; keep it on loopback since requests name local paths" default:"127.0.0.1:7878"`
	Verbose bool   `short:"v" long:"verbose" description:"log debug messages"`
}

func (c *Serve) Execute(args []string) error {
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

	return server.New(func(opts *server.Options) {
		opts.Logger = logger
		opts.EngineOptions = s.engineOptions()
		opts.DefaultMethod = s.encrypt.Method
	}).ListenAndServe(ctx, c.Addr)
}

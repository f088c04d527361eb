package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"census/internal/app"
	"census/internal/cli"
	"census/internal/platform/config"
	"census/internal/platform/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.NewRootCommand(open).ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	stop()
	os.Exit(cli.GetExitCode(err))
}

// open builds the registry from the environment. Logs go to stderr so they
// never mix with command output.
func open(ctx context.Context) (cli.Registry, func() error, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, nil, err
	}
	log := logger.NewWithWriter(os.Stderr, cfg)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	if !a.Persistent {
		log.WarnContext(ctx, "DATABASE_URL is not set; changes are kept in memory and lost on exit")
	}
	return a.Service, a.Close, nil
}

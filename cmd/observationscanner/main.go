package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ObservationScanner/internal/app"
	"ObservationScanner/internal/config"
	"ObservationScanner/internal/logging"
)

func main() {
	var (
		all      = flag.Bool("all", false, "ingest every pending month instead of one")
		daemon   = flag.Bool("daemon", false, "keep running on the configured interval")
		progress = flag.Bool("progress", false, "print the backfill breakdown and exit")
	)
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	if *progress {
		fmt.Print(application.Progress())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *daemon {
		err = application.RunDaemon(ctx)
	} else {
		err = application.Run(ctx, *all)
	}
	if err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}

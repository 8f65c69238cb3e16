package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/balkonsolar/balkonsolar/pkg/battery"
	"github.com/balkonsolar/balkonsolar/pkg/log"
	"github.com/balkonsolar/balkonsolar/pkg/sensors"
	"github.com/balkonsolar/balkonsolar/pkg/server"
	"github.com/balkonsolar/balkonsolar/pkg/storage"

	"github.com/joho/godotenv"
	"github.com/levenlabs/go-lflag"
)

func main() {
	// a missing .env is fine, flag defaults fall back to the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", slog.Any("error", err))
	}

	// init packages
	b := battery.Configured()
	r := sensors.Configured()
	s := storage.Configured()

	// init runner and server
	runner := server.ConfiguredRunner(b, r, s)
	srv := server.Configured(s, runner)

	// parse flags
	lflag.Configure()

	level, err := log.Configure()
	if err != nil {
		panic(err)
	}
	slog.Debug("logger configured", slog.String("level", level.String()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := sensors.Start(ctx, r); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "sensors failed", "error", err)
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		if err := runner.Run(ctx); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "runner failed", "error", err)
			cancel()
		}
	}()

	// Run will block until context is canceled or error happens
	exitCode := 0
	if err := srv.Run(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server failed", "error", err)
		exitCode = 1
	}
	cancel()
	wg.Wait()

	// If initialization inside lflag.Do failed, we wouldn't be here (panic).
	if err := s.Close(); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
	log.Ctx(ctx).InfoContext(ctx, "server exited cleanly")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/balkonsolar/balkonsolar/pkg/log"
	"github.com/balkonsolar/balkonsolar/pkg/storage"
	"github.com/balkonsolar/balkonsolar/pkg/version"
	"github.com/chzyer/readline"
	"github.com/joho/godotenv"
	"github.com/levenlabs/go-lflag"
)

// historyFilePath returns the path for the prompt history, empty if there is
// no home directory.
func historyFilePath() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(cacheDir, "balkonsolar")
	_ = os.MkdirAll(dir, 0750)
	return filepath.Join(dir, "advisor_history")
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", slog.Any("error", err))
	}

	s := storage.Configured()
	lflag.Configure()
	if _, err := log.Configure(); err != nil {
		panic(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer func() {
		if err := s.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
		}
	}()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "balkonsolar> ",
		HistoryFile: historyFilePath(),
	})
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "readline init failed", "error", err)
		return
	}
	defer rl.Close()

	a := newAdvisor(s, rl.Stdout())
	fmt.Fprintf(rl.Stdout(), "===== Balkonsolar System Advisor %s ===== (type 'help' for commands)\n", version.Version())

	for ctx.Err() == nil {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			return
		}
		if err != nil {
			// EOF
			return
		}
		err = a.handle(ctx, strings.TrimSpace(line))
		if errors.Is(err, errQuit) {
			return
		}
		if err != nil {
			fmt.Fprintf(rl.Stderr(), "Error: %v\n", err)
		}
	}
}

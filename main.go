package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"vex/config"
	"vex/editor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		cfg = config.Default()
	}

	log, closeLog := openLogger()
	defer closeLog()

	e := editor.New(cfg, log)

	files := []string{}
	args := os.Args[1:]
	isDirOpen := false

	// Check if first argument is a directory
	if len(args) > 0 {
		info, err := os.Stat(args[0])
		if err == nil && info.IsDir() {
			// Change to that directory
			if err := os.Chdir(args[0]); err != nil {
				fmt.Fprintf(os.Stderr, "error: cannot change to directory %s: %v\n", args[0], err)
				os.Exit(1)
			}
			// Don't pass directory as a file to open
			files = args[1:]
			isDirOpen = true
		} else {
			// Not a directory, treat all args as files
			files = args
		}
	}

	if err := e.Run(files, isDirOpen); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// openLogger writes structured logs to a file: the terminal is owned by
// the screen, so stdout and stderr are off limits while running.
func openLogger() (*slog.Logger, func()) {
	path := config.LogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}
	}
	log := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo}))
	return log, func() { f.Close() }
}

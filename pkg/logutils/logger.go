// Package logutils builds the process logger.
package logutils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// New returns a leveled zerolog logger and a func that releases its output.
//
// With a file path, JSON lines are appended to that file, creating parent
// directories as needed. With an empty path, logs go to stderr, pretty
// printed when stderr is a terminal.
func New(level, file string) (zerolog.Logger, func(), error) {
	noop := func() {}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), noop, fmt.Errorf("log level: %w", err)
	}

	out, closer, err := output(file)
	if err != nil {
		return zerolog.Nop(), noop, err
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), closer, nil
}

func output(file string) (io.Writer, func(), error) {
	if file == "" {
		if term.IsTerminal(int(os.Stderr.Fd())) {
			return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}, func() {}, nil
		}
		return os.Stderr, func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

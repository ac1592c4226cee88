// Package logging sets up the application logger. The TUI owns the
// terminal, so logs go to a file under the user state directory.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Open returns a logger writing to the eventcal log file at the given
// level. The returned closer releases the file; callers defer it at exit.
func Open(level string) (zerolog.Logger, io.Closer, error) {
	path, err := logPath()
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return zerolog.Nop(), nil, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return zerolog.Nop(), nil, err
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log := zerolog.New(f).With().Timestamp().Logger().Level(lvl)
	return log, f, nil
}

// logPath follows XDG_STATE_HOME, falling back to ~/.local/state.
func logPath() (string, error) {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "eventcal", "eventcal.log"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "eventcal", "eventcal.log"), nil
}

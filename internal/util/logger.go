package util

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	logger zerolog.Logger
	once   sync.Once
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// InitLogger initializes the global logger with the configured level and an
// optional log file. Output goes to stdout and, when a file path is given,
// to the file as well.
func InitLogger(level string, filePath string) {
	once.Do(func() {
		lvl, err := zerolog.ParseLevel(level)
		if err != nil {
			lvl = zerolog.InfoLevel
		}

		var writers []io.Writer
		writers = append(writers, os.Stdout)

		if filePath != "" {
			if err := EnsureDir(filepath.Dir(filePath)); err == nil {
				file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
				if err == nil {
					writers = append(writers, file)
				}
			}
		}

		logger = zerolog.New(io.MultiWriter(writers...)).
			Level(lvl).
			With().
			Timestamp().
			Logger()
	})
}

// Logger returns the global logger.
func Logger() zerolog.Logger {
	return logger
}

// Debug starts a debug-level log event.
func Debug() *zerolog.Event {
	return logger.Debug()
}

// Info starts an info-level log event.
func Info() *zerolog.Event {
	return logger.Info()
}

// Warn starts a warn-level log event.
func Warn() *zerolog.Event {
	return logger.Warn()
}

// Error starts an error-level log event.
func Error() *zerolog.Event {
	return logger.Error()
}

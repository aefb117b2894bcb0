package saltedbloom

import (
	"fmt"
	"log"
	"log/slog"
	"os"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelError
)

func (l Level) String() string {
	return [...]string{
		"DEBUG",
		"INFO",
		"ERROR",
	}[l]
}

// Logger is a leveled sink for the filter's messages.
type Logger func(level Level, v ...interface{})

func StdLogger(logger *log.Logger) Logger {
	if logger == nil {
		logger = log.Default()
	}
	return func(level Level, v ...interface{}) {
		logger.Println(append([]interface{}{"[" + level.String() + "]"}, v...)...)
	}
}

func SlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return func(level Level, v ...interface{}) {
		msg := fmt.Sprintln(v...)
		msg = msg[:len(msg)-1]
		switch level {
		case LevelDebug:
			logger.Debug(msg)
		case LevelInfo:
			logger.Info(msg)
		default:
			logger.Error(msg)
		}
	}
}

func NopLogger() Logger {
	return func(_ Level, _ ...interface{}) {}
}

// gated drops debug and info messages when logging is disabled. Errors are
// still printed to stdout so failed writes never go unnoticed.
func gated(logger Logger, enabled bool) Logger {
	if enabled {
		return logger
	}
	return func(level Level, v ...interface{}) {
		if level >= LevelError {
			fmt.Fprintln(os.Stdout, v...)
		}
	}
}

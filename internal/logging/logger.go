// Package logging provides the process-wide structured logger.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Options configures the logger.
type Options struct {
	// Level is one of trace, debug, info, warn, error, off.
	Level  string
	JSON   bool
	Color  bool
	Output io.Writer
}

var (
	// logger is the global logger instance
	logger hclog.Logger = hclog.NewNullLogger()
	// mu protects logger
	mu sync.RWMutex
)

// Init replaces the global logger. Logs go to stderr unless Output is set,
// keeping stdout free for progress output.
func Init(opts Options) hclog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	level := hclog.LevelFromString(opts.Level)
	if level == hclog.NoLevel {
		level = hclog.Info
	}

	color := hclog.ColorOff
	if opts.Color && !opts.JSON {
		color = hclog.AutoColor
	}

	l := hclog.New(&hclog.LoggerOptions{
		Name:            "pgreindex",
		Level:           level,
		Output:          out,
		JSONFormat:      opts.JSON,
		Color:           color,
		IncludeLocation: level <= hclog.Debug,
	})

	mu.Lock()
	logger = l
	mu.Unlock()
	return l
}

// Logger returns the global logger.
func Logger() hclog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Named returns a sub-logger for a component.
func Named(name string) hclog.Logger {
	return Logger().Named(name)
}

// With returns a logger with the given key/value pairs attached.
func With(args ...interface{}) hclog.Logger {
	return Logger().With(args...)
}

// Debug logs a debug message
func Debug(msg string, args ...interface{}) { Logger().Debug(msg, args...) }

// Info logs an info message
func Info(msg string, args ...interface{}) { Logger().Info(msg, args...) }

// Warn logs a warning message
func Warn(msg string, args ...interface{}) { Logger().Warn(msg, args...) }

// Error logs an error message
func Error(msg string, args ...interface{}) { Logger().Error(msg, args...) }

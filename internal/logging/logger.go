// Package logging provides structured logging for the StockPoint offline core.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	// global logger instance
	global *logrus.Logger
	once   sync.Once
)

// Init initializes the global logger with JSON output at the given level.
func Init(out io.Writer, level logrus.Level) {
	once.Do(func() {
		l := logrus.New()
		l.SetOutput(out)
		l.SetLevel(level)
		l.SetFormatter(&logrus.JSONFormatter{})
		global = l
	})
}

// Get returns the global logger instance.
func Get() *logrus.Logger {
	if global == nil {
		Init(os.Stdout, logrus.InfoLevel)
	}
	return global
}

// Debug logs a debug message with optional structured context.
func Debug(message string, context ...map[string]interface{}) {
	entry(context...).Debug(message)
}

// Info logs an info message with optional structured context.
func Info(message string, context ...map[string]interface{}) {
	entry(context...).Info(message)
}

// Warn logs a warning message with optional structured context.
func Warn(message string, context ...map[string]interface{}) {
	entry(context...).Warn(message)
}

// Error logs an error message with optional structured context.
func Error(message string, err error, context ...map[string]interface{}) {
	e := entry(context...)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(message)
}

// entry merges context maps into a logrus entry on the global logger.
func entry(context ...map[string]interface{}) *logrus.Entry {
	e := logrus.NewEntry(Get())
	for _, c := range context {
		if len(c) > 0 {
			e = e.WithFields(logrus.Fields(c))
		}
	}
	return e
}

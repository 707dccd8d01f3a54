// Package logger wraps charmbracelet/log with the app-wide logger instance.
package logger

import (
	"os"

	"github.com/charmbracelet/log"
)

var L *log.Logger

// Init sets up the global logger. Debug mode turns on caller reporting and
// debug-level output; everything goes to stderr so it never corrupts the
// alternate screen or piped stdout.
func Init(debug bool) {
	L = log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    debug,
		ReportTimestamp: debug,
		TimeFormat:      "15:04:05",
		Prefix:          "aniterm",
	})
	if debug {
		L.SetLevel(log.DebugLevel)
	} else {
		L.SetLevel(log.WarnLevel)
	}
}

func Debug(msg interface{}, keyvals ...interface{}) {
	if L != nil {
		L.Debug(msg, keyvals...)
	}
}

func Info(msg interface{}, keyvals ...interface{}) {
	if L != nil {
		L.Info(msg, keyvals...)
	}
}

func Warn(msg interface{}, keyvals ...interface{}) {
	if L != nil {
		L.Warn(msg, keyvals...)
	}
}

func Error(msg interface{}, keyvals ...interface{}) {
	if L != nil {
		L.Error(msg, keyvals...)
	}
}

package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide structured logger. It is nil until Init runs.
var Log *logrus.Logger

// Init configures Log. Development gets human readable text, every other
// environment gets JSON lines.
func Init(level, env string) {
	Log = logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	if env == "development" {
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return
	}
	Log.SetFormatter(&logrus.JSONFormatter{})
}

// L returns Log, or a discarding logger when Init has not been called (tests).
func L() *logrus.Logger {
	if Log != nil {
		return Log
	}
	return discard
}

var discard = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

// RecoveryLogger routes recovered goroutine panics into Log.
type RecoveryLogger struct{}

func (RecoveryLogger) Errorf(format string, args ...interface{}) {
	L().Errorf(format, args...)
}

// file: logger/logger.go

package logger

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger. It is usable before Init is called but
// only picks up the configured level and formatter afterwards.
var Log = logrus.New()

type ctxKey struct{}

// Init configures the shared logger. The level is read from LOG_LEVEL and
// falls back to info when unset or unparseable.
func Init() {
	Log.SetOutput(os.Stdout)
	Log.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = logrus.InfoLevel
	}
	Log.SetLevel(level)
}

// SetLevel overrides the level chosen by Init, e.g. from loaded configuration.
func SetLevel(lvl string) {
	if level, err := logrus.ParseLevel(lvl); err == nil {
		Log.SetLevel(level)
	}
}

// WithContext stores a request-scoped entry in ctx.
func WithContext(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, ctxKey{}, entry)
}

// FromContext returns the entry stored by WithContext, or a bare entry on the
// shared logger when the context carries none.
func FromContext(ctx context.Context) *logrus.Entry {
	if ctx != nil {
		if entry, ok := ctx.Value(ctxKey{}).(*logrus.Entry); ok {
			return entry
		}
	}
	return logrus.NewEntry(Log)
}

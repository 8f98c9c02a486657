// Package ssvmlog wraps go.uber.org/zap behind a small interface so the
// VM (vm.New) and the CLI depend on a logging contract rather than a
// concrete logger — the same indirection nspcc-dev/neo-go's node services use
// around their own zap instance.
package ssvmlog

import (
	"os"

	"go.uber.org/zap"
)

// Logger is the structured-logging surface the VM and the CLI take, rather
// than *zap.SugaredLogger directly.
type Logger interface {
	Debugw(msg string, kv ...interface{})
	Infow(msg string, kv ...interface{})
	Warnw(msg string, kv ...interface{})
	Errorw(msg string, kv ...interface{})
	Sync() error
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

func (l *zapLogger) Debugw(msg string, kv ...interface{}) { l.sugar.Debugw(msg, kv...) }
func (l *zapLogger) Infow(msg string, kv ...interface{})  { l.sugar.Infow(msg, kv...) }
func (l *zapLogger) Warnw(msg string, kv ...interface{})  { l.sugar.Warnw(msg, kv...) }
func (l *zapLogger) Errorw(msg string, kv ...interface{}) { l.sugar.Errorw(msg, kv...) }
func (l *zapLogger) Sync() error                          { return l.sugar.Sync() }

// New builds a Logger selected by verbose: verbose requests zap's
// development config (human-readable, debug level and above); otherwise
// zap's production config (JSON, info level and above) is used, matching
// the SSVM_LOG_LEVEL/-v convention documented in SPEC_FULL.md §1.
func New(verbose bool) Logger {
	var z *zap.Logger
	var err error
	if verbose || os.Getenv("SSVM_LOG_LEVEL") == "debug" {
		z, err = zap.NewDevelopment()
	} else {
		z, err = zap.NewProduction()
	}
	if err != nil {
		// zap's default configs only fail to build on a broken sink; fall
		// back to a no-op logger rather than taking down the CLI over
		// logging infrastructure.
		return Noop()
	}
	return &zapLogger{sugar: z.Sugar()}
}

type noopLogger struct{}

func (noopLogger) Debugw(string, ...interface{}) {}
func (noopLogger) Infow(string, ...interface{})  {}
func (noopLogger) Warnw(string, ...interface{})  {}
func (noopLogger) Errorw(string, ...interface{}) {}
func (noopLogger) Sync() error                   { return nil }

// Noop returns a Logger that discards everything, for tests that don't care
// about log output.
func Noop() Logger { return noopLogger{} }

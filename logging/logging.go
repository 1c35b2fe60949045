// Package logging is a thin structured-logging wrapper over zap, used by
// every package in this module instead of reaching for the global logger.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// Logger is the sugared structured-logging surface every component here
// depends on. Components take a Logger at construction time; none hold
// a package-level default.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Named(name string) Logger
}

type zapLogger struct {
	*zap.SugaredLogger
}

func (z *zapLogger) Named(name string) Logger {
	return &zapLogger{z.SugaredLogger.Named(name)}
}

// NewZap builds a production console logger.
func NewZap() (Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &zapLogger{l.Sugar()}, nil
}

// NewTest builds a logger suitable for use inside *testing.T-driven tests;
// tb is any type satisfying zaptest.TestingT (typically *testing.T).
func NewTest(tb zaptest.TestingT) Logger {
	return &zapLogger{zaptest.NewLogger(tb).Sugar()}
}

// NewNop returns a Logger that discards everything, for call-sites (like
// library defaults) that need a non-nil Logger but no output.
func NewNop() Logger {
	return &zapLogger{zap.NewNop().Sugar()}
}

package client

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pion/logging"
)

const levelTrace = slog.LevelDebug - 4

// PionLoggerFactory routes pion's internal logging into slog.
type PionLoggerFactory struct {
	log *slog.Logger
}

func NewPionLoggerFactory(log *slog.Logger) *PionLoggerFactory {
	if log == nil {
		log = slog.Default()
	}
	return &PionLoggerFactory{log: log}
}

func (f *PionLoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return pionLogger{log: f.log.With(slog.String("mod", scope))}
}

type pionLogger struct {
	log *slog.Logger
}

func (p pionLogger) logf(level slog.Level, format string, args ...any) {
	ctx := context.Background()
	if !p.log.Enabled(ctx, level) {
		return
	}
	p.log.Log(ctx, level, fmt.Sprintf(format, args...))
}

func (p pionLogger) Trace(msg string)                  { p.log.Log(context.Background(), levelTrace, msg) }
func (p pionLogger) Tracef(format string, args ...any) { p.logf(levelTrace, format, args...) }
func (p pionLogger) Debug(msg string)                  { p.log.Debug(msg) }
func (p pionLogger) Debugf(format string, args ...any) { p.logf(slog.LevelDebug, format, args...) }
func (p pionLogger) Info(msg string)                   { p.log.Info(msg) }
func (p pionLogger) Infof(format string, args ...any)  { p.logf(slog.LevelInfo, format, args...) }
func (p pionLogger) Warn(msg string)                   { p.log.Warn(msg) }
func (p pionLogger) Warnf(format string, args ...any)  { p.logf(slog.LevelWarn, format, args...) }
func (p pionLogger) Error(msg string)                  { p.log.Error(msg) }
func (p pionLogger) Errorf(format string, args ...any) { p.logf(slog.LevelError, format, args...) }

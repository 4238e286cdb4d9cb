// Package zaplog provides a sink that writes logged conditions as structured
// zap entries. It is the log-file writer adapter.
package zaplog

import (
	"context"
	"errors"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/strongdm/errhero/pkg/errhero"
)

type sink struct {
	logger *zap.Logger
}

// NewZapSink creates a sink that logs each event on logger. Warnings are
// logged at warn level, everything else at error level.
func NewZapSink(logger *zap.Logger) errhero.Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &sink{logger: logger.Named("errhero")}
}

func (s *sink) Write(ctx context.Context, event errhero.ErrorEvent) error {
	level := zapcore.ErrorLevel
	if event.Severity == errhero.SeverityWarning {
		level = zapcore.WarnLevel
	}
	if ce := s.logger.Check(level, event.Message); ce != nil {
		ce.Write(fields(event)...)
	}
	return nil
}

func fields(event errhero.ErrorEvent) []zap.Field {
	fs := []zap.Field{
		zap.String("event_id", event.EventID),
		zap.Time("date", event.Timestamp),
		zap.String("severity", string(event.Severity)),
		zap.String("error_type", event.ErrorType),
		zap.String("fingerprint", event.Fingerprint),
	}
	if event.ConditionType != "" {
		fs = append(fs, zap.String("type", event.ConditionType))
	}
	if event.File != "" {
		fs = append(fs, zap.String("file", event.File), zap.Int("line", event.Line))
	}
	if event.RequestID != "" {
		fs = append(fs, zap.String("request_id", event.RequestID))
	}
	if event.URL != "" {
		fs = append(fs, zap.String("method", event.Method), zap.String("url", event.URL))
	}
	if event.RequestData != "" {
		fs = append(fs, zap.String("request_data", event.RequestData))
	}
	if event.StackTrace != "" {
		fs = append(fs, zap.String("trace", event.StackTrace))
	}
	if event.ContextID != nil {
		fs = append(fs, zap.Uint64("context_id", *event.ContextID))
	}
	if len(event.Metadata) > 0 {
		fs = append(fs, zap.Any("metadata", event.Metadata))
	}
	return fs
}

// Flush syncs the underlying logger. Sync errors from terminals are ignored.
func (s *sink) Flush(ctx context.Context) error {
	if err := s.logger.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) && !errors.Is(err, syscall.ENOTTY) {
		return err
	}
	return nil
}

func (s *sink) Close() error {
	return s.Flush(context.Background())
}

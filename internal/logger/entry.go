package logger

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Entry accumulates metric fields (duration_ms, count, size, status) for a
// single aggregatable log line.
// Example: logger.With(logger.Fields{"count": 3}).Info(ctx, "Pages filled")
type Entry struct {
	logger *Logger
	fields Fields
}

// With creates a new Entry with the given metric fields.
func With(fields Fields) *Entry {
	return &Entry{
		logger: getDefaultLogger(),
		fields: fields,
	}
}

// With adds more fields to an existing Entry.
func (e *Entry) With(fields Fields) *Entry {
	merged := make(Fields, len(e.fields)+len(fields))
	for k, v := range e.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Entry{
		logger: e.logger,
		fields: merged,
	}
}

// WithField adds a single field to the Entry.
func (e *Entry) WithField(key string, value interface{}) *Entry {
	return e.With(Fields{key: value})
}

// WithDuration adds a duration_ms field to the Entry.
func (e *Entry) WithDuration(d time.Duration) *Entry {
	return e.WithField(FieldDurationMs, d.Milliseconds())
}

// WithCount adds a count field to the Entry.
func (e *Entry) WithCount(count int) *Entry {
	return e.WithField(FieldCount, count)
}

// WithSize adds a size field to the Entry.
func (e *Entry) WithSize(size int) *Entry {
	return e.WithField(FieldSize, size)
}

// WithStatus adds a status field to the Entry.
func (e *Entry) WithStatus(status interface{}) *Entry {
	return e.WithField(FieldStatus, status)
}

// log emits the entry at the given level. A non-nil ctx takes priority so
// request-scoped fields (request_id, job_id) land on the same line as the
// metrics.
func (e *Entry) log(ctx context.Context, level logrus.Level, format string, args ...interface{}) {
	l := e.logger
	if ctx != nil {
		l = FromContext(ctx)
	}
	l.WithFields(e.fields).Logf(level, format, args...)
}

// Debug logs at Debug level with metric fields.
func (e *Entry) Debug(ctx context.Context, format string, args ...interface{}) {
	e.log(ctx, logrus.DebugLevel, format, args...)
}

// Info logs at Info level with metric fields.
func (e *Entry) Info(ctx context.Context, format string, args ...interface{}) {
	e.log(ctx, logrus.InfoLevel, format, args...)
}

// Warn logs at Warn level with metric fields.
func (e *Entry) Warn(ctx context.Context, format string, args ...interface{}) {
	e.log(ctx, logrus.WarnLevel, format, args...)
}

// Error logs at Error level with metric fields.
func (e *Entry) Error(ctx context.Context, format string, args ...interface{}) {
	e.log(ctx, logrus.ErrorLevel, format, args...)
}

// Fatal logs at Fatal level with metric fields and exits.
func (e *Entry) Fatal(ctx context.Context, format string, args ...interface{}) {
	l := e.logger
	if ctx != nil {
		l = FromContext(ctx)
	}
	l.WithFields(e.fields).Fatalf(format, args...)
}

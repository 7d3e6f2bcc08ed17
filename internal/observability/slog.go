package observability

import "log/slog"

// SlogLogger adapts a *slog.Logger to the Logger seam.
type SlogLogger struct {
	base *slog.Logger
}

// NewSlogLogger wraps l; a nil l falls back to slog.Default().
func NewSlogLogger(l *slog.Logger) SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return SlogLogger{base: l}
}

func (l SlogLogger) Debug(msg string, args ...any) { l.base.Debug(msg, args...) }
func (l SlogLogger) Info(msg string, args ...any)  { l.base.Info(msg, args...) }
func (l SlogLogger) Warn(msg string, args ...any)  { l.base.Warn(msg, args...) }
func (l SlogLogger) Error(msg string, args ...any) { l.base.Error(msg, args...) }

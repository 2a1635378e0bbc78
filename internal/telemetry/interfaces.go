package telemetry

import "log"

// Logger exposes the logging capabilities required by server components.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts functions into the Logger interface.
type LoggerFunc func(format string, args ...any)

// Printf implements Logger for LoggerFunc.
func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// WrapLogger adapts a standard library logger to the Logger interface.
func WrapLogger(logger *log.Logger) Logger {
	return &loggerAdapter{logger: logger}
}

// StandardLogger returns the wrapped logger when l came from WrapLogger.
func StandardLogger(l Logger) *log.Logger {
	if adapter, ok := l.(*loggerAdapter); ok && adapter != nil {
		return adapter.logger
	}
	return nil
}

// OrDefault returns l, or a wrapper around log.Default when l is nil.
func OrDefault(l Logger) Logger {
	if l == nil {
		return WrapLogger(log.Default())
	}
	return l
}

type loggerAdapter struct {
	logger *log.Logger
}

func (l *loggerAdapter) Printf(format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Printf(format, args...)
}

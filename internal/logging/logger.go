package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger defines the common logging methods used across the application.
type Logger interface {
	// WithComponent adds component name to the log context.
	WithComponent(componentName string) Logger
	// WithOperation adds operation name to the log context.
	WithOperation(operationName string) Logger
	// WithUserID adds user ID to the log context.
	WithUserID(userID string) Logger
	// WithCorrelationID adds a correlation ID to the log context.
	WithCorrelationID(correlationID string) Logger
	// WithError adds error details to the log context.
	WithError(err error) Logger
	// WithFields adds multiple fields to the log context.
	WithFields(fields map[string]interface{}) Logger

	// Debug logs a debug-level message.
	Debug(msg string, args ...interface{})
	// Info logs an info-level message.
	Info(msg string, args ...interface{})
	// Warn logs a warning-level message.
	Warn(msg string, args ...interface{})
	// Error logs an error-level message.
	Error(msg string, args ...interface{})
	// Fatal logs a fatal-level message and exits.
	Fatal(msg string, args ...interface{})

	// LogStartup logs application startup information.
	LogStartup(serviceName string, version string, port int)
	// LogShutdown logs application shutdown information.
	LogShutdown(serviceName string, reason string)
	// LogCacheOperation logs cache operations in a standardized format.
	LogCacheOperation(operation string, key string, hit bool, durationMs int64)
	// LogBusinessEvent logs business events in a standardized format.
	LogBusinessEvent(eventType string, details map[string]interface{})
}

// StandardLogger provides a standardized logging interface backed by logrus.
type StandardLogger struct {
	entry *logrus.Entry
}

// NewStandardLogger creates a new standardized logger.
//
// Parameters:
//
//	logLevel: The log level (debug, info, warn, error).
//	environment: The environment (development, production).
//
// Returns:
//
//	*StandardLogger: The initialized logger.
func NewStandardLogger(logLevel string, environment string) *StandardLogger {
	base := logrus.New()
	base.SetOutput(os.Stdout)
	base.SetLevel(ParseLevel(logLevel))

	if environment == "development" {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}

	return &StandardLogger{entry: logrus.NewEntry(base)}
}

// ParseLevel converts a string level to a logrus.Level, defaulting to info.
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// WithComponent creates a logger with component context.
func (l *StandardLogger) WithComponent(componentName string) Logger {
	return &StandardLogger{entry: l.entry.WithField("component", componentName)}
}

// WithOperation creates a logger with operation context.
func (l *StandardLogger) WithOperation(operationName string) Logger {
	return &StandardLogger{entry: l.entry.WithField("operation", operationName)}
}

// WithUserID creates a logger with user ID context.
func (l *StandardLogger) WithUserID(userID string) Logger {
	return &StandardLogger{entry: l.entry.WithField("user_id", userID)}
}

// WithCorrelationID creates a logger with correlation ID context.
func (l *StandardLogger) WithCorrelationID(correlationID string) Logger {
	return &StandardLogger{entry: l.entry.WithField("correlation_id", correlationID)}
}

// WithError creates a logger with error context.
func (l *StandardLogger) WithError(err error) Logger {
	return &StandardLogger{entry: l.entry.WithError(err)}
}

// WithFields creates a logger with multiple context fields.
func (l *StandardLogger) WithFields(fields map[string]interface{}) Logger {
	return &StandardLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// Debug logs a debug-level message.
func (l *StandardLogger) Debug(msg string, args ...interface{}) {
	if len(args) > 0 {
		l.entry.Debugf(msg, args...)
		return
	}
	l.entry.Debug(msg)
}

// Info logs an info-level message.
func (l *StandardLogger) Info(msg string, args ...interface{}) {
	if len(args) > 0 {
		l.entry.Infof(msg, args...)
		return
	}
	l.entry.Info(msg)
}

// Warn logs a warning-level message.
func (l *StandardLogger) Warn(msg string, args ...interface{}) {
	if len(args) > 0 {
		l.entry.Warnf(msg, args...)
		return
	}
	l.entry.Warn(msg)
}

// Error logs an error-level message.
func (l *StandardLogger) Error(msg string, args ...interface{}) {
	if len(args) > 0 {
		l.entry.Errorf(msg, args...)
		return
	}
	l.entry.Error(msg)
}

// Fatal logs a fatal-level message and exits.
func (l *StandardLogger) Fatal(msg string, args ...interface{}) {
	if len(args) > 0 {
		l.entry.Fatalf(msg, args...)
		return
	}
	l.entry.Fatal(msg)
}

// LogStartup logs application startup information.
func (l *StandardLogger) LogStartup(serviceName string, version string, port int) {
	l.entry.WithFields(logrus.Fields{
		"service": serviceName,
		"version": version,
		"port":    port,
		"event":   "startup",
	}).Info("Application startup")
}

// LogShutdown logs application shutdown information.
func (l *StandardLogger) LogShutdown(serviceName string, reason string) {
	l.entry.WithFields(logrus.Fields{
		"service": serviceName,
		"reason":  reason,
		"event":   "shutdown",
	}).Info("Application shutdown")
}

// LogCacheOperation logs cache operations in a standardized format.
func (l *StandardLogger) LogCacheOperation(operation string, key string, hit bool, durationMs int64) {
	l.entry.WithFields(logrus.Fields{
		"operation":   operation,
		"key":         key,
		"hit":         hit,
		"duration_ms": durationMs,
		"event":       "cache",
	}).Debug("Cache operation")
}

// LogBusinessEvent logs business events in a standardized format.
func (l *StandardLogger) LogBusinessEvent(eventType string, details map[string]interface{}) {
	l.entry.WithFields(logrus.Fields{
		"event_type": eventType,
		"details":    details,
		"event":      "business",
	}).Info("Business event")
}

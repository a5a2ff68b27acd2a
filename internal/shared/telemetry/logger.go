package telemetry

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu  sync.RWMutex
	log = newLogger(os.Stdout, os.Getenv("LOG_LEVEL"))
)

func newLogger(out io.Writer, level string) *logrus.Logger {
	if out == nil {
		out = os.Stdout
	}
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "ts",
		},
	})
	l.SetLevel(parseLevel(level))
	return l
}

func parseLevel(raw string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return logrus.TraceLevel
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

// Configure replaces the process logger. A nil out writes to stdout; tests
// point it at a buffer.
func Configure(out io.Writer, level string) {
	mu.Lock()
	defer mu.Unlock()
	log = newLogger(out, level)
}

// Logger returns the process logger for callers that need the logrus API directly.
func Logger() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Info writes an info-level log line with the given fields.
func Info(msg string, fields map[string]any) {
	Logger().WithFields(logrus.Fields(fields)).Info(msg)
}

// Warn writes a warn-level log line with the given fields.
func Warn(msg string, fields map[string]any) {
	Logger().WithFields(logrus.Fields(fields)).Warn(msg)
}

// Error writes an error-level log line with the given fields.
func Error(msg string, fields map[string]any) {
	Logger().WithFields(logrus.Fields(fields)).Error(msg)
}

// Package logging wraps logrus with the leveled, redacting logger Backy's
// orchestrators and adapters use for structured, operation-scoped logging.
package logging

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Level is Backy's coarse verbosity control, independent of logrus's finer
// level set so callers never need to import logrus directly.
type Level int

const (
	Quiet Level = iota
	Normal
	Verbose
	Debug
)

func (l Level) toLogrus() logrus.Level {
	switch l {
	case Quiet:
		return logrus.ErrorLevel
	case Normal:
		return logrus.InfoLevel
	case Verbose:
		return logrus.DebugLevel
	case Debug:
		return logrus.TraceLevel
	default:
		return logrus.InfoLevel
	}
}

// Config controls how a Logger is constructed.
type Config struct {
	Level      Level
	Format     string // "text" or "json"
	Output     io.Writer
	ShowCaller bool
}

// Logger is Backy's structured logger. Every method is safe on a nil
// receiver's embedded *logrus.Logger only after New/NewDefault has run.
type Logger struct {
	entry *logrus.Entry
}

func New(cfg Config) *Logger {
	base := logrus.New()
	base.SetLevel(cfg.Level.toLogrus())
	if cfg.Format == "json" {
		base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if cfg.Output != nil {
		base.SetOutput(cfg.Output)
	} else {
		base.SetOutput(os.Stderr)
	}
	base.SetReportCaller(cfg.ShowCaller)
	return &Logger{entry: logrus.NewEntry(base)}
}

func NewDefault() *Logger {
	return New(Config{Level: Normal, Format: "text"})
}

func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

func (l *Logger) WithFields(fields map[string]any) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *Logger) Debug(args ...any)            { l.entry.Debug(args...) }
func (l *Logger) Debugf(f string, a ...any)    { l.entry.Debugf(f, a...) }
func (l *Logger) Info(args ...any)             { l.entry.Info(args...) }
func (l *Logger) Infof(f string, a ...any)     { l.entry.Infof(f, a...) }
func (l *Logger) Warn(args ...any)             { l.entry.Warn(args...) }
func (l *Logger) Warnf(f string, a ...any)     { l.entry.Warnf(f, a...) }
func (l *Logger) Error(args ...any)            { l.entry.Error(args...) }
func (l *Logger) Errorf(f string, a ...any)    { l.entry.Errorf(f, a...) }

// LogOperation logs the start of a named operation and returns a closure the
// caller defers to log completion along with elapsed time and outcome.
func (l *Logger) LogOperation(name string) func(error) {
	start := time.Now()
	l.entry.WithField("operation", name).Debug("operation started")
	return func(err error) {
		fields := logrus.Fields{"operation": name, "elapsed": time.Since(start).String()}
		entry := l.entry.WithFields(fields)
		if err != nil {
			entry.WithError(err).Error("operation failed")
			return
		}
		entry.Info("operation completed")
	}
}

var passwordPattern = regexp.MustCompile(`(?i)(password|pwd)\s*=\s*[^&\s;]+`)

// dsnPasswordPattern matches the user:password@ prefix of a go-sql-driver DSN.
var dsnPasswordPattern = regexp.MustCompile(`([^\s:/@'"]+):(\S*)@(tcp\(|unix\(|/)`)

// SanitizeSQL redacts password-bearing fragments (DSNs, SET PASSWORD, etc.)
// from SQL or connection strings before they reach a log line, and truncates
// very long statements so row-data backups don't flood the log.
func SanitizeSQL(sql string) string {
	redacted := passwordPattern.ReplaceAllStringFunc(sql, func(match string) string {
		idx := strings.IndexByte(match, '=')
		return match[:idx+1] + "***"
	})
	redacted = dsnPasswordPattern.ReplaceAllString(redacted, "${1}:***@${3}")
	const maxLen = 500
	if len(redacted) > maxLen {
		return redacted[:maxLen] + fmt.Sprintf("... (%d more bytes)", len(redacted)-maxLen)
	}
	return redacted
}

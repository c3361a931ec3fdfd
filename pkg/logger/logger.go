// Package logger provides the levelled, printf-style logger used across the server.
// It is a thin layer over zap so every component logs timestamped, named events to the
// console and, optionally, to an append-only log file.
package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the minimum severity that is emitted
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// ParseLevel converts a level name (DEBUG, INFO, WARN, ERROR) into a LogLevel.
// Unknown names fall back to INFO.
func ParseLevel(name string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Options configures a root logger
type Options struct {
	Name  string
	Level LogLevel
	// File, when set, receives every event in addition to stderr.
	File string
}

// Logger is a named, levelled logger
type Logger struct {
	sugar *zap.SugaredLogger
	base  *zap.Logger
	file  *os.File
}

// New builds a root logger writing to stderr and, if configured, to a log file
func New(opts Options) (*Logger, error) {
	level := zap.NewAtomicLevelAt(opts.Level.zapLevel())

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level),
	}

	var file *os.File
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(f), level))
	}

	base := zap.New(zapcore.NewTee(cores...))
	if opts.Name != "" {
		base = base.Named(opts.Name)
	}
	return &Logger{sugar: base.Sugar(), base: base, file: file}, nil
}

// Wrap adapts an existing zap logger, mainly for tests using zaptest or observer cores
func Wrap(z *zap.Logger) *Logger {
	return &Logger{sugar: z.Sugar(), base: z}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return Wrap(zap.NewNop())
}

// Named returns a child logger tagged with the component name
func (l *Logger) Named(name string) *Logger {
	child := l.base.Named(name)
	return &Logger{sugar: child.Sugar(), base: child}
}

// Debug logs a debug event
func (l *Logger) Debug(format string, args ...any) {
	l.sugar.Debugf(format, args...)
}

// Info logs an informational event
func (l *Logger) Info(format string, args ...any) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warning
func (l *Logger) Warn(format string, args ...any) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error
func (l *Logger) Error(format string, args ...any) {
	l.sugar.Errorf(format, args...)
}

// Fatal logs the event and terminates the process
func (l *Logger) Fatal(format string, args ...any) {
	l.sugar.Fatalf(format, args...)
}

// Sync flushes buffered events and closes the log file owned by a root logger
func (l *Logger) Sync() error {
	err := l.base.Sync()
	// stderr cannot be synced on most terminals
	if err != nil && isIgnorableSyncError(err) {
		err = nil
	}
	if l.file != nil {
		if cerr := l.file.Close(); cerr != nil && err == nil {
			err = cerr
		}
		l.file = nil
	}
	return err
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "invalid argument") || strings.Contains(msg, "inappropriate ioctl")
}

package utils

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents different log levels
type LogLevel string

const (
	INFO  LogLevel = "INFO"
	WARN  LogLevel = "WARN"
	ERROR LogLevel = "ERROR"
	DEBUG LogLevel = "DEBUG"
)

// LoggerOptions configures the process logger
type LoggerOptions struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Logger provides structured JSON logging
type Logger struct {
	z *zap.Logger
}

// NewLogger creates a JSON logger writing to stdout at info level
func NewLogger() *Logger {
	return NewLoggerWithOptions(LoggerOptions{Level: "info"})
}

// NewLoggerWithOptions creates a logger; when File is set, entries are also
// written to a rotated file.
func NewLoggerWithOptions(opts LoggerOptions) *Logger {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.MessageKey = "message"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewJSONEncoder(encoderConfig)

	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level)}
	if opts.File != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 50),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			MaxAge:     orDefault(opts.MaxAgeDays, 14),
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(encoder, fileWriter, level))
	}

	return &Logger{z: zap.New(zapcore.NewTee(cores...))}
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() *Logger {
	return &Logger{z: zap.NewNop()}
}

// FromZap wraps an existing zap logger
func FromZap(z *zap.Logger) *Logger {
	return &Logger{z: z}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Named returns a child logger tagged with a component name
func (l *Logger) Named(component string) *Logger {
	return &Logger{z: l.z.Named(component)}
}

// Zap exposes the underlying zap logger
func (l *Logger) Zap() *zap.Logger {
	return l.z
}

// Info logs an info message
func (l *Logger) Info(message string, data ...interface{}) {
	l.z.Info(message, dataFields(data)...)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, data ...interface{}) {
	l.z.Warn(message, dataFields(data)...)
}

// Error logs an error message
func (l *Logger) Error(message string, err error, data ...interface{}) {
	fields := dataFields(data)
	if err != nil {
		fields = append(fields, zap.String("error", err.Error()))
	}
	l.z.Error(message, fields...)
}

// Debug logs a debug message
func (l *Logger) Debug(message string, data ...interface{}) {
	l.z.Debug(message, dataFields(data)...)
}

// Sync flushes buffered entries
func (l *Logger) Sync() error {
	return l.z.Sync()
}

func dataFields(data []interface{}) []zap.Field {
	if len(data) == 0 || data[0] == nil {
		return nil
	}
	return []zap.Field{zap.Any("data", data[0])}
}

var globalLogger atomic.Pointer[Logger]

func init() {
	globalLogger.Store(NewLogger())
}

// GlobalLogger returns the process-wide logger
func GlobalLogger() *Logger {
	return globalLogger.Load()
}

// SetGlobalLogger replaces the process-wide logger
func SetGlobalLogger(l *Logger) {
	if l != nil {
		globalLogger.Store(l)
	}
}

// Convenience functions for global logger
func LogInfo(message string, data ...interface{}) {
	GlobalLogger().Info(message, data...)
}

func LogWarn(message string, data ...interface{}) {
	GlobalLogger().Warn(message, data...)
}

func LogError(message string, err error, data ...interface{}) {
	GlobalLogger().Error(message, err, data...)
}

func LogDebug(message string, data ...interface{}) {
	GlobalLogger().Debug(message, data...)
}

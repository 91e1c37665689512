// logging/logger.go

package util

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is a no-op logger until InitLogger runs, so the cache packages can be
// used as a library without any logging setup.
var Log = zap.NewNop()

// InitLogger builds the production logger. An empty logDirPath logs to
// stdout/stderr only. LOG_LEVEL overrides level.
func InitLogger(logDirPath string, level string) error {
	config := zap.NewProductionConfig()

	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err == nil {
			config.Level.SetLevel(parsed)
		}
	}

	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}
	if logDirPath != "" {
		if err := os.MkdirAll(logDirPath, 0o755); err != nil {
			return err
		}
		config.OutputPaths = append(config.OutputPaths, filepath.Join(logDirPath, "scorecache.log"))
		config.ErrorOutputPaths = append(config.ErrorOutputPaths, filepath.Join(logDirPath, "scorecache_error.log"))
	}

	config.EncoderConfig.CallerKey = "caller"
	config.EncoderConfig.StacktraceKey = "stacktrace"
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	built, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	Log = built
	zap.ReplaceGlobals(Log)
	return nil
}

// SetLogger swaps the package logger, mostly for tests using zaptest/observer.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	Log = l
}

func Info(msg string, fields ...zap.Field) {
	Log.Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	Log.Error(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	Log.Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Log.Warn(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	Log.Fatal(msg, fields...)
}

// WithContext adds context fields to the logger
func WithContext(fields ...zap.Field) *zap.Logger {
	return Log.With(fields...)
}

func Sync() error {
	return Log.Sync()
}

package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log  *zap.SugaredLogger
	once sync.Once
)

// Init configures the process-wide logger. LOG_LEVEL selects verbosity.
func Init() {
	once.Do(func() {
		var level zapcore.Level
		switch os.Getenv("LOG_LEVEL") {
		case "debug":
			level = zapcore.DebugLevel
		case "warn":
			level = zapcore.WarnLevel
		case "error":
			level = zapcore.ErrorLevel
		default:
			level = zapcore.InfoLevel
		}

		config := zap.Config{
			Level:            zap.NewAtomicLevelAt(level),
			Development:      os.Getenv("APP_ENV") == "development",
			Encoding:         "json",
			EncoderConfig:    zap.NewProductionEncoderConfig(),
			OutputPaths:      []string{"stdout"},
			ErrorOutputPaths: []string{"stderr"},
		}
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

		built, err := config.Build()
		if err != nil {
			log = zap.NewExample().Sugar()
			log.Warnw("falling back to example logger", "error", err)
			return
		}
		log = built.Sugar()
	})
}

func ensure() *zap.SugaredLogger {
	if log == nil {
		Init()
	}
	return log
}

func Debug(msg string, keysAndValues ...interface{}) {
	ensure().Debugw(msg, keysAndValues...)
}

func Info(msg string, keysAndValues ...interface{}) {
	ensure().Infow(msg, keysAndValues...)
}

func Warn(msg string, keysAndValues ...interface{}) {
	ensure().Warnw(msg, keysAndValues...)
}

func Error(msg string, keysAndValues ...interface{}) {
	ensure().Errorw(msg, keysAndValues...)
}

func Fatal(msg string, err error) {
	ensure().Fatalw(msg, "error", err)
}

// Sync flushes buffered log entries; call on shutdown.
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}

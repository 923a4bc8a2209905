package logger

import (
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu      sync.RWMutex
	zLogger = zap.NewNop()
)

// InitLogger installs the process logger. It writes JSON lines to stdout and,
// when file is not empty, appends them to that file as well.
func InitLogger(level string, file string) error {
	lvl := zap.NewAtomicLevel()
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if file != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, file)
		cfg.ErrorOutputPaths = append(cfg.ErrorOutputPaths, file)
	}

	l, err := cfg.Build()
	if err != nil {
		return err
	}
	SetLogger(l)
	return nil
}

// SetLogger replaces the process logger.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	zLogger = l
}

// L returns the process logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return zLogger
}

// Sync flushes buffered entries.
func Sync() {
	_ = L().Sync()
}

func LogError(err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	L().Error(err.Error(), append(fields, caller())...)
}

func LogInfo(msg string, fields ...zap.Field) {
	L().Info(msg, append(fields, caller())...)
}

func caller() zap.Field {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return zap.Skip()
	}
	return zap.String("at", filepath.Base(file)+":"+strconv.Itoa(line))
}

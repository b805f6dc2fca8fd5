package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	envLocal = "local"
	envDev   = "dev"
)

// New builds a zap logger for the given environment.
func New(env string) *zap.Logger {
	var log *zap.Logger
	var err error

	switch env {
	case envLocal:
		log, err = zap.NewDevelopment()
	case envDev:
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		log, err = cfg.Build()
	default:
		log, err = zap.NewProduction()
	}

	if err != nil {
		return zap.NewNop()
	}

	return log.With(zap.String("env", env))
}

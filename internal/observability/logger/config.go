package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config configura el logger.
type Config struct {
	// Env: "dev" (consola con colores) o "prod" (JSON). Default "dev".
	Env string
	// Level: "debug", "info", "warn", "error". Default "info".
	Level string
	// ServiceName y Version se agregan como campos base si no están vacíos.
	ServiceName string
	Version     string
}

func build(cfg Config) *zap.Logger {
	level := zap.NewAtomicLevelAt(parseLevel(cfg.Level))

	var (
		l   *zap.Logger
		err error
	)
	if strings.EqualFold(strings.TrimSpace(cfg.Env), "prod") {
		zcfg := zap.NewProductionConfig()
		zcfg.Level = level
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zcfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
		l, err = zcfg.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	} else {
		zcfg := zap.NewDevelopmentConfig()
		zcfg.Level = level
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		zcfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
		zcfg.DisableStacktrace = true
		l, err = zcfg.Build(zap.AddCaller())
	}
	if err != nil {
		// fallback a un logger básico
		l, _ = zap.NewProduction()
	}

	if cfg.ServiceName != "" {
		l = l.With(zap.String("service", cfg.ServiceName))
	}
	if cfg.Version != "" {
		l = l.With(zap.String("version", cfg.Version))
	}
	return l
}

func parseLevel(lvl string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

package logger

import (
	"go-fleetreport/internal/config"
	"go-fleetreport/internal/database"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the application logger. When LogToDB is set, entries are
// also copied to the logs collection.
func NewLogger(cfg *config.Config, mongodb *database.MongodbDB) (*zap.Logger, error) {
	var zapConfig zap.Config
	if cfg.Environment == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapConfig.EncoderConfig.FunctionKey = "func"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	baseLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	if !cfg.LogToDB || mongodb == nil {
		return baseLogger, nil
	}

	dbWriter := NewDBLogWriter(mongodb, cfg)
	return zap.New(NewDBCore(baseLogger.Core(), dbWriter), zap.AddCaller()), nil
}

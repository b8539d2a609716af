package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Production mode emits JSON; dev mode is
// colorized console output.
func New(isProd bool) (*zap.Logger, func() error) {
	var logger *zap.Logger
	if isProd {
		logger = zap.Must(zap.NewProduction())
	} else {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger = zap.Must(cfg.Build())
	}
	return logger, logger.Sync
}

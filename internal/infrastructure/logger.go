package infrastructure

import (
	"strings"

	"go.uber.org/zap"
)

// NewLogger builds the process-wide zap logger. Mode "prod"/"production"
// selects JSON output, everything else the development console encoder.
func NewLogger(mode string) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// Package logging configures the process-wide zap logger.
package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/brunopk/paycore/internal/shared/correlation"
)

// New builds a production JSON logger at the given level. Unknown levels
// fall back to info.
func New(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// WithContext returns log annotated with the correlation fields carried by
// ctx. Fields that are empty in ctx are omitted.
func WithContext(ctx context.Context, log *zap.Logger) *zap.Logger {
	fields := make([]zap.Field, 0, 3)
	if cid := correlation.CorrelationID(ctx); cid != "" {
		fields = append(fields, zap.String("correlation_id", cid))
	}
	if tid := correlation.TenantID(ctx); tid != "" {
		fields = append(fields, zap.String("tenant_id", tid))
	}
	if sub := correlation.Subject(ctx); sub != "" {
		fields = append(fields, zap.String("subject", sub))
	}
	if len(fields) == 0 {
		return log
	}
	return log.With(fields...)
}

package gateway

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/brunopk/paycore/internal/config"
	"github.com/brunopk/paycore/internal/metrics"
	"github.com/brunopk/paycore/internal/shared/clock"
)

// New builds the configured provider wrapped in the retrying Adapter.
func New(cfg config.GatewayConfig, clk clock.Clock, log *zap.Logger, m *metrics.Metrics) (*Adapter, error) {
	var provider Provider
	switch cfg.Provider {
	case "fake":
		provider = NewFakeProvider(cfg.FakeFailRate, time.Now().UnixNano())
	case "stripe":
		if cfg.StripeAPIKey == "" {
			return nil, fmt.Errorf("gateway provider stripe requires an api key")
		}
		provider = NewStripeProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown gateway provider %q", cfg.Provider)
	}
	return NewAdapter(provider, cfg, clk, log, m), nil
}

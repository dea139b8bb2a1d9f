package cli

import (
	"github.com/brunopk/paycore/internal/config"
	"github.com/brunopk/paycore/internal/di"
)

// bootstrap loads configuration and prepares the service provider. Nothing
// is connected yet; infrastructure comes up lazily on first use.
func bootstrap() (*di.Provider, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.LogLevel = "debug"
	}

	container := di.New()
	provider := di.NewProvider(container, cfg)
	if err := provider.RegisterAll(); err != nil {
		return nil, err
	}
	return provider, nil
}

package di

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/brunopk/paycore/internal/auth"
	"github.com/brunopk/paycore/internal/config"
	"github.com/brunopk/paycore/internal/core/account"
	"github.com/brunopk/paycore/internal/core/payment"
	"github.com/brunopk/paycore/internal/core/reconciliation"
	"github.com/brunopk/paycore/internal/core/report"
	"github.com/brunopk/paycore/internal/core/tenant"
	"github.com/brunopk/paycore/internal/core/webhook"
	"github.com/brunopk/paycore/internal/gateway"
	"github.com/brunopk/paycore/internal/metrics"
	"github.com/brunopk/paycore/internal/mq"
	"github.com/brunopk/paycore/internal/server"
	"github.com/brunopk/paycore/internal/shared/clock"
	"github.com/brunopk/paycore/internal/shared/correlation"
	"github.com/brunopk/paycore/internal/shared/logging"
	"github.com/brunopk/paycore/internal/storage/kv"
	"github.com/brunopk/paycore/internal/storage/ledgerdb"
	"github.com/brunopk/paycore/internal/storage/ledgerdb/memory"
	"github.com/brunopk/paycore/internal/storage/ledgerdb/postgres"
	"github.com/brunopk/paycore/internal/worker"
)

// Provider configures and registers services in the container.
type Provider struct {
	container *Container
	config    *config.Config
}

// NewProvider creates a new service provider.
func NewProvider(container *Container, cfg *config.Config) *Provider {
	return &Provider{container: container, config: cfg}
}

// RegisterAll registers every service builder. Nothing is connected until
// the first Get.
func (p *Provider) RegisterAll() error {
	p.container.Register(ServiceConfig, p.config)
	p.container.Register(ServiceClock, clock.Clock(clock.System{}))

	p.registerInfraBuilders()
	p.registerCoreBuilders()
	p.registerProcessBuilders()

	return nil
}

// registerInfraBuilders registers logging, metrics, storage, broker and
// gateway builders.
func (p *Provider) registerInfraBuilders() {
	p.container.RegisterBuilder(ServiceLogger, func(c *Container) (interface{}, error) {
		return logging.New(p.config.LogLevel)
	})

	p.container.RegisterBuilder(ServiceMetrics, func(c *Container) (interface{}, error) {
		return metrics.New(), nil
	})

	// The database backend follows the configuration: an empty URL selects
	// the in-memory backend, anything else is a Postgres DSN.
	p.container.RegisterBuilder(ServiceDB, func(c *Container) (interface{}, error) {
		var db ledgerdb.Manager
		if p.config.Database.URL == "" {
			db = memory.NewManager()
		} else {
			m, err := postgres.NewManager(p.config.Database)
			if err != nil {
				return nil, err
			}
			db = m
		}

		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout(p.config.Database.ConnectTimeout))
		defer cancel()
		if err := db.Open(ctx); err != nil {
			return nil, err
		}
		return db, nil
	})

	p.container.RegisterBuilder(ServiceRedis, func(c *Container) (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return kv.NewClient(ctx, p.config.Redis)
	})

	p.container.RegisterBuilder(ServiceBroker, func(c *Container) (interface{}, error) {
		log, err := p.logger(c)
		if err != nil {
			return nil, err
		}
		return mq.Connect(p.config.Rabbit, log)
	})

	p.container.RegisterBuilder(ServiceGateway, func(c *Container) (interface{}, error) {
		log, err := p.logger(c)
		if err != nil {
			return nil, err
		}
		met, err := p.metrics(c)
		if err != nil {
			return nil, err
		}
		return gateway.New(p.config.Gateway, p.clock(c), log, met)
	})

	p.container.RegisterBuilder(ServiceIdem, func(c *Container) (interface{}, error) {
		rdb, err := p.redis(c)
		if err != nil {
			return nil, err
		}
		ttl := time.Duration(p.config.IdempotencyTTLSeconds) * time.Second
		return kv.NewIdempotencyStore(rdb, ttl), nil
	})

	p.container.RegisterBuilder(ServiceLimiter, func(c *Container) (interface{}, error) {
		rdb, err := p.redis(c)
		if err != nil {
			return nil, err
		}
		return kv.NewRateLimiter(rdb), nil
	})

	p.container.RegisterBuilder(ServiceChaos, func(c *Container) (interface{}, error) {
		rdb, err := p.redis(c)
		if err != nil {
			return nil, err
		}
		return kv.NewChaosStore(rdb), nil
	})
}

// registerCoreBuilders registers the domain services.
func (p *Provider) registerCoreBuilders() {
	p.container.RegisterBuilder(ServiceAuth, func(c *Container) (interface{}, error) {
		db, err := p.db(c)
		if err != nil {
			return nil, err
		}
		return auth.NewService(db, p.config.Auth, p.clock(c)), nil
	})

	p.container.RegisterBuilder(ServicePayments, func(c *Container) (interface{}, error) {
		db, err := p.db(c)
		if err != nil {
			return nil, err
		}
		log, err := p.logger(c)
		if err != nil {
			return nil, err
		}
		met, err := p.metrics(c)
		if err != nil {
			return nil, err
		}
		return payment.NewService(db, p.clock(c), log, met), nil
	})

	p.container.RegisterBuilder(ServiceWebhooks, func(c *Container) (interface{}, error) {
		db, err := p.db(c)
		if err != nil {
			return nil, err
		}
		log, err := p.logger(c)
		if err != nil {
			return nil, err
		}
		return webhook.NewService(db, p.clock(c), log), nil
	})

	p.container.RegisterBuilder(ServiceTenants, func(c *Container) (interface{}, error) {
		db, err := p.db(c)
		if err != nil {
			return nil, err
		}
		log, err := p.logger(c)
		if err != nil {
			return nil, err
		}
		return tenant.NewSynchronizer(db, p.clock(c), log), nil
	})

	p.container.RegisterBuilder(ServiceRecon, func(c *Container) (interface{}, error) {
		db, err := p.db(c)
		if err != nil {
			return nil, err
		}
		log, err := p.logger(c)
		if err != nil {
			return nil, err
		}
		met, err := p.metrics(c)
		if err != nil {
			return nil, err
		}
		return reconciliation.NewEngine(db, p.clock(c), log, met), nil
	})

	p.container.RegisterBuilder(ServiceAccounts, func(c *Container) (interface{}, error) {
		db, err := p.db(c)
		if err != nil {
			return nil, err
		}
		return account.NewService(db), nil
	})

	p.container.RegisterBuilder(ServiceReports, func(c *Container) (interface{}, error) {
		db, err := p.db(c)
		if err != nil {
			return nil, err
		}
		return report.NewService(db), nil
	})
}

// registerProcessBuilders registers the HTTP server and the worker runner.
func (p *Provider) registerProcessBuilders() {
	p.container.RegisterBuilder(ServiceHTTPServer, func(c *Container) (interface{}, error) {
		log, err := p.logger(c)
		if err != nil {
			return nil, err
		}
		met, err := p.metrics(c)
		if err != nil {
			return nil, err
		}
		db, err := p.db(c)
		if err != nil {
			return nil, err
		}
		rdb, err := p.redis(c)
		if err != nil {
			return nil, err
		}

		deps := server.Deps{
			Config:   p.config,
			Log:      log,
			Metrics:  met,
			DB:       db,
			Redis:    rdb,
			Auth:     c.MustGet(ServiceAuth).(*auth.Service),
			Payments: c.MustGet(ServicePayments).(*payment.Service),
			Webhooks: c.MustGet(ServiceWebhooks).(*webhook.Service),
			Recon:    c.MustGet(ServiceRecon).(*reconciliation.Engine),
			Accounts: c.MustGet(ServiceAccounts).(*account.Service),
			Reports:  c.MustGet(ServiceReports).(*report.Service),
			Idemp:    c.MustGet(ServiceIdem).(*kv.IdempotencyStore),
			Limiter:  c.MustGet(ServiceLimiter).(*kv.RateLimiter),
			Chaos:    c.MustGet(ServiceChaos).(*kv.ChaosStore),
		}
		return server.New(deps), nil
	})

	p.container.RegisterBuilder(ServiceWorker, func(c *Container) (interface{}, error) {
		log, err := p.logger(c)
		if err != nil {
			return nil, err
		}
		met, err := p.metrics(c)
		if err != nil {
			return nil, err
		}
		db, err := p.db(c)
		if err != nil {
			return nil, err
		}
		brokerSvc, err := c.Get(ServiceBroker)
		if err != nil {
			return nil, err
		}
		broker := brokerSvc.(*mq.Broker)
		gw := c.MustGet(ServiceGateway).(*gateway.Adapter)
		webhooks := c.MustGet(ServiceWebhooks).(*webhook.Service)
		payments := c.MustGet(ServicePayments).(*payment.Service)
		tenants := c.MustGet(ServiceTenants).(*tenant.Synchronizer)
		engine := c.MustGet(ServiceRecon).(*reconciliation.Engine)
		clk := p.clock(c)

		outbox := worker.NewOutboxDispatcher(db, broker, webhooks, p.config.Outbox, clk, log, met, workerID())
		consumer := worker.NewConsumer(broker, payments, tenants, log)
		webhookDisp := worker.NewWebhookDispatcher(db, p.config.Webhook, clk, log, met)
		recon := worker.NewReconScheduler(db, engine, gw, p.config.Recon, log)

		return worker.NewRunner(outbox, consumer, webhookDisp, recon, log), nil
	})
}

// GetServer returns the HTTP server from the container.
func (p *Provider) GetServer() (*server.Server, error) {
	svc, err := p.container.Get(ServiceHTTPServer)
	if err != nil {
		return nil, err
	}
	return svc.(*server.Server), nil
}

// GetWorkerRunner returns the worker runner from the container.
func (p *Provider) GetWorkerRunner() (*worker.Runner, error) {
	svc, err := p.container.Get(ServiceWorker)
	if err != nil {
		return nil, err
	}
	return svc.(*worker.Runner), nil
}

// GetDB returns the storage manager from the container.
func (p *Provider) GetDB() (ledgerdb.Manager, error) {
	svc, err := p.container.Get(ServiceDB)
	if err != nil {
		return nil, err
	}
	return svc.(ledgerdb.Manager), nil
}

// GetLogger returns the process logger from the container.
func (p *Provider) GetLogger() (*zap.Logger, error) {
	svc, err := p.container.Get(ServiceLogger)
	if err != nil {
		return nil, err
	}
	return svc.(*zap.Logger), nil
}

// GetConfig returns the configuration from the container.
func (p *Provider) GetConfig() *config.Config {
	return p.config
}

// Shutdown closes the connected infrastructure in reverse dependency order.
func (p *Provider) Shutdown(ctx context.Context) {
	if p.container.Has(ServiceBroker) {
		if svc, err := p.container.Get(ServiceBroker); err == nil {
			svc.(*mq.Broker).Close()
		}
	}
	if p.container.Has(ServiceRedis) {
		if svc, err := p.container.Get(ServiceRedis); err == nil {
			svc.(*redis.Client).Close()
		}
	}
	if p.container.Has(ServiceDB) {
		if svc, err := p.container.Get(ServiceDB); err == nil {
			svc.(ledgerdb.Manager).Close(ctx)
		}
	}
}

func (p *Provider) logger(c *Container) (*zap.Logger, error) {
	svc, err := c.Get(ServiceLogger)
	if err != nil {
		return nil, err
	}
	return svc.(*zap.Logger), nil
}

func (p *Provider) metrics(c *Container) (*metrics.Metrics, error) {
	svc, err := c.Get(ServiceMetrics)
	if err != nil {
		return nil, err
	}
	return svc.(*metrics.Metrics), nil
}

func (p *Provider) db(c *Container) (ledgerdb.Manager, error) {
	svc, err := c.Get(ServiceDB)
	if err != nil {
		return nil, err
	}
	return svc.(ledgerdb.Manager), nil
}

func (p *Provider) redis(c *Container) (*redis.Client, error) {
	svc, err := c.Get(ServiceRedis)
	if err != nil {
		return nil, err
	}
	return svc.(*redis.Client), nil
}

func (p *Provider) clock(c *Container) clock.Clock {
	return c.MustGet(ServiceClock).(clock.Clock)
}

func connectTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}

// workerID identifies this process in outbox leases.
func workerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "paycored"
	}
	return fmt.Sprintf("%s-%s", host, correlation.NewID()[:8])
}

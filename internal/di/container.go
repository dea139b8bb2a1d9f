// Package di provides the dependency injection container wiring the
// paycored process together.
package di

import (
	"errors"
	"sync"
)

// Container manages service registration and resolution. Builders run
// lazily on first Get and the result is memoized.
type Container struct {
	mu       sync.RWMutex
	services map[string]interface{}
	builders map[string]Builder
}

// Builder is a function that creates a service instance.
type Builder func(c *Container) (interface{}, error)

// New creates an empty container.
func New() *Container {
	return &Container{
		services: make(map[string]interface{}),
		builders: make(map[string]Builder),
	}
}

// Register registers a ready service instance.
func (c *Container) Register(name string, service interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[name] = service
}

// RegisterBuilder registers a builder function for lazy instantiation.
func (c *Container) RegisterBuilder(name string, builder Builder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.builders[name] = builder
}

// Get retrieves a service by name, building it if necessary.
func (c *Container) Get(name string) (interface{}, error) {
	c.mu.RLock()
	service, exists := c.services[name]
	c.mu.RUnlock()

	if exists {
		return service, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Check again in case it was built while waiting for the lock.
	if service, exists := c.services[name]; exists {
		return service, nil
	}

	builder, hasBuilder := c.builders[name]
	if !hasBuilder {
		return nil, errors.New("service not found: " + name)
	}

	service, err := builder(c)
	if err != nil {
		return nil, err
	}

	c.services[name] = service
	return service, nil
}

// MustGet retrieves a service or panics if it cannot be built.
func (c *Container) MustGet(name string) interface{} {
	service, err := c.Get(name)
	if err != nil {
		panic(err)
	}
	return service
}

// Has checks if a service or builder is registered.
func (c *Container) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, exists := c.services[name]; exists {
		return true
	}
	_, exists := c.builders[name]
	return exists
}

// Service names constants for type-safe access.
const (
	ServiceConfig     = "config"
	ServiceLogger     = "logger"
	ServiceMetrics    = "metrics"
	ServiceClock      = "clock"
	ServiceDB         = "db"
	ServiceRedis      = "redis"
	ServiceBroker     = "broker"
	ServiceGateway    = "gateway"
	ServiceAuth       = "auth"
	ServicePayments   = "payments"
	ServiceWebhooks   = "webhooks"
	ServiceTenants    = "tenants"
	ServiceRecon      = "reconciliation"
	ServiceAccounts   = "accounts"
	ServiceReports    = "reports"
	ServiceIdem       = "kv.idempotency"
	ServiceLimiter    = "kv.ratelimit"
	ServiceChaos      = "kv.chaos"
	ServiceHTTPServer = "http.server"
	ServiceWorker     = "worker.runner"
)

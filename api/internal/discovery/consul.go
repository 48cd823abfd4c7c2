// Package discovery resolves the prediction service address through Consul.
package discovery

import (
	"context"
	"fmt"
	"sync/atomic"

	consulapi "github.com/hashicorp/consul/api"
	"go.uber.org/zap"

	"agrismart-bot/api/internal/predict"
)

// Connect creates a Consul client and pings the agent.
func Connect(address string, logger *zap.Logger) (*consulapi.Client, error) {
	cfg := consulapi.DefaultConfig()
	cfg.Address = address

	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create consul client for %s: %w", address, err)
	}
	if _, err := client.Agent().Self(); err != nil {
		return nil, fmt.Errorf("ping consul agent at %s: %w", address, err)
	}
	logger.Info("connected to Consul agent", zap.String("address", address))
	return client, nil
}

// Healthy lists passing instances of a service.
type Healthy interface {
	Service(service, tag string, passingOnly bool, q *consulapi.QueryOptions) ([]*consulapi.ServiceEntry, *consulapi.QueryMeta, error)
}

// ConsulResolver picks a healthy instance of the prediction service round-robin and
// falls back to a static address when none is available.
type ConsulResolver struct {
	health   Healthy
	service  string
	fallback predict.Resolver
	logger   *zap.Logger
	next     atomic.Uint64
}

func NewConsulResolver(health Healthy, service string, fallback predict.Resolver, logger *zap.Logger) *ConsulResolver {
	return &ConsulResolver{health: health, service: service, fallback: fallback, logger: logger}
}

func (r *ConsulResolver) BaseURL(ctx context.Context) (string, error) {
	q := (&consulapi.QueryOptions{}).WithContext(ctx)
	entries, _, err := r.health.Service(r.service, "", true, q)
	if err == nil && len(entries) > 0 {
		e := entries[r.next.Add(1)%uint64(len(entries))]
		addr := e.Service.Address
		if addr == "" {
			addr = e.Node.Address
		}
		return fmt.Sprintf("http://%s:%d", addr, e.Service.Port), nil
	}
	if err != nil {
		r.logger.Warn("consul lookup failed", zap.String("service", r.service), zap.Error(err))
	} else {
		r.logger.Warn("no healthy instances in consul", zap.String("service", r.service))
	}
	if r.fallback == nil {
		return "", fmt.Errorf("no healthy instances of %q", r.service)
	}
	return r.fallback.BaseURL(ctx)
}

package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/swistakmatt/2fa-app/internal/infra/config"
)

// Provider represents a telemetry provider handle.
type Provider struct {
	up prometheus.Gauge
}

// Attach configures telemetry exporters and returns a provider handle.
// Per-request metrics live in the HTTP metrics middleware; this only exposes
// the process-level liveness gauge.
func Attach(_ context.Context, cfg *config.AppConfig) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	up := promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "twofa",
		Name:      "service_up",
		Help:      "Set to 1 while the service is running",
	})
	up.Set(1)

	return &Provider{
		up: up,
	}, nil
}

// Up exposes the service liveness gauge.
func (p *Provider) Up() prometheus.Gauge {
	if p == nil {
		return prometheus.NewGauge(prometheus.GaugeOpts{})
	}
	return p.up
}

package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bmyhack/omms-api/internal/infra/config"
)

// Provider represents a telemetry provider handle.
type Provider struct {
	serviceInfo *prometheus.GaugeVec
}

// Attach registers process-level metrics and returns a provider handle.
func Attach(_ context.Context, cfg *config.AppConfig) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	serviceInfo := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "omms",
		Name:      "service_info",
		Help:      "Static service metadata, always 1",
	}, []string{"service", "env"})

	if err := prometheus.Register(serviceInfo); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			serviceInfo = already.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, fmt.Errorf("register service info: %w", err)
		}
	}

	serviceInfo.WithLabelValues(cfg.App.Name, cfg.App.Env).Set(1)

	return &Provider{
		serviceInfo: serviceInfo,
	}, nil
}

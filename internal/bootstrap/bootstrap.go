package bootstrap

import (
	"go.uber.org/zap"

	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/config"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/portal"
)

// NewLogger builds the service logger: human-readable in dev, JSON elsewhere.
func NewLogger(env string) (*zap.Logger, error) {
	if env == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Portals builds the adapter registry from configuration. Real portals are
// registered only when an endpoint is configured; the mock is available
// unless disabled, so local environments always have a destination.
func Portals(cfg config.Config) *portal.Registry {
	registry := portal.NewRegistry()
	if cfg.SAMGovEndpoint != "" {
		registry.Register(portal.NewSAMGov(cfg.SAMGovEndpoint, cfg.SAMGovAPIKey, cfg.PortalTimeout), portal.SAMGovRequirements())
	}
	if cfg.FedConnectEndpoint != "" {
		registry.Register(portal.NewFedConnect(cfg.FedConnectEndpoint, cfg.FedConnectAPIKey, cfg.PortalTimeout), portal.FedConnectRequirements())
	}
	if cfg.MockPortalEnabled {
		registry.Register(portal.NewMock(), portal.MockRequirements())
	}
	return registry
}

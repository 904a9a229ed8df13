package server

import (
	"context"

	"github.com/vouchwatch/backend/internal/store"
)

// HealthService defines behaviour for readiness probes.
type HealthService interface {
	Probe(ctx context.Context) error
}

// StoreHealthService verifies endorsement-store connectivity as part of
// health checks.
type StoreHealthService struct {
	Client store.Client
}

// Probe implements the HealthService interface.
func (s StoreHealthService) Probe(ctx context.Context) error {
	if s.Client == nil {
		return nil
	}
	return s.Client.VerifyConnectivity(ctx)
}

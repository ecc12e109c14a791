// Package system manages the lifecycle of the orchestrator's background
// workers: the expiry sweep, the webhook retry loop, the settlement
// aggregator, and the HTTP server.
package system

import (
	"context"

	"github.com/chigozirigeorge/omnixec-sub000/internal/coresvc"
)

// Service is a lifecycle-managed component.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// DescriptorProvider optionally advertises service metadata.
type DescriptorProvider interface {
	Descriptor() coresvc.Descriptor
}

package service

import (
	"context"

	"github.com/BarkinBalci/capi-relay-service/internal/dto"
)

// IngestServicer defines the interface for ingestion service operations
type IngestServicer interface {
	// Track runs the full pipeline for one storefront event and returns the persisted event id
	Track(ctx context.Context, req *dto.TrackRequest, meta dto.RequestMeta) (string, error)

	// TrackShopEvent records a webhook event for every tenant of a shop and returns how many were recorded
	TrackShopEvent(ctx context.Context, shopDomain string, req *dto.TrackRequest, meta dto.RequestMeta) (int, error)

	// CheckHealth probes the event store
	CheckHealth(ctx context.Context) error

	// GetMetrics queries the analytics archive for one tenant
	GetMetrics(ctx context.Context, req *dto.GetMetricsRequest) (*dto.GetMetricsResponse, error)
}

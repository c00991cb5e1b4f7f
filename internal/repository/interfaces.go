package repository

import (
	"context"
	"time"

	"github.com/BarkinBalci/capi-relay-service/internal/domain"
)

// TenantGateway is the read-only accessor for per-tenant settings.
// Lookups that find nothing return (nil, nil).
type TenantGateway interface {
	// GetTenantByPublicID finds a tenant by the identifier embedded in storefront requests
	GetTenantByPublicID(ctx context.Context, publicID string) (*domain.Tenant, error)

	// GetForwardingConfig returns the forwarding and privacy settings of a tenant
	GetForwardingConfig(ctx context.Context, appID string) (*domain.ForwardingConfig, error)

	// FindActiveCustomEvent finds an active custom event whose name matches exactly
	FindActiveCustomEvent(ctx context.Context, appID, name string) (*domain.CustomEvent, error)

	// ListTenantsByShop returns every tenant installed on a shop domain
	ListTenantsByShop(ctx context.Context, shopDomain string) ([]*domain.Tenant, error)
}

// EventStore persists tracked events and their aggregates
type EventStore interface {
	// Ping checks if the database connection is alive
	Ping(ctx context.Context) error

	// InsertEvent appends a tracked event
	InsertEvent(ctx context.Context, event *domain.TrackedEvent) error

	// UpsertSession creates the session or touches it atomically, adding
	// pageviews to its counter. It reports whether a new row was created.
	UpsertSession(ctx context.Context, session *domain.AnalyticsSession) (bool, error)

	// IncrementDailyStats atomically adds delta to the (appID, day) row
	IncrementDailyStats(ctx context.Context, appID string, day time.Time, delta domain.StatsDelta) error
}

// MetricsQuery represents a metrics query parameters
type MetricsQuery struct {
	AppID     string
	EventName string
	From      int64
	To        int64
	GroupBy   string
}

// MetricsGroupResult represents aggregated metrics for a specific group
type MetricsGroupResult struct {
	GroupValue string
	TotalCount uint64
}

// MetricsResult represents the result of a metrics query
type MetricsResult struct {
	TotalCount  uint64
	UniqueCount uint64
	Revenue     float64
	Groups      []MetricsGroupResult
}

// ArchiveRepository defines the interface for the analytics archive
type ArchiveRepository interface {
	// InsertBatch inserts a batch of events into the archive
	InsertBatch(ctx context.Context, events []*domain.ArchivedEvent) (int, error)

	// InitSchema initializes the database schema (creates tables if they don't exist)
	InitSchema(ctx context.Context) error

	// Ping checks if the database connection is alive
	Ping(ctx context.Context) error

	// Close closes the repository and releases resources
	Close() error

	// GetMetrics retrieves aggregated metrics based on the query
	GetMetrics(ctx context.Context, query MetricsQuery) (*MetricsResult, error)
}

package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/BarkinBalci/capi-relay-service/internal/capi"
	"github.com/BarkinBalci/capi-relay-service/internal/domain"
	"github.com/BarkinBalci/capi-relay-service/internal/geo"
	"github.com/BarkinBalci/capi-relay-service/internal/repository"
)

// MockTenantGateway is a mock implementation of repository.TenantGateway
type MockTenantGateway struct {
	mock.Mock
}

func (m *MockTenantGateway) GetTenantByPublicID(ctx context.Context, publicID string) (*domain.Tenant, error) {
	args := m.Called(ctx, publicID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Tenant), args.Error(1)
}

func (m *MockTenantGateway) GetForwardingConfig(ctx context.Context, appID string) (*domain.ForwardingConfig, error) {
	args := m.Called(ctx, appID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ForwardingConfig), args.Error(1)
}

func (m *MockTenantGateway) FindActiveCustomEvent(ctx context.Context, appID, name string) (*domain.CustomEvent, error) {
	args := m.Called(ctx, appID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CustomEvent), args.Error(1)
}

func (m *MockTenantGateway) ListTenantsByShop(ctx context.Context, shopDomain string) ([]*domain.Tenant, error) {
	args := m.Called(ctx, shopDomain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Tenant), args.Error(1)
}

// MockForwarder is a mock implementation of capi.Forwarder
type MockForwarder struct {
	mock.Mock
}

func (m *MockForwarder) Forward(ctx context.Context, target capi.Target, event capi.Event) error {
	args := m.Called(ctx, target, event)
	return args.Error(0)
}

// MockExporter is a mock implementation of queue.EventExporter
type MockExporter struct {
	mock.Mock
}

func (m *MockExporter) ExportEvent(ctx context.Context, event *domain.TrackedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockArchiveRepository is a mock implementation of repository.ArchiveRepository
type MockArchiveRepository struct {
	mock.Mock
}

func (m *MockArchiveRepository) InsertBatch(ctx context.Context, events []*domain.ArchivedEvent) (int, error) {
	args := m.Called(ctx, events)
	return args.Int(0), args.Error(1)
}

func (m *MockArchiveRepository) InitSchema(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockArchiveRepository) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockArchiveRepository) Close() error {
	return m.Called().Error(0)
}

func (m *MockArchiveRepository) GetMetrics(ctx context.Context, query repository.MetricsQuery) (*repository.MetricsResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.MetricsResult), args.Error(1)
}

// geoFunc adapts a function to geo.Resolver
type geoFunc func(ctx context.Context, ip string) *geo.Location

func (f geoFunc) Resolve(ctx context.Context, ip string) *geo.Location {
	return f(ctx, ip)
}

// memoryStore is an in-memory repository.EventStore with atomic upserts
type memoryStore struct {
	mu sync.Mutex

	pingErr    error
	insertErr  error
	sessionErr error
	statsErr   error

	events   []*domain.TrackedEvent
	sessions map[string]*domain.AnalyticsSession
	stats    map[string]*domain.DailyStats
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		sessions: make(map[string]*domain.AnalyticsSession),
		stats:    make(map[string]*domain.DailyStats),
	}
}

func (s *memoryStore) Ping(ctx context.Context) error {
	return s.pingErr
}

func (s *memoryStore) InsertEvent(ctx context.Context, event *domain.TrackedEvent) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *event
	s.events = append(s.events, &copied)
	return nil
}

func (s *memoryStore) UpsertSession(ctx context.Context, session *domain.AnalyticsSession) (bool, error) {
	if s.sessionErr != nil {
		return false, s.sessionErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := session.AppID + "|" + session.SessionID
	if existing, ok := s.sessions[key]; ok {
		existing.Pageviews += session.Pageviews
		if session.LastSeen.After(existing.LastSeen) {
			existing.LastSeen = session.LastSeen
		}
		return false, nil
	}
	copied := *session
	s.sessions[key] = &copied
	return true, nil
}

func (s *memoryStore) IncrementDailyStats(ctx context.Context, appID string, day time.Time, delta domain.StatsDelta) error {
	if s.statsErr != nil {
		return s.statsErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	date := day.UTC().Truncate(24 * time.Hour)
	key := fmt.Sprintf("%s|%s", appID, date.Format(time.DateOnly))
	row, ok := s.stats[key]
	if !ok {
		row = &domain.DailyStats{AppID: appID, Date: date}
		s.stats[key] = row
	}
	row.Pageviews += delta.Pageviews
	row.Sessions += delta.Sessions
	row.Purchases += delta.Purchases
	row.Revenue += delta.Revenue
	return nil
}

func (s *memoryStore) eventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *memoryStore) session(appID, sessionID string) *domain.AnalyticsSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[appID+"|"+sessionID]
}

func (s *memoryStore) dailyStats(appID string, day time.Time) *domain.DailyStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats[fmt.Sprintf("%s|%s", appID, day.UTC().Format(time.DateOnly))]
}

package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BarkinBalci/capi-relay-service/internal/capi"
	"github.com/BarkinBalci/capi-relay-service/internal/domain"
	"github.com/BarkinBalci/capi-relay-service/internal/dto"
	"github.com/BarkinBalci/capi-relay-service/internal/geo"
)

const (
	testTenantID = "7f1c2a52-90c4-4a3e-b8a4-2f4b0f3d9e10"
	testPublicID = "pixel_1"
	testShop     = "demo.myshopify.com"
	testIP       = "203.0.113.10"
	testUA       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var testNow = time.Date(2025, 12, 25, 22, 42, 32, 0, time.UTC)

func testTenant() *domain.Tenant {
	return &domain.Tenant{ID: testTenantID, PublicID: testPublicID, ShopDomain: testShop, Name: "Demo"}
}

func forwardingEnabled() *domain.ForwardingConfig {
	cfg := domain.DefaultForwardingConfig()
	cfg.Enabled = true
	cfg.Verified = true
	cfg.PixelID = "1234567890"
	cfg.AccessToken = "EAAB-token"
	return &cfg
}

type fixture struct {
	service   *IngestService
	gateway   *MockTenantGateway
	store     *memoryStore
	forwarder *MockForwarder
}

// newFixture wires a service for a known tenant whose settings are cfg (nil means none stored)
func newFixture(t *testing.T, cfg *domain.ForwardingConfig) *fixture {
	t.Helper()

	gateway := new(MockTenantGateway)
	gateway.On("GetTenantByPublicID", mock.Anything, testPublicID).Return(testTenant(), nil).Maybe()
	gateway.On("GetTenantByPublicID", mock.Anything, mock.Anything).Return(nil, nil).Maybe()
	if cfg == nil {
		gateway.On("GetForwardingConfig", mock.Anything, testTenantID).Return(nil, nil).Maybe()
	} else {
		gateway.On("GetForwardingConfig", mock.Anything, testTenantID).Return(cfg, nil).Maybe()
	}
	gateway.On("FindActiveCustomEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil).Maybe()

	store := newMemoryStore()
	forwarder := new(MockForwarder)

	svc := NewIngestService(Dependencies{
		Tenants:   gateway,
		Store:     store,
		Forwarder: forwarder,
	}, zap.NewNop())
	svc.now = func() time.Time { return testNow }

	return &fixture{service: svc, gateway: gateway, store: store, forwarder: forwarder}
}

func meta() dto.RequestMeta {
	return dto.RequestMeta{IP: testIP, UserAgent: testUA}
}

func floatPtr(v float64) *float64 { return &v }

func TestIngestService_Track_MissingAppID(t *testing.T) {
	f := newFixture(t, nil)
	f.store.pingErr = errors.New("must not be probed")

	eventID, err := f.service.Track(context.Background(), &dto.TrackRequest{EventName: "pageview"}, meta())

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "appId", validationErr.Field)
	assert.Empty(t, eventID)
	assert.Zero(t, f.store.eventCount())
}

func TestIngestService_Track_MissingEventName(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.service.Track(context.Background(), &dto.TrackRequest{AppID: testPublicID, EventName: "  "}, meta())

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "eventName", validationErr.Field)
	assert.Zero(t, f.store.eventCount())
}

func TestIngestService_Track_UnknownTenant(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.service.Track(context.Background(), &dto.TrackRequest{AppID: "pixel_404", EventName: "pageview"}, meta())

	assert.ErrorIs(t, err, ErrTenantNotFound)
	assert.Zero(t, f.store.eventCount())
	f.gateway.AssertNotCalled(t, "GetForwardingConfig", mock.Anything, mock.Anything)
}

func TestIngestService_Track_StoreUnavailable(t *testing.T) {
	f := newFixture(t, nil)
	f.store.pingErr = errors.New("dial tcp: connection refused")

	_, err := f.service.Track(context.Background(), &dto.TrackRequest{AppID: testPublicID, EventName: "pageview"}, meta())

	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NotErrorIs(t, err, ErrTenantNotFound)
	f.gateway.AssertNotCalled(t, "GetTenantByPublicID", mock.Anything, mock.Anything)
}

func TestIngestService_Track_TenantLookupError(t *testing.T) {
	gateway := new(MockTenantGateway)
	gateway.On("GetTenantByPublicID", mock.Anything, testPublicID).Return(nil, errors.New("query timeout"))
	store := newMemoryStore()

	svc := NewIngestService(Dependencies{Tenants: gateway, Store: store}, zap.NewNop())

	_, err := svc.Track(context.Background(), &dto.TrackRequest{AppID: testPublicID, EventName: "pageview"}, meta())

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTenantNotFound)
	assert.Zero(t, store.eventCount())
}

func TestIngestService_Track_SettingsLookupError(t *testing.T) {
	gateway := new(MockTenantGateway)
	gateway.On("GetTenantByPublicID", mock.Anything, testPublicID).Return(testTenant(), nil)
	gateway.On("GetForwardingConfig", mock.Anything, testTenantID).Return(nil, errors.New("connection reset"))
	store := newMemoryStore()

	svc := NewIngestService(Dependencies{Tenants: gateway, Store: store}, zap.NewNop())

	_, err := svc.Track(context.Background(), &dto.TrackRequest{AppID: testPublicID, EventName: "pageview"}, meta())

	require.Error(t, err)
	assert.Zero(t, store.eventCount())
}

func TestIngestService_Track_FreshSessionAndRepeatVisit(t *testing.T) {
	f := newFixture(t, nil)
	req := &dto.TrackRequest{AppID: testPublicID, EventName: "pageview", SessionID: "s1"}

	eventID, err := f.service.Track(context.Background(), req, meta())
	require.NoError(t, err)
	assert.NotEmpty(t, eventID)

	require.Equal(t, 1, f.store.eventCount())
	event := f.store.events[0]
	assert.Equal(t, eventID, event.ID)
	assert.Equal(t, "pageview", event.EventName)
	assert.Equal(t, testTenantID, event.AppID)
	assert.Equal(t, testIP, event.IPAddress)
	assert.Equal(t, "desktop", event.DeviceType)

	session := f.store.session(testTenantID, "s1")
	require.NotNil(t, session)
	assert.Equal(t, 1, session.Pageviews)

	stats := f.store.dailyStats(testTenantID, testNow)
	require.NotNil(t, stats)
	assert.Equal(t, int64(1), stats.Pageviews)
	assert.Equal(t, int64(1), stats.Sessions)

	_, err = f.service.Track(context.Background(), req, meta())
	require.NoError(t, err)

	assert.Equal(t, 2, f.store.eventCount())
	assert.Equal(t, 2, f.store.session(testTenantID, "s1").Pageviews)
	stats = f.store.dailyStats(testTenantID, testNow)
	assert.Equal(t, int64(2), stats.Pageviews)
	assert.Equal(t, int64(1), stats.Sessions)
}

func TestIngestService_Track_NonPageviewTouchesSessionOnly(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.service.Track(ctx, &dto.TrackRequest{AppID: testPublicID, EventName: "page_view", SessionID: "s1"}, meta())
	require.NoError(t, err)
	_, err = f.service.Track(ctx, &dto.TrackRequest{AppID: testPublicID, EventName: "add_to_cart", SessionID: "s1"}, meta())
	require.NoError(t, err)

	assert.Equal(t, 1, f.store.session(testTenantID, "s1").Pageviews)
	assert.Equal(t, int64(1), f.store.dailyStats(testTenantID, testNow).Pageviews)
}

func TestIngestService_Track_PurchaseRollup(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.service.Track(context.Background(), &dto.TrackRequest{
		AppID: testPublicID, EventName: "purchase", Value: floatPtr(49.5), Currency: "EUR",
	}, meta())
	require.NoError(t, err)

	stats := f.store.dailyStats(testTenantID, testNow)
	require.NotNil(t, stats)
	assert.Equal(t, int64(1), stats.Purchases)
	assert.InDelta(t, 49.5, stats.Revenue, 0.0001)
	assert.Zero(t, stats.Pageviews)
}

func TestIngestService_Track_SessionRecordingDisabled(t *testing.T) {
	cfg := domain.DefaultForwardingConfig()
	cfg.RecordSession = false
	f := newFixture(t, &cfg)

	_, err := f.service.Track(context.Background(), &dto.TrackRequest{AppID: testPublicID, EventName: "pageview", SessionID: "s1"}, meta())
	require.NoError(t, err)

	assert.Nil(t, f.store.session(testTenantID, "s1"))
	stats := f.store.dailyStats(testTenantID, testNow)
	assert.Equal(t, int64(1), stats.Pageviews)
	assert.Zero(t, stats.Sessions)
}

func TestIngestService_Track_SessionAndStatsFailuresAreNotFatal(t *testing.T) {
	f := newFixture(t, nil)
	f.store.sessionErr = errors.New("deadlock detected")
	f.store.statsErr = errors.New("deadlock detected")

	eventID, err := f.service.Track(context.Background(), &dto.TrackRequest{AppID: testPublicID, EventName: "pageview", SessionID: "s1"}, meta())

	require.NoError(t, err)
	assert.NotEmpty(t, eventID)
	assert.Equal(t, 1, f.store.eventCount())
}

func TestIngestService_Track_InsertFailure(t *testing.T) {
	f := newFixture(t, forwardingEnabled())
	f.store.insertErr = errors.New("disk full")

	_, err := f.service.Track(context.Background(), &dto.TrackRequest{AppID: testPublicID, EventName: "pageview", SessionID: "s1"}, meta())

	require.Error(t, err)
	assert.Nil(t, f.store.session(testTenantID, "s1"))
	assert.Nil(t, f.store.dailyStats(testTenantID, testNow))
	f.forwarder.AssertNotCalled(t, "Forward", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestService_Track_IPNotRecorded(t *testing.T) {
	cfg := domain.DefaultForwardingConfig()
	cfg.RecordIP = false
	f := newFixture(t, &cfg)

	var geoIP string
	f.service.geo = geoFunc(func(_ context.Context, ip string) *geo.Location {
		geoIP = ip
		return &geo.Location{City: "Berlin", Country: "Germany", CountryCode: "DE", Timezone: "Europe/Berlin"}
	})

	_, err := f.service.Track(context.Background(), &dto.TrackRequest{AppID: testPublicID, EventName: "pageview"}, meta())
	require.NoError(t, err)

	event := f.store.events[0]
	assert.Equal(t, testIP, geoIP)
	assert.Empty(t, event.IPAddress)
	assert.Equal(t, "Berlin", event.City)
	assert.Equal(t, "DE", event.CountryCode)
}

func TestIngestService_Track_LocationNotRecorded(t *testing.T) {
	cfg := domain.DefaultForwardingConfig()
	cfg.RecordLocation = false
	f := newFixture(t, &cfg)

	called := false
	f.service.geo = geoFunc(func(context.Context, string) *geo.Location {
		called = true
		return &geo.Location{City: "Berlin"}
	})

	_, err := f.service.Track(context.Background(), &dto.TrackRequest{AppID: testPublicID, EventName: "pageview"}, meta())
	require.NoError(t, err)

	assert.False(t, called)
	assert.Empty(t, f.store.events[0].City)
	assert.Equal(t, testIP, f.store.events[0].IPAddress)
}

func TestIngestService_Track_ForwardsStandardizedEvent(t *testing.T) {
	f := newFixture(t, forwardingEnabled())
	f.forwarder.On("Forward", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	eventID, err := f.service.Track(context.Background(), &dto.TrackRequest{
		AppID:      testPublicID,
		EventName:  "AddToCart",
		Value:      floatPtr(10),
		Currency:   "USD",
		ProductID:  "sku-1",
		VisitorID:  "visitor-9",
		Email:      "Buyer@Example.com",
		CustomData: map[string]any{"fbp": "fb.1.1.1", "color": "red"},
	}, meta())
	require.NoError(t, err)

	f.forwarder.AssertExpectations(t)
	target := f.forwarder.Calls[0].Arguments.Get(1).(capi.Target)
	event := f.forwarder.Calls[0].Arguments.Get(2).(capi.Event)

	assert.Equal(t, "1234567890", target.PixelID)
	assert.Equal(t, "EAAB-token", target.AccessToken)
	assert.Equal(t, "AddToCart", event.Name)
	assert.Equal(t, eventID, event.ID)
	assert.Equal(t, testNow.Unix(), event.Time)
	require.NotNil(t, event.CustomData.Value)
	assert.Equal(t, 10.0, *event.CustomData.Value)
	assert.Equal(t, "USD", event.CustomData.Currency)
	assert.Equal(t, []string{"sku-1"}, event.CustomData.ContentIDs)
	assert.Equal(t, "red", event.CustomData.Extra["color"])
	assert.NotContains(t, event.CustomData.Extra, "fbp")
	assert.Equal(t, "fb.1.1.1", event.UserData.FBP)
	assert.Equal(t, "visitor-9", event.UserData.ExternalID)
	assert.Equal(t, "Buyer@Example.com", event.UserData.Email)
	assert.Equal(t, testIP, event.UserData.ClientIP)
}

func TestIngestService_Track_CustomEventOverridesDefaultTable(t *testing.T) {
	f := newFixture(t, forwardingEnabled())
	f.gateway.ExpectedCalls = nil
	f.gateway.On("GetTenantByPublicID", mock.Anything, testPublicID).Return(testTenant(), nil)
	f.gateway.On("GetForwardingConfig", mock.Anything, testTenantID).Return(forwardingEnabled(), nil)
	f.gateway.On("FindActiveCustomEvent", mock.Anything, testTenantID, "checkout").Return(&domain.CustomEvent{
		AppID:         testTenantID,
		Name:          "checkout",
		StandardEvent: "Lead",
		TemplateData:  map[string]any{"content_category": "quote", "color": "blue"},
		Active:        true,
	}, nil)
	f.forwarder.On("Forward", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := f.service.Track(context.Background(), &dto.TrackRequest{
		AppID:      testPublicID,
		EventName:  "checkout",
		CustomData: map[string]any{"color": "red"},
	}, meta())
	require.NoError(t, err)

	event := f.forwarder.Calls[0].Arguments.Get(2).(capi.Event)
	assert.Equal(t, "Lead", event.Name)
	assert.Equal(t, "quote", event.CustomData.Extra["content_category"])
	assert.Equal(t, "red", event.CustomData.Extra["color"])
}

func TestIngestService_Track_CustomDataIdentifiersTravelHashed(t *testing.T) {
	f := newFixture(t, forwardingEnabled())
	f.forwarder.On("Forward", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	_, err := f.service.Track(context.Background(), &dto.TrackRequest{
		AppID:     testPublicID,
		EventName: "lead",
		CustomData: map[string]any{
			"email":      "Jane@Example.com",
			"phone":      "+15551234567",
			"first_name": "Jane",
			"plan":       "pro",
		},
	}, meta())
	require.NoError(t, err)

	event := f.forwarder.Calls[0].Arguments.Get(2).(capi.Event)
	assert.Equal(t, "Jane@Example.com", event.UserData.Email)
	assert.Equal(t, "+15551234567", event.UserData.Phone)
	assert.Equal(t, map[string]any{"plan": "pro"}, event.CustomData.Extra)

	// the stored event keeps what the client sent
	assert.Equal(t, "Jane@Example.com", f.store.events[0].CustomData["email"])
}

func TestIngestService_Track_EmailFieldWinsOverCustomData(t *testing.T) {
	f := newFixture(t, forwardingEnabled())
	f.forwarder.On("Forward", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	_, err := f.service.Track(context.Background(), &dto.TrackRequest{
		AppID:      testPublicID,
		EventName:  "lead",
		Email:      "buyer@example.com",
		CustomData: map[string]any{"em": "other@example.com"},
	}, meta())
	require.NoError(t, err)

	event := f.forwarder.Calls[0].Arguments.Get(2).(capi.Event)
	assert.Equal(t, "buyer@example.com", event.UserData.Email)
	assert.NotContains(t, event.CustomData.Extra, "em")
}

func TestIngestService_Track_CustomEventPurchaseCountsRevenue(t *testing.T) {
	f := newFixture(t, nil)
	f.gateway.ExpectedCalls = nil
	f.gateway.On("GetTenantByPublicID", mock.Anything, testPublicID).Return(testTenant(), nil)
	f.gateway.On("GetForwardingConfig", mock.Anything, testTenantID).Return(nil, nil)
	f.gateway.On("FindActiveCustomEvent", mock.Anything, testTenantID, "order_placed").Return(&domain.CustomEvent{
		AppID:         testTenantID,
		Name:          "order_placed",
		StandardEvent: "Purchase",
		Active:        true,
	}, nil)

	_, err := f.service.Track(context.Background(), &dto.TrackRequest{
		AppID: testPublicID, EventName: "order_placed", Value: floatPtr(80), Currency: "USD",
	}, meta())
	require.NoError(t, err)

	stats := f.store.dailyStats(testTenantID, testNow)
	require.NotNil(t, stats)
	assert.Equal(t, int64(1), stats.Purchases)
	assert.InDelta(t, 80.0, stats.Revenue, 0.0001)
	assert.Equal(t, "order_placed", f.store.events[0].EventName)
}

func TestIngestService_Track_CleansTextBeforeStoring(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.service.Track(context.Background(), &dto.TrackRequest{
		AppID:      testPublicID,
		EventName:  "page\x00view",
		PageTitle:  "Sale \xff\xfe",
		SessionID:  "s\x001",
		CustomData: map[string]any{"no\x00te": "a\x00b", "tags": []any{"x\x00y"}, "nested": map[string]any{"k": "\xffv"}},
	}, dto.RequestMeta{IP: testIP, UserAgent: "Mozilla/5.0 \xc3\x28"})
	require.NoError(t, err)

	event := f.store.events[0]
	assert.Equal(t, "pageview", event.EventName)
	assert.Equal(t, "Sale ", event.PageTitle)
	assert.Equal(t, "s1", event.SessionID)
	assert.Equal(t, "Mozilla/5.0 (", event.UserAgent)
	assert.Equal(t, map[string]any{
		"note":   "ab",
		"tags":   []any{"xy"},
		"nested": map[string]any{"k": "v"},
	}, event.CustomData)
	assert.Equal(t, int64(1), f.store.dailyStats(testTenantID, testNow).Pageviews)
}

func TestIngestService_Track_NulOnlyEventNameIsMissing(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.service.Track(context.Background(), &dto.TrackRequest{AppID: testPublicID, EventName: "\x00"}, meta())

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "eventName", validationErr.Field)
}

func TestIngestService_Track_RejectsOutOfRangeNumbers(t *testing.T) {
	tooBig := math.MaxInt32 + 1
	negative := -1

	tests := []struct {
		name  string
		req   dto.TrackRequest
		field string
	}{
		{"value overflows", dto.TrackRequest{Value: floatPtr(1e13)}, "value"},
		{"negative value overflows", dto.TrackRequest{Value: floatPtr(-1e12)}, "value"},
		{"quantity overflows", dto.TrackRequest{Quantity: &tooBig}, "quantity"},
		{"negative quantity", dto.TrackRequest{Quantity: &negative}, "quantity"},
		{"screen width overflows", dto.TrackRequest{ScreenWidth: &tooBig}, "screenWidth"},
		{"screen height overflows", dto.TrackRequest{ScreenHeight: &tooBig}, "screenHeight"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			req := tt.req
			req.AppID = testPublicID
			req.EventName = "purchase"

			_, err := f.service.Track(context.Background(), &req, meta())

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
			assert.Zero(t, f.store.eventCount())
		})
	}
}

func TestIngestService_Track_AcceptsLargestStorableValue(t *testing.T) {
	f := newFixture(t, nil)
	width := 3840

	_, err := f.service.Track(context.Background(), &dto.TrackRequest{
		AppID: testPublicID, EventName: "purchase", Value: floatPtr(999999999999.99), ScreenWidth: &width,
	}, meta())

	require.NoError(t, err)
	assert.Equal(t, 1, f.store.eventCount())
}

func TestIngestService_Track_TestEventWithoutCodeNotForwarded(t *testing.T) {
	f := newFixture(t, forwardingEnabled())

	_, err := f.service.Track(context.Background(), &dto.TrackRequest{AppID: testPublicID, EventName: "Purchase", Test: true}, meta())

	require.NoError(t, err)
	f.forwarder.AssertNotCalled(t, "Forward", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestService_Track_TestEventWithCodeForwarded(t *testing.T) {
	cfg := forwardingEnabled()
	cfg.TestEventCode = "TEST12345"
	f := newFixture(t, cfg)
	f.forwarder.On("Forward", mock.Anything, mock.MatchedBy(func(target capi.Target) bool {
		return target.TestEventCode == "TEST12345"
	}), mock.Anything).Return(nil).Once()

	_, err := f.service.Track(context.Background(), &dto.TrackRequest{AppID: testPublicID, EventName: "Purchase", Test: true}, meta())

	require.NoError(t, err)
	f.forwarder.AssertExpectations(t)
}

func TestIngestService_Track_ForwarderFailureIsIsolated(t *testing.T) {
	f := newFixture(t, forwardingEnabled())
	f.forwarder.On("Forward", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("graph api: 500"))

	eventID, err := f.service.Track(context.Background(), &dto.TrackRequest{AppID: testPublicID, EventName: "pageview", SessionID: "s1"}, meta())

	require.NoError(t, err)
	require.Equal(t, 1, f.store.eventCount())
	assert.Equal(t, eventID, f.store.events[0].ID)
	assert.Equal(t, int64(1), f.store.dailyStats(testTenantID, testNow).Pageviews)
	f.forwarder.AssertNumberOfCalls(t, "Forward", 1)
}

func TestIngestService_Track_ExportIsBestEffort(t *testing.T) {
	f := newFixture(t, nil)
	exporter := new(MockExporter)
	exporter.On("ExportEvent", mock.Anything, mock.AnythingOfType("*domain.TrackedEvent")).Return(errors.New("queue unavailable"))
	f.service.exporter = exporter

	eventID, err := f.service.Track(context.Background(), &dto.TrackRequest{AppID: testPublicID, EventName: "pageview"}, meta())

	require.NoError(t, err)
	assert.NotEmpty(t, eventID)
	exporter.AssertExpectations(t)
}

func TestIngestService_Track_ConcurrentPageviews(t *testing.T) {
	f := newFixture(t, nil)
	const n = 50

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Track(context.Background(), &dto.TrackRequest{AppID: testPublicID, EventName: "pageview"}, meta())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, n, f.store.eventCount())
	assert.Equal(t, int64(n), f.store.dailyStats(testTenantID, testNow).Pageviews)
}

func TestForwardSkipReason(t *testing.T) {
	enabled := *forwardingEnabled()
	withCode := enabled
	withCode.TestEventCode = "TEST1"

	tests := []struct {
		name   string
		mutate func(*domain.ForwardingConfig)
		test   bool
		want   string
	}{
		{"eligible", func(*domain.ForwardingConfig) {}, false, ""},
		{"disabled", func(c *domain.ForwardingConfig) { c.Enabled = false }, false, skipDisabled},
		{"not verified", func(c *domain.ForwardingConfig) { c.Verified = false }, false, skipNotVerified},
		{"no token", func(c *domain.ForwardingConfig) { c.AccessToken = "" }, false, skipNoToken},
		{"no pixel", func(c *domain.ForwardingConfig) { c.PixelID = "" }, false, skipNoPixel},
		{"test without code", func(*domain.ForwardingConfig) {}, true, skipTestEventCode},
		{"test with code", func(c *domain.ForwardingConfig) { c.TestEventCode = "TEST1" }, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := enabled
			tt.mutate(&cfg)
			assert.Equal(t, tt.want, forwardSkipReason(cfg, tt.test))
		})
	}
	assert.Equal(t, "", forwardSkipReason(withCode, false))
}

func TestIngestService_TrackShopEvent(t *testing.T) {
	second := &domain.Tenant{ID: "b2", PublicID: "pixel_2", ShopDomain: testShop}

	f := newFixture(t, nil)
	f.gateway.On("ListTenantsByShop", mock.Anything, testShop).Return([]*domain.Tenant{testTenant(), second}, nil)
	f.gateway.On("GetForwardingConfig", mock.Anything, "b2").Return(nil, nil)

	recorded, err := f.service.TrackShopEvent(context.Background(), testShop, &dto.TrackRequest{
		EventName: "purchase",
		Value:     floatPtr(20),
		Currency:  "USD",
	}, dto.RequestMeta{})

	require.NoError(t, err)
	assert.Equal(t, 2, recorded)
	assert.Equal(t, 2, f.store.eventCount())
	assert.Equal(t, int64(1), f.store.dailyStats("b2", testNow).Purchases)
	assert.Equal(t, int64(1), f.store.dailyStats(testTenantID, testNow).Purchases)
}

func TestIngestService_TrackShopEvent_NoTenant(t *testing.T) {
	f := newFixture(t, nil)
	f.gateway.On("ListTenantsByShop", mock.Anything, "other.myshopify.com").Return([]*domain.Tenant{}, nil)

	recorded, err := f.service.TrackShopEvent(context.Background(), "other.myshopify.com", &dto.TrackRequest{EventName: "purchase"}, dto.RequestMeta{})

	require.NoError(t, err)
	assert.Zero(t, recorded)
	assert.Zero(t, f.store.eventCount())
}

func TestIngestService_TrackShopEvent_InsertFailureCounted(t *testing.T) {
	f := newFixture(t, nil)
	f.gateway.On("ListTenantsByShop", mock.Anything, testShop).Return([]*domain.Tenant{testTenant()}, nil)
	f.store.insertErr = errors.New("disk full")

	recorded, err := f.service.TrackShopEvent(context.Background(), testShop, &dto.TrackRequest{EventName: "purchase"}, dto.RequestMeta{})

	require.NoError(t, err)
	assert.Zero(t, recorded)
}

func TestIngestService_TrackShopEvent_MissingShop(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.service.TrackShopEvent(context.Background(), "", &dto.TrackRequest{EventName: "purchase"}, dto.RequestMeta{})

	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestIngestService_TrackShopEvent_OutOfRangeValue(t *testing.T) {
	f := newFixture(t, nil)

	recorded, err := f.service.TrackShopEvent(context.Background(), testShop, &dto.TrackRequest{
		EventName: "purchase",
		Value:     floatPtr(5e12),
	}, dto.RequestMeta{})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "value", validationErr.Field)
	assert.Zero(t, recorded)
	f.gateway.AssertNotCalled(t, "ListTenantsByShop", mock.Anything, mock.Anything)
}

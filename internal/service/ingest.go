package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BarkinBalci/capi-relay-service/internal/capi"
	"github.com/BarkinBalci/capi-relay-service/internal/domain"
	"github.com/BarkinBalci/capi-relay-service/internal/dto"
	"github.com/BarkinBalci/capi-relay-service/internal/geo"
	"github.com/BarkinBalci/capi-relay-service/internal/queue"
	"github.com/BarkinBalci/capi-relay-service/internal/repository"
	"github.com/BarkinBalci/capi-relay-service/internal/taxonomy"
	"github.com/BarkinBalci/capi-relay-service/internal/useragent"
)

const defaultProbeTimeout = 3 * time.Second

// Forwarding skip reasons
const (
	skipDisabled      = "forwarding_disabled"
	skipNotVerified   = "not_verified"
	skipNoToken       = "missing_access_token"
	skipNoPixel       = "missing_pixel_id"
	skipTestEventCode = "test_event_without_test_code"
)

// Dependencies groups the collaborators of IngestService. Exporter and
// Archive are optional.
type Dependencies struct {
	Tenants   repository.TenantGateway
	Store     repository.EventStore
	Geo       geo.Resolver
	Forwarder capi.Forwarder
	Exporter  queue.EventExporter
	Archive   repository.ArchiveRepository

	ProbeTimeout time.Duration
}

// IngestService runs the ingestion pipeline shared by every transport
type IngestService struct {
	tenants   repository.TenantGateway
	store     repository.EventStore
	geo       geo.Resolver
	mapper    *taxonomy.Mapper
	forwarder capi.Forwarder
	exporter  queue.EventExporter
	archive   repository.ArchiveRepository

	probeTimeout time.Duration
	now          func() time.Time
	newID        func() string
	log          *zap.Logger
}

// NewIngestService creates a new ingestion service
func NewIngestService(deps Dependencies, log *zap.Logger) *IngestService {
	resolver := deps.Geo
	if resolver == nil {
		resolver = geo.Noop{}
	}
	probeTimeout := deps.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}

	return &IngestService{
		tenants:      deps.Tenants,
		store:        deps.Store,
		geo:          resolver,
		mapper:       taxonomy.NewMapper(deps.Tenants, log),
		forwarder:    deps.Forwarder,
		exporter:     deps.Exporter,
		archive:      deps.Archive,
		probeTimeout: probeTimeout,
		now:          time.Now,
		newID:        func() string { return uuid.NewString() },
		log:          log,
	}
}

// Track validates the request, resolves its tenant and records the event
func (s *IngestService) Track(ctx context.Context, req *dto.TrackRequest, meta dto.RequestMeta) (string, error) {
	if req != nil {
		req = cleanRequest(req)
	}
	if err := validateTrackRequest(req); err != nil {
		return "", err
	}
	meta = cleanMeta(meta)

	if err := s.CheckHealth(ctx); err != nil {
		return "", err
	}

	tenant, err := s.tenants.GetTenantByPublicID(ctx, req.AppID)
	if err != nil {
		return "", fmt.Errorf("failed to look up tenant: %w", err)
	}
	if tenant == nil {
		s.log.Info("Unknown tenant", zap.String("app_id", req.AppID))
		return "", ErrTenantNotFound
	}

	return s.record(ctx, tenant, req, meta)
}

// TrackShopEvent records req once for every tenant installed on shopDomain.
// Per-tenant failures are logged and do not fail the call.
func (s *IngestService) TrackShopEvent(ctx context.Context, shopDomain string, req *dto.TrackRequest, meta dto.RequestMeta) (int, error) {
	if strings.TrimSpace(shopDomain) == "" {
		return 0, required("shop domain")
	}
	req = cleanRequest(req)
	if strings.TrimSpace(req.EventName) == "" {
		return 0, required("eventName")
	}
	if err := validateRanges(req); err != nil {
		return 0, err
	}
	meta = cleanMeta(meta)

	tenants, err := s.tenants.ListTenantsByShop(ctx, shopDomain)
	if err != nil {
		return 0, fmt.Errorf("failed to list tenants for shop: %w", err)
	}
	if len(tenants) == 0 {
		s.log.Info("No tenant installed for shop",
			zap.String("shop", shopDomain),
			zap.String("event_name", req.EventName))
		return 0, nil
	}

	recorded := 0
	for _, tenant := range tenants {
		tenantReq := *req
		tenantReq.AppID = tenant.PublicID
		if _, err := s.record(ctx, tenant, &tenantReq, meta); err != nil {
			s.log.Error("Failed to record shop event",
				zap.String("shop", shopDomain),
				zap.String("app_id", tenant.PublicID),
				zap.String("event_name", req.EventName),
				zap.Error(err))
			continue
		}
		recorded++
	}

	return recorded, nil
}

// CheckHealth pings the event store within the probe timeout
func (s *IngestService) CheckHealth(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	if err := s.store.Ping(probeCtx); err != nil {
		s.log.Warn("Event store probe failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// record runs enrich, persist, stitch, rollup, forward and export for a resolved tenant.
// Only the insert of the raw event can fail the call. req and meta are already cleaned.
func (s *IngestService) record(ctx context.Context, tenant *domain.Tenant, req *dto.TrackRequest, meta dto.RequestMeta) (string, error) {
	settings, err := s.forwardingConfig(ctx, tenant)
	if err != nil {
		return "", err
	}

	event := s.enrich(ctx, tenant, settings, req, meta)

	if err := s.store.InsertEvent(ctx, event); err != nil {
		return "", fmt.Errorf("failed to persist event: %w", err)
	}

	// tenant custom events count towards stats under their standard name
	resolution := s.mapper.Resolve(ctx, tenant.ID, event.EventName, event.CustomData)
	newSession := s.stitchSession(ctx, settings, event, resolution.StandardName)
	s.rollup(ctx, event, resolution.StandardName, newSession)
	s.forward(ctx, tenant, settings, req, event, resolution)
	s.export(ctx, event)

	s.log.Info("Event tracked",
		zap.String("event_id", event.ID),
		zap.String("app_id", tenant.PublicID),
		zap.String("event_name", event.EventName))

	return event.ID, nil
}

func (s *IngestService) forwardingConfig(ctx context.Context, tenant *domain.Tenant) (domain.ForwardingConfig, error) {
	settings, err := s.tenants.GetForwardingConfig(ctx, tenant.ID)
	if err != nil {
		return domain.ForwardingConfig{}, fmt.Errorf("failed to load tenant settings: %w", err)
	}
	if settings == nil {
		return domain.DefaultForwardingConfig(), nil
	}
	return *settings, nil
}

func (s *IngestService) enrich(ctx context.Context, tenant *domain.Tenant, settings domain.ForwardingConfig, req *dto.TrackRequest, meta dto.RequestMeta) *domain.TrackedEvent {
	device := useragent.Parse(meta.UserAgent, req.ScreenWidth)

	fingerprint := req.Fingerprint
	if fingerprint == "" {
		fingerprint = req.VisitorID
	}

	event := &domain.TrackedEvent{
		ID:             s.newID(),
		AppID:          tenant.ID,
		EventName:      req.EventName,
		URL:            req.URL,
		Referrer:       req.Referrer,
		SessionID:      req.SessionID,
		Fingerprint:    fingerprint,
		IPAddress:      meta.IP,
		UserAgent:      meta.UserAgent,
		Browser:        device.Browser,
		BrowserVersion: device.BrowserVersion,
		OS:             device.OS,
		OSVersion:      device.OSVersion,
		DeviceType:     device.DeviceType,
		ScreenWidth:    req.ScreenWidth,
		ScreenHeight:   req.ScreenHeight,
		Language:       req.Language,
		PageTitle:      req.PageTitle,
		UTMSource:      req.UTMSource,
		UTMMedium:      req.UTMMedium,
		UTMCampaign:    req.UTMCampaign,
		UTMTerm:        req.UTMTerm,
		UTMContent:     req.UTMContent,
		Value:          req.Value,
		Currency:       req.Currency,
		ProductID:      req.ProductID,
		ProductName:    req.ProductName,
		Quantity:       req.Quantity,
		CustomData:     req.CustomData,
		CreatedAt:      s.now().UTC(),
	}

	if settings.RecordLocation && meta.IP != "" {
		if loc := s.geo.Resolve(ctx, meta.IP); loc != nil {
			event.City = loc.City
			event.Region = loc.Region
			event.Country = loc.Country
			event.CountryCode = loc.CountryCode
			event.Timezone = loc.Timezone
		}
	}

	// the raw IP may have been used for geo above but is not kept
	if !settings.RecordIP {
		event.IPAddress = ""
	}

	return event
}

// stitchSession upserts the session and reports whether it was created
func (s *IngestService) stitchSession(ctx context.Context, settings domain.ForwardingConfig, event *domain.TrackedEvent, standardName string) bool {
	if event.SessionID == "" || !settings.RecordSession {
		return false
	}

	pageviews := 0
	if standardName == taxonomy.PageView {
		pageviews = 1
	}

	created, err := s.store.UpsertSession(ctx, &domain.AnalyticsSession{
		AppID:       event.AppID,
		SessionID:   event.SessionID,
		Fingerprint: event.Fingerprint,
		Browser:     event.Browser,
		OS:          event.OS,
		DeviceType:  event.DeviceType,
		Country:     event.Country,
		Pageviews:   pageviews,
		FirstSeen:   event.CreatedAt,
		LastSeen:    event.CreatedAt,
	})
	if err != nil {
		s.log.Error("Failed to upsert session",
			zap.String("event_id", event.ID),
			zap.String("session_id", event.SessionID),
			zap.Error(err))
		return false
	}
	return created
}

func (s *IngestService) rollup(ctx context.Context, event *domain.TrackedEvent, standardName string, newSession bool) {
	var delta domain.StatsDelta
	if standardName == taxonomy.PageView {
		delta.Pageviews = 1
	}
	if newSession {
		delta.Sessions = 1
	}
	if standardName == taxonomy.Purchase {
		delta.Purchases = 1
		if event.Value != nil {
			delta.Revenue = *event.Value
		}
	}
	if delta.IsZero() {
		return
	}

	if err := s.store.IncrementDailyStats(ctx, event.AppID, event.CreatedAt, delta); err != nil {
		s.log.Error("Failed to update daily stats",
			zap.String("event_id", event.ID),
			zap.String("app_id", event.AppID),
			zap.Error(err))
	}
}

// forwardSkipReason returns why an event must not be forwarded, or "" when it may be
func forwardSkipReason(settings domain.ForwardingConfig, test bool) string {
	switch {
	case !settings.Enabled:
		return skipDisabled
	case !settings.Verified:
		return skipNotVerified
	case settings.AccessToken == "":
		return skipNoToken
	case settings.PixelID == "":
		return skipNoPixel
	case test && settings.TestEventCode == "":
		return skipTestEventCode
	}
	return ""
}

func (s *IngestService) forward(ctx context.Context, tenant *domain.Tenant, settings domain.ForwardingConfig, req *dto.TrackRequest, event *domain.TrackedEvent, resolution taxonomy.Resolution) {
	if s.forwarder == nil {
		return
	}
	if reason := forwardSkipReason(settings, req.Test); reason != "" {
		s.log.Debug("Forwarding skipped",
			zap.String("event_id", event.ID),
			zap.String("app_id", tenant.PublicID),
			zap.String("reason", reason))
		return
	}

	data := resolution.Data
	fbp := takeString(data, "fbp", "_fbp")
	fbc := takeString(data, "fbc", "_fbc")

	// identifiers found in custom data only travel hashed
	email := req.Email
	if found := takeString(data, "email", "em"); email == "" {
		email = found
	}
	phone := takeString(data, "phone", "ph", "phone_number")
	capi.StripUserData(data)

	externalID := req.VisitorID
	if externalID == "" {
		externalID = event.Fingerprint
	}

	custom := capi.CustomData{
		Currency:    event.Currency,
		Value:       event.Value,
		ContentName: event.ProductName,
		NumItems:    event.Quantity,
		Extra:       data,
	}
	if event.ProductID != "" {
		custom.ContentIDs = []string{event.ProductID}
	}

	target := capi.Target{
		AppID:         tenant.PublicID,
		PixelID:       settings.PixelID,
		AccessToken:   settings.AccessToken,
		TestEventCode: settings.TestEventCode,
	}
	conversion := capi.Event{
		Name:         resolution.StandardName,
		Time:         event.CreatedAt.Unix(),
		ID:           event.ID,
		SourceURL:    event.URL,
		ActionSource: capi.ActionSourceWebsite,
		UserData: capi.UserData{
			ClientIP:   event.IPAddress,
			UserAgent:  event.UserAgent,
			Email:      email,
			Phone:      phone,
			ExternalID: externalID,
			FBP:        fbp,
			FBC:        fbc,
		},
		CustomData: custom,
	}

	if err := s.forwarder.Forward(ctx, target, conversion); err != nil {
		s.log.Warn("Conversion forwarding failed",
			zap.String("event_id", event.ID),
			zap.String("app_id", tenant.PublicID),
			zap.String("event_name", resolution.StandardName),
			zap.Error(err))
		return
	}

	s.log.Debug("Conversion forwarded",
		zap.String("event_id", event.ID),
		zap.String("event_name", resolution.StandardName),
		zap.String("mapping", resolution.Source))
}

func (s *IngestService) export(ctx context.Context, event *domain.TrackedEvent) {
	if s.exporter == nil {
		return
	}
	if err := s.exporter.ExportEvent(ctx, event); err != nil {
		s.log.Warn("Failed to export event",
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
}

func validateTrackRequest(req *dto.TrackRequest) error {
	if req == nil {
		return &ValidationError{Message: "request body is required"}
	}
	if strings.TrimSpace(req.AppID) == "" {
		return required("appId")
	}
	if strings.TrimSpace(req.EventName) == "" {
		return required("eventName")
	}
	return validateRanges(req)
}

// takeString removes the first non-empty string value under keys from data
func takeString(data map[string]any, keys ...string) string {
	var found string
	for _, key := range keys {
		v, ok := data[key]
		if !ok {
			continue
		}
		delete(data, key)
		if s, ok := v.(string); ok && found == "" {
			found = s
		}
	}
	return found
}

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BarkinBalci/capi-relay-service/internal/domain"
)

// EventStore implements repository.EventStore
type EventStore struct {
	client *Client
	log    *zap.Logger
}

// NewEventStore creates a new event store
func NewEventStore(client *Client, log *zap.Logger) *EventStore {
	return &EventStore{
		client: client,
		log:    log,
	}
}

// Ping checks if the database connection is alive
func (s *EventStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// InsertEvent appends one tracked event row
func (s *EventStore) InsertEvent(ctx context.Context, e *domain.TrackedEvent) error {
	var customData any
	if len(e.CustomData) > 0 {
		raw, err := json.Marshal(e.CustomData)
		if err != nil {
			return fmt.Errorf("failed to marshal custom data: %w", err)
		}
		customData = string(raw)
	}

	_, err := s.client.DB().ExecContext(ctx, `
		INSERT INTO tracked_events (
			id, app_id, event_name, url, referrer, session_id, fingerprint, ip_address, user_agent,
			browser, browser_version, os, os_version, device_type, screen_width, screen_height,
			language, page_title, utm_source, utm_medium, utm_campaign, utm_term, utm_content,
			value, currency, product_id, product_name, quantity,
			city, region, country, country_code, timezone, custom_data, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9,
			$10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23,
			$24, $25, $26, $27, $28,
			$29, $30, $31, $32, $33, $34::jsonb, $35
		)`,
		e.ID, e.AppID, e.EventName, nullString(e.URL), nullString(e.Referrer), nullString(e.SessionID),
		nullString(e.Fingerprint), nullString(e.IPAddress), nullString(e.UserAgent),
		nullString(e.Browser), nullString(e.BrowserVersion), nullString(e.OS), nullString(e.OSVersion),
		nullString(e.DeviceType), nullInt(e.ScreenWidth), nullInt(e.ScreenHeight),
		nullString(e.Language), nullString(e.PageTitle), nullString(e.UTMSource), nullString(e.UTMMedium),
		nullString(e.UTMCampaign), nullString(e.UTMTerm), nullString(e.UTMContent),
		nullFloat(e.Value), nullString(e.Currency), nullString(e.ProductID), nullString(e.ProductName),
		nullInt(e.Quantity),
		nullString(e.City), nullString(e.Region), nullString(e.Country), nullString(e.CountryCode),
		nullString(e.Timezone), customData, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert tracked event: %w", err)
	}
	return nil
}

// UpsertSession creates the session or increments it in a single statement.
// xmax is zero only for freshly inserted tuples.
func (s *EventStore) UpsertSession(ctx context.Context, sess *domain.AnalyticsSession) (bool, error) {
	var created bool
	err := s.client.DB().QueryRowContext(ctx, `
		INSERT INTO analytics_sessions (
			app_id, session_id, fingerprint, browser, os, device_type, country, pageviews, first_seen, last_seen
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (app_id, session_id) DO UPDATE SET
			pageviews = analytics_sessions.pageviews + EXCLUDED.pageviews,
			last_seen = GREATEST(analytics_sessions.last_seen, EXCLUDED.last_seen)
		RETURNING (xmax = 0)`,
		sess.AppID, sess.SessionID, nullString(sess.Fingerprint), nullString(sess.Browser),
		nullString(sess.OS), nullString(sess.DeviceType), nullString(sess.Country),
		sess.Pageviews, sess.LastSeen,
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("failed to upsert session: %w", err)
	}
	return created, nil
}

// IncrementDailyStats adds delta to the day's row, creating it when absent
func (s *EventStore) IncrementDailyStats(ctx context.Context, appID string, day time.Time, delta domain.StatsDelta) error {
	_, err := s.client.DB().ExecContext(ctx, `
		INSERT INTO daily_stats (app_id, date, pageviews, sessions, purchases, revenue)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (app_id, date) DO UPDATE SET
			pageviews = daily_stats.pageviews + EXCLUDED.pageviews,
			sessions  = daily_stats.sessions + EXCLUDED.sessions,
			purchases = daily_stats.purchases + EXCLUDED.purchases,
			revenue   = daily_stats.revenue + EXCLUDED.revenue`,
		appID, day.UTC().Format(time.DateOnly), delta.Pageviews, delta.Sessions, delta.Purchases, delta.Revenue,
	)
	if err != nil {
		return fmt.Errorf("failed to increment daily stats: %w", err)
	}
	return nil
}

// GetDailyStats reads a single rollup row; nil when absent
func (s *EventStore) GetDailyStats(ctx context.Context, appID string, day time.Time) (*domain.DailyStats, error) {
	stats := domain.DailyStats{AppID: appID}
	err := s.client.DB().QueryRowContext(ctx, `
		SELECT date, pageviews, sessions, purchases, revenue::float8
		FROM daily_stats WHERE app_id = $1 AND date = $2`,
		appID, day.UTC().Format(time.DateOnly),
	).Scan(&stats.Date, &stats.Pageviews, &stats.Sessions, &stats.Purchases, &stats.Revenue)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get daily stats: %w", err)
	}
	return &stats, nil
}

// GetSession reads a single session row; nil when absent
func (s *EventStore) GetSession(ctx context.Context, appID, sessionID string) (*domain.AnalyticsSession, error) {
	sess := domain.AnalyticsSession{AppID: appID, SessionID: sessionID}
	err := s.client.DB().QueryRowContext(ctx, `
		SELECT COALESCE(fingerprint, ''), COALESCE(browser, ''), COALESCE(os, ''), COALESCE(device_type, ''),
		       COALESCE(country, ''), pageviews, first_seen, last_seen
		FROM analytics_sessions WHERE app_id = $1 AND session_id = $2`,
		appID, sessionID,
	).Scan(&sess.Fingerprint, &sess.Browser, &sess.OS, &sess.DeviceType, &sess.Country,
		&sess.Pageviews, &sess.FirstSeen, &sess.LastSeen)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &sess, nil
}

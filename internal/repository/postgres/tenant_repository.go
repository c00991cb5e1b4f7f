package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/BarkinBalci/capi-relay-service/internal/domain"
)

// TenantRepository implements repository.TenantGateway
type TenantRepository struct {
	client *Client
	log    *zap.Logger
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(client *Client, log *zap.Logger) *TenantRepository {
	return &TenantRepository{
		client: client,
		log:    log,
	}
}

func (r *TenantRepository) GetTenantByPublicID(ctx context.Context, publicID string) (*domain.Tenant, error) {
	var t domain.Tenant
	err := r.client.DB().QueryRowContext(ctx,
		`SELECT id, public_id, shop, name FROM apps WHERE public_id = $1`, publicID).
		Scan(&t.ID, &t.PublicID, &t.ShopDomain, &t.Name)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &t, nil
}

func (r *TenantRepository) GetForwardingConfig(ctx context.Context, appID string) (*domain.ForwardingConfig, error) {
	var c domain.ForwardingConfig
	err := r.client.DB().QueryRowContext(ctx, `
		SELECT capi_enabled, capi_verified,
		       COALESCE(meta_pixel_id, ''), COALESCE(meta_access_token, ''), COALESCE(test_event_code, ''),
		       record_ip, record_location, record_session
		FROM apps WHERE id = $1`, appID).
		Scan(&c.Enabled, &c.Verified, &c.PixelID, &c.AccessToken, &c.TestEventCode,
			&c.RecordIP, &c.RecordLocation, &c.RecordSession)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get forwarding config: %w", err)
	}
	return &c, nil
}

func (r *TenantRepository) FindActiveCustomEvent(ctx context.Context, appID, name string) (*domain.CustomEvent, error) {
	var (
		e        domain.CustomEvent
		template []byte
	)
	err := r.client.DB().QueryRowContext(ctx, `
		SELECT id, app_id, name, COALESCE(meta_event_name, ''), event_data, is_active
		FROM custom_events
		WHERE app_id = $1 AND name = $2 AND is_active`, appID, name).
		Scan(&e.ID, &e.AppID, &e.Name, &e.StandardEvent, &template, &e.Active)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find custom event: %w", err)
	}

	if len(template) > 0 {
		if err := json.Unmarshal(template, &e.TemplateData); err != nil {
			// a template that is not a JSON object is ignored rather than failing the mapping
			r.log.Warn("Ignoring malformed custom event template",
				zap.String("app_id", appID),
				zap.String("event_name", name),
				zap.Error(err))
			e.TemplateData = nil
		}
	}

	return &e, nil
}

func (r *TenantRepository) ListTenantsByShop(ctx context.Context, shopDomain string) ([]*domain.Tenant, error) {
	rows, err := r.client.DB().QueryContext(ctx,
		`SELECT id, public_id, shop, name FROM apps WHERE shop = $1 ORDER BY created_at`, shopDomain)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			r.log.Error("Failed to close tenant rows", zap.Error(err))
		}
	}(rows)

	var tenants []*domain.Tenant
	for rows.Next() {
		var t domain.Tenant
		if err := rows.Scan(&t.ID, &t.PublicID, &t.ShopDomain, &t.Name); err != nil {
			return nil, fmt.Errorf("failed to scan tenant row: %w", err)
		}
		tenants = append(tenants, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tenant rows: %w", err)
	}

	return tenants, nil
}

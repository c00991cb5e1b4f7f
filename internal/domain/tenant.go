package domain

// Tenant is one store's tracking integration (the "app" or pixel)
type Tenant struct {
	ID         string
	PublicID   string
	ShopDomain string
	Name       string
}

// ForwardingConfig holds the per-tenant settings consumed by the ingestion pipeline
type ForwardingConfig struct {
	Enabled       bool
	Verified      bool
	PixelID       string
	AccessToken   string
	TestEventCode string

	RecordIP       bool
	RecordLocation bool
	RecordSession  bool
}

// DefaultForwardingConfig is used when a tenant has no stored settings
func DefaultForwardingConfig() ForwardingConfig {
	return ForwardingConfig{
		RecordIP:       true,
		RecordLocation: true,
		RecordSession:  true,
	}
}

// CustomEvent maps a tenant-defined event name to a standard event
type CustomEvent struct {
	ID            string
	AppID         string
	Name          string
	StandardEvent string
	TemplateData  map[string]any
	Active        bool
}

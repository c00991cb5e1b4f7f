package domain

import "time"

// TrackedEvent is one observed storefront or order interaction. Enrichment
// fields are empty when the corresponding lookup failed or was disabled.
type TrackedEvent struct {
	ID             string         `json:"id"`
	AppID          string         `json:"app_id"`
	EventName      string         `json:"event_name"`
	URL            string         `json:"url,omitempty"`
	Referrer       string         `json:"referrer,omitempty"`
	SessionID      string         `json:"session_id,omitempty"`
	Fingerprint    string         `json:"fingerprint,omitempty"`
	IPAddress      string         `json:"ip_address,omitempty"`
	UserAgent      string         `json:"user_agent,omitempty"`
	Browser        string         `json:"browser,omitempty"`
	BrowserVersion string         `json:"browser_version,omitempty"`
	OS             string         `json:"os,omitempty"`
	OSVersion      string         `json:"os_version,omitempty"`
	DeviceType     string         `json:"device_type,omitempty"`
	ScreenWidth    *int           `json:"screen_width,omitempty"`
	ScreenHeight   *int           `json:"screen_height,omitempty"`
	Language       string         `json:"language,omitempty"`
	PageTitle      string         `json:"page_title,omitempty"`
	UTMSource      string         `json:"utm_source,omitempty"`
	UTMMedium      string         `json:"utm_medium,omitempty"`
	UTMCampaign    string         `json:"utm_campaign,omitempty"`
	UTMTerm        string         `json:"utm_term,omitempty"`
	UTMContent     string         `json:"utm_content,omitempty"`
	Value          *float64       `json:"value,omitempty"`
	Currency       string         `json:"currency,omitempty"`
	ProductID      string         `json:"product_id,omitempty"`
	ProductName    string         `json:"product_name,omitempty"`
	Quantity       *int           `json:"quantity,omitempty"`
	City           string         `json:"city,omitempty"`
	Region         string         `json:"region,omitempty"`
	Country        string         `json:"country,omitempty"`
	CountryCode    string         `json:"country_code,omitempty"`
	Timezone       string         `json:"timezone,omitempty"`
	CustomData     map[string]any `json:"custom_data,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ArchivedEvent is the flattened form of a TrackedEvent stored in ClickHouse
type ArchivedEvent struct {
	EventID     string    `ch:"event_id"`
	AppID       string    `ch:"app_id"`
	EventName   string    `ch:"event_name"`
	SessionID   string    `ch:"session_id"`
	VisitorID   string    `ch:"visitor_id"`
	DeviceType  string    `ch:"device_type"`
	Country     string    `ch:"country"`
	UTMSource   string    `ch:"utm_source"`
	Value       float64   `ch:"value"`
	Currency    string    `ch:"currency"`
	Timestamp   int64     `ch:"timestamp"`
	CustomData  string    `ch:"custom_data"`
	ProcessedAt time.Time `ch:"processed_at"`
	Version     uint64    `ch:"version"`
}

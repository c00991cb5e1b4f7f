package dto

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"validation_error"`
	Message string `json:"message,omitempty" example:"eventName is required"`
}

// TrackResponse represents a successful ingestion
type TrackResponse struct {
	Success bool   `json:"success" example:"true"`
	EventID string `json:"eventId" example:"0b6c1d1e-7f38-4c52-9d43-0e1f5a2b9c11"`
}

// WebhookResponse acknowledges a Shopify webhook
type WebhookResponse struct {
	Success  bool `json:"success" example:"true"`
	Recorded int  `json:"recorded" example:"1"`
}

// HealthResponse represents the health check result
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

// MetricsGroupData represents aggregated metrics for a specific group
type MetricsGroupData struct {
	GroupValue string `json:"group_value" example:"mobile"`
	TotalCount uint64 `json:"total_count" example:"1500"`
}

// GetMetricsResponse represents the metrics query response
type GetMetricsResponse struct {
	AppID       string             `json:"app_id" example:"pixel_1"`
	EventName   string             `json:"event_name" example:"pageview"`
	From        int64              `json:"from" example:"1723475612"`
	To          int64              `json:"to" example:"1723562012"`
	TotalCount  uint64             `json:"total_count" example:"5000"`
	UniqueCount uint64             `json:"unique_count" example:"2500"`
	Revenue     float64            `json:"revenue" example:"129.99"`
	GroupBy     string             `json:"group_by,omitempty" example:"device_type"`
	Groups      []MetricsGroupData `json:"groups,omitempty"`
}

package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// TrackRequest represents an ingestion request from the storefront pixel,
// the app proxy, or a mapped webhook
type TrackRequest struct {
	AppID        string         `json:"appId" example:"pixel_1"`
	EventName    string         `json:"eventName" example:"pageview"`
	URL          string         `json:"url,omitempty" example:"https://shop.example/products/tee"`
	Referrer     string         `json:"referrer,omitempty"`
	SessionID    string         `json:"sessionId,omitempty" example:"s1"`
	VisitorID    string         `json:"visitorId,omitempty"`
	Fingerprint  string         `json:"fingerprint,omitempty"`
	ScreenWidth  *int           `json:"screenWidth,omitempty" example:"1440"`
	ScreenHeight *int           `json:"screenHeight,omitempty" example:"900"`
	Language     string         `json:"language,omitempty" example:"en-US"`
	PageTitle    string         `json:"pageTitle,omitempty"`
	UTMSource    string         `json:"utmSource,omitempty"`
	UTMMedium    string         `json:"utmMedium,omitempty"`
	UTMCampaign  string         `json:"utmCampaign,omitempty"`
	UTMTerm      string         `json:"utmTerm,omitempty"`
	UTMContent   string         `json:"utmContent,omitempty"`
	Value        *float64       `json:"value,omitempty" example:"10"`
	Currency     string         `json:"currency,omitempty" example:"USD"`
	ProductID    string         `json:"productId,omitempty"`
	ProductName  string         `json:"productName,omitempty"`
	Quantity     *int           `json:"quantity,omitempty"`
	CustomData   map[string]any `json:"customData,omitempty" swaggertype:"object"`

	// Email is only used for the hashed CAPI match key and is never stored
	Email string `json:"email,omitempty"`
	// Test marks a non-production event; it is forwarded only when the
	// tenant has a test event code configured
	Test bool `json:"test,omitempty"`
}

// graphQLEnvelope is the {query, variables: {input}} wrapper some clients send
type graphQLEnvelope struct {
	Query     string `json:"query"`
	Variables struct {
		Input json.RawMessage `json:"input"`
	} `json:"variables"`
}

// ErrEmptyBody is returned when a track request has no body
var ErrEmptyBody = errors.New("request body is empty")

// DecodeTrackRequest parses either a plain JSON body or a GraphQL envelope
// into a TrackRequest. Field validation is left to the service.
func DecodeTrackRequest(body []byte) (*TrackRequest, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}

	var envelope graphQLEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}

	payload := body
	if input := bytes.TrimSpace(envelope.Variables.Input); len(input) > 0 && !bytes.Equal(input, []byte("null")) {
		payload = input
	}

	var req TrackRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("invalid track payload: %w", err)
	}
	return &req, nil
}

// RequestMeta carries transport-level facts about the caller
type RequestMeta struct {
	IP        string
	UserAgent string
}

// GetMetricsRequest represents a metrics query request
type GetMetricsRequest struct {
	AppID     string `form:"app_id" binding:"required" example:"pixel_1"`
	EventName string `form:"event_name" binding:"required" example:"pageview"`
	From      int64  `form:"from" binding:"required" example:"1723475612"`
	To        int64  `form:"to" binding:"required" example:"1723562012"`
	GroupBy   string `form:"group_by" example:"device_type"`
}

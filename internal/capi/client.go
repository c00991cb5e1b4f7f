// Package capi submits normalized conversions to the Meta Conversions API.
package capi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a submission when no positive timeout is configured
const DefaultTimeout = 10 * time.Second

// ErrMissingCredentials is returned when the target has no pixel or token
var ErrMissingCredentials = errors.New("missing pixel id or access token")

// Forwarder submits a single conversion event
type Forwarder interface {
	Forward(ctx context.Context, target Target, event Event) error
}

// ClientConfig configures the Graph API client
type ClientConfig struct {
	GraphURL   string
	APIVersion string
	Timeout    time.Duration
}

// Client posts events to the Graph API events edge of a pixel
type Client struct {
	config ClientConfig
	http   *http.Client
	log    *zap.Logger
}

// NewClient creates a new Conversions API client
func NewClient(config ClientConfig, log *zap.Logger) *Client {
	config.GraphURL = strings.TrimRight(config.GraphURL, "/")
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Client{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
		log:    log,
	}
}

type apiError struct {
	Error *struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
	EventsReceived int `json:"events_received"`
}

// Forward sends event as a one-element batch. It does not retry.
func (c *Client) Forward(ctx context.Context, target Target, event Event) error {
	if target.PixelID == "" || target.AccessToken == "" {
		return ErrMissingCredentials
	}

	body, err := json.Marshal(buildPayload(target, event))
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/%s/events?access_token=%s",
		c.config.GraphURL,
		c.config.APIVersion,
		url.PathEscape(target.PixelID),
		url.QueryEscape(target.AccessToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send event: %w", redactToken(err, target.AccessToken))
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var out apiError
	_ = json.Unmarshal(raw, &out)

	if out.Error != nil {
		return fmt.Errorf("conversions api error (status %d, code %d, type %s): %s",
			res.StatusCode, out.Error.Code, out.Error.Type, out.Error.Message)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("conversions api returned status %d", res.StatusCode)
	}

	c.log.Debug("Conversion event accepted",
		zap.String("app_id", target.AppID),
		zap.String("event_name", event.Name),
		zap.String("event_id", event.ID),
		zap.Int("events_received", out.EventsReceived),
		zap.Bool("test", target.TestEventCode != ""))

	return nil
}

// redactToken strips the access token from transport errors, which embed the request URL
func redactToken(err error, token string) error {
	if token == "" {
		return err
	}
	msg := err.Error()
	for _, t := range []string{token, url.QueryEscape(token)} {
		msg = strings.ReplaceAll(msg, t, "REDACTED")
	}
	return errors.New(msg)
}

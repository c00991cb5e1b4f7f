// Package geo resolves client IP addresses to a coarse location.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a lookup when no positive timeout is configured
const DefaultTimeout = 2 * time.Second

const lookupFields = "status,message,country,countryCode,regionName,city,timezone"

// Location is the result of a successful lookup
type Location struct {
	City        string
	Region      string
	Country     string
	CountryCode string
	Timezone    string
}

// Resolver looks up the location of an IP. A nil result means unknown.
type Resolver interface {
	Resolve(ctx context.Context, ip string) *Location
}

// Noop never resolves anything
type Noop struct{}

// Resolve always returns nil
func (Noop) Resolve(context.Context, string) *Location { return nil }

// IPAPIResolver queries an ip-api compatible JSON endpoint
type IPAPIResolver struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	log     *zap.Logger
}

// NewIPAPIResolver creates a resolver bounded by timeout
func NewIPAPIResolver(baseURL string, timeout time.Duration, log *zap.Logger) *IPAPIResolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &IPAPIResolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

type ipAPIResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	RegionName  string `json:"regionName"`
	City        string `json:"city"`
	Timezone    string `json:"timezone"`
}

// Resolve returns nil for unroutable addresses and on any lookup failure
func (r *IPAPIResolver) Resolve(ctx context.Context, ip string) *Location {
	addr := net.ParseIP(strings.TrimSpace(ip))
	if addr == nil || !IsPublic(addr) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	loc, err := r.lookup(ctx, addr.String())
	if err != nil {
		r.log.Debug("Geo lookup failed",
			zap.String("ip", addr.String()),
			zap.Error(err))
		return nil
	}
	return loc
}

func (r *IPAPIResolver) lookup(ctx context.Context, ip string) (*Location, error) {
	endpoint := fmt.Sprintf("%s/json/%s?fields=%s", r.baseURL, url.PathEscape(ip), lookupFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	res, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query provider: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("provider returned status %d", res.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var out ipAPIResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Status != "success" {
		return nil, fmt.Errorf("provider error: %s", out.Message)
	}

	return &Location{
		City:        out.City,
		Region:      out.RegionName,
		Country:     out.Country,
		CountryCode: out.CountryCode,
		Timezone:    out.Timezone,
	}, nil
}

// IsPublic reports whether ip is a globally routable unicast address
func IsPublic(ip net.IP) bool {
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast())
}

package domain

import "time"

// AnalyticsSession is a stitched visit, unique per (AppID, SessionID)
type AnalyticsSession struct {
	AppID       string
	SessionID   string
	Fingerprint string
	Browser     string
	OS          string
	DeviceType  string
	Country     string
	Pageviews   int
	FirstSeen   time.Time
	LastSeen    time.Time
}

// DailyStats is the per-tenant, per-UTC-day rollup
type DailyStats struct {
	AppID     string
	Date      time.Time
	Pageviews int64
	Sessions  int64
	Purchases int64
	Revenue   float64
}

// StatsDelta holds the increments applied to a DailyStats row by one event
type StatsDelta struct {
	Pageviews int64
	Sessions  int64
	Purchases int64
	Revenue   float64
}

// IsZero reports whether the delta would not change any counter
func (d StatsDelta) IsZero() bool {
	return d.Pageviews == 0 && d.Sessions == 0 && d.Purchases == 0 && d.Revenue == 0
}

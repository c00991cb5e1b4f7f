package service

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/BarkinBalci/capi-relay-service/internal/dto"
)

// maxValue is the first magnitude the event store's NUMERIC(14,2) value column cannot hold
const maxValue = 1e12

// cleanText drops NUL bytes and invalid UTF-8, both rejected by the event store
func cleanText(s string) string {
	if utf8.ValidString(s) && strings.IndexByte(s, 0) < 0 {
		return s
	}
	return strings.ReplaceAll(strings.ToValidUTF8(s, ""), "\x00", "")
}

func cleanValue(v any) any {
	switch t := v.(type) {
	case string:
		return cleanText(t)
	case map[string]any:
		return cleanMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cleanValue(item)
		}
		return out
	}
	return v
}

func cleanMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[cleanText(k)] = cleanValue(v)
	}
	return out
}

// cleanRequest returns a copy of req whose text is safe to store
func cleanRequest(req *dto.TrackRequest) *dto.TrackRequest {
	out := *req
	for _, field := range []*string{
		&out.AppID, &out.EventName, &out.URL, &out.Referrer, &out.SessionID,
		&out.VisitorID, &out.Fingerprint, &out.Language, &out.PageTitle,
		&out.UTMSource, &out.UTMMedium, &out.UTMCampaign, &out.UTMTerm, &out.UTMContent,
		&out.Currency, &out.ProductID, &out.ProductName, &out.Email,
	} {
		*field = cleanText(*field)
	}
	out.CustomData = cleanMap(req.CustomData)
	return &out
}

func cleanMeta(meta dto.RequestMeta) dto.RequestMeta {
	return dto.RequestMeta{
		IP:        cleanText(meta.IP),
		UserAgent: cleanText(meta.UserAgent),
	}
}

// validateRanges rejects numbers the event store columns cannot hold
func validateRanges(req *dto.TrackRequest) error {
	if v := req.Value; v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0) || math.Abs(*v) >= maxValue) {
		return &ValidationError{Field: "value", Message: "is out of range"}
	}
	for _, check := range []struct {
		field string
		value *int
	}{
		{"quantity", req.Quantity},
		{"screenWidth", req.ScreenWidth},
		{"screenHeight", req.ScreenHeight},
	} {
		if check.value != nil && (*check.value < 0 || *check.value > math.MaxInt32) {
			return &ValidationError{Field: check.field, Message: "is out of range"}
		}
	}
	return nil
}

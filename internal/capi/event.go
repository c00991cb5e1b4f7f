package capi

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ActionSourceWebsite tags events that originated on the storefront
const ActionSourceWebsite = "website"

// Target identifies the tenant pixel a conversion is sent to
type Target struct {
	AppID         string
	PixelID       string
	AccessToken   string
	TestEventCode string
}

// Event is a normalized conversion ready for submission
type Event struct {
	Name         string
	Time         int64
	ID           string
	SourceURL    string
	ActionSource string
	UserData     UserData
	CustomData   CustomData
}

// UserData carries raw identifiers. Email, Phone and ExternalID are hashed on the wire.
type UserData struct {
	ClientIP   string
	UserAgent  string
	Email      string
	Phone      string
	ExternalID string
	FBP        string
	FBC        string
}

// CustomData carries commerce details of the conversion
type CustomData struct {
	Currency    string
	Value       *float64
	ContentIDs  []string
	ContentName string
	NumItems    *int
	Extra       map[string]any
}

type payload struct {
	Data          []wireEvent `json:"data"`
	TestEventCode string      `json:"test_event_code,omitempty"`
}

type wireEvent struct {
	EventName      string         `json:"event_name"`
	EventTime      int64          `json:"event_time"`
	EventID        string         `json:"event_id,omitempty"`
	EventSourceURL string         `json:"event_source_url,omitempty"`
	ActionSource   string         `json:"action_source"`
	UserData       wireUserData   `json:"user_data"`
	CustomData     map[string]any `json:"custom_data,omitempty"`
}

type wireUserData struct {
	ClientIPAddress string   `json:"client_ip_address,omitempty"`
	ClientUserAgent string   `json:"client_user_agent,omitempty"`
	Email           []string `json:"em,omitempty"`
	Phone           []string `json:"ph,omitempty"`
	ExternalID      []string `json:"external_id,omitempty"`
	FBP             string   `json:"fbp,omitempty"`
	FBC             string   `json:"fbc,omitempty"`
}

// userDataKeys are customer identifiers that may only travel hashed in user_data
var userDataKeys = map[string]struct{}{
	"email": {}, "em": {}, "e_mail": {},
	"phone": {}, "ph": {}, "phone_number": {},
	"external_id": {},
	"first_name": {}, "fn": {}, "last_name": {}, "ln": {},
	"date_of_birth": {}, "db": {}, "gender": {}, "ge": {},
	"city": {}, "ct": {}, "state": {}, "st": {},
	"zip": {}, "zp": {}, "postal_code": {}, "address": {},
}

// IsUserDataKey reports whether a custom data key names a customer identifier
func IsUserDataKey(key string) bool {
	_, ok := userDataKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// StripUserData deletes every customer identifier key from data
func StripUserData(data map[string]any) {
	for key := range data {
		if IsUserDataKey(key) {
			delete(data, key)
		}
	}
}

// HashIdentifier returns the lower-case hex SHA-256 of the trimmed, lower-cased value
func HashIdentifier(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// HashPhone hashes the digits of a phone number, country code included.
// It returns "" when no digit is present.
func HashPhone(value string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, value)
	if digits == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(digits))
	return hex.EncodeToString(sum[:])
}

func buildPayload(target Target, event Event) payload {
	actionSource := event.ActionSource
	if actionSource == "" {
		actionSource = ActionSourceWebsite
	}

	user := wireUserData{
		ClientIPAddress: event.UserData.ClientIP,
		ClientUserAgent: event.UserData.UserAgent,
		FBP:             event.UserData.FBP,
		FBC:             event.UserData.FBC,
	}
	if strings.TrimSpace(event.UserData.Email) != "" {
		user.Email = []string{HashIdentifier(event.UserData.Email)}
	}
	if phone := HashPhone(event.UserData.Phone); phone != "" {
		user.Phone = []string{phone}
	}
	if strings.TrimSpace(event.UserData.ExternalID) != "" {
		user.ExternalID = []string{HashIdentifier(event.UserData.ExternalID)}
	}

	return payload{
		Data: []wireEvent{{
			EventName:      event.Name,
			EventTime:      event.Time,
			EventID:        event.ID,
			EventSourceURL: event.SourceURL,
			ActionSource:   actionSource,
			UserData:       user,
			CustomData:     customDataMap(event.CustomData),
		}},
		TestEventCode: target.TestEventCode,
	}
}

func customDataMap(cd CustomData) map[string]any {
	out := make(map[string]any, len(cd.Extra)+6)
	for k, v := range cd.Extra {
		if IsUserDataKey(k) {
			continue
		}
		out[k] = v
	}
	if cd.Currency != "" {
		out["currency"] = strings.ToUpper(cd.Currency)
	}
	if cd.Value != nil {
		out["value"] = *cd.Value
	}
	if len(cd.ContentIDs) > 0 {
		out["content_ids"] = cd.ContentIDs
		out["content_type"] = "product"
	}
	if cd.ContentName != "" {
		out["content_name"] = cd.ContentName
	}
	if cd.NumItems != nil {
		out["num_items"] = *cd.NumItems
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

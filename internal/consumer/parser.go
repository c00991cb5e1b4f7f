package consumer

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/BarkinBalci/capi-relay-service/internal/domain"
)

// TrackedEventParser implements MessageParser for exported TrackedEvent messages
type TrackedEventParser struct {
	now func() time.Time
}

// NewTrackedEventParser creates a new tracked event parser
func NewTrackedEventParser() *TrackedEventParser {
	return &TrackedEventParser{now: time.Now}
}

// Parse flattens an exported TrackedEvent into its archive form
func (p *TrackedEventParser) Parse(body []byte) (*domain.ArchivedEvent, error) {
	var event domain.TrackedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message body: %w", err)
	}
	if event.ID == "" || event.AppID == "" || event.EventName == "" {
		return nil, errors.New("message is missing id, app_id or event_name")
	}

	customData := "{}"
	if len(event.CustomData) > 0 {
		raw, err := json.Marshal(event.CustomData)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal custom data: %w", err)
		}
		customData = string(raw)
	}

	var value float64
	if event.Value != nil {
		value = *event.Value
	}

	visitorID := event.Fingerprint
	if visitorID == "" {
		visitorID = event.SessionID
	}

	now := p.now()
	return &domain.ArchivedEvent{
		EventID:     event.ID,
		AppID:       event.AppID,
		EventName:   event.EventName,
		SessionID:   event.SessionID,
		VisitorID:   visitorID,
		DeviceType:  event.DeviceType,
		Country:     event.CountryCode,
		UTMSource:   event.UTMSource,
		Value:       value,
		Currency:    event.Currency,
		Timestamp:   event.CreatedAt.Unix(),
		CustomData:  customData,
		ProcessedAt: now,
		Version:     uint64(now.UnixNano()),
	}, nil
}

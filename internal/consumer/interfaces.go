package consumer

import (
	"github.com/BarkinBalci/capi-relay-service/internal/domain"
)

// MessageParser turns a raw queue message body into an archived event
type MessageParser interface {
	Parse(body []byte) (*domain.ArchivedEvent, error)
}

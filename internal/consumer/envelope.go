package consumer

import (
	"context"

	"github.com/BarkinBalci/capi-relay-service/internal/domain"
)

// Envelope carries one archived event together with the callbacks that
// settle its source message
type Envelope struct {
	Event     *domain.ArchivedEvent
	MessageID string
	ack       func(context.Context) error
	nack      func(context.Context) error
}

// NewEnvelope creates a new message envelope
func NewEnvelope(messageID string, event *domain.ArchivedEvent, ack, nack func(context.Context) error) *Envelope {
	return &Envelope{
		Event:     event,
		MessageID: messageID,
		ack:       ack,
		nack:      nack,
	}
}

// Ack removes the source message from the queue
func (e *Envelope) Ack(ctx context.Context) error {
	if e.ack == nil {
		return nil
	}
	return e.ack(ctx)
}

// Nack returns the source message to the queue for redelivery
func (e *Envelope) Nack(ctx context.Context) error {
	if e.nack == nil {
		return nil
	}
	return e.nack(ctx)
}

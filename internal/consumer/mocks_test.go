package consumer

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/mock"

	"github.com/BarkinBalci/capi-relay-service/internal/domain"
	"github.com/BarkinBalci/capi-relay-service/internal/repository"
)

const (
	testQueueURL        = "https://sqs.eu-central-1.amazonaws.com/123/tracked-events"
	testTimestamp int64 = 1766702552
)

// MockQueueConsumer is a mock implementation of queue.QueueConsumer
type MockQueueConsumer struct {
	mock.Mock
}

func (m *MockQueueConsumer) ReceiveMessages(ctx context.Context, input *sqs.ReceiveMessageInput) (*sqs.ReceiveMessageOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.ReceiveMessageOutput), args.Error(1)
}

func (m *MockQueueConsumer) DeleteMessage(ctx context.Context, input *sqs.DeleteMessageInput) (*sqs.DeleteMessageOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.DeleteMessageOutput), args.Error(1)
}

func (m *MockQueueConsumer) ChangeMessageVisibility(ctx context.Context, input *sqs.ChangeMessageVisibilityInput) (*sqs.ChangeMessageVisibilityOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.ChangeMessageVisibilityOutput), args.Error(1)
}

func (m *MockQueueConsumer) QueueURL() string {
	args := m.Called()
	return args.String(0)
}

// MockArchiveRepository is a mock implementation of repository.ArchiveRepository
type MockArchiveRepository struct {
	mock.Mock
}

func (m *MockArchiveRepository) InsertBatch(ctx context.Context, events []*domain.ArchivedEvent) (int, error) {
	args := m.Called(ctx, events)
	return args.Int(0), args.Error(1)
}

func (m *MockArchiveRepository) InitSchema(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockArchiveRepository) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockArchiveRepository) Close() error {
	return m.Called().Error(0)
}

func (m *MockArchiveRepository) GetMetrics(ctx context.Context, query repository.MetricsQuery) (*repository.MetricsResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.MetricsResult), args.Error(1)
}

// MockMessageParser is a mock implementation of MessageParser
type MockMessageParser struct {
	mock.Mock
}

func (m *MockMessageParser) Parse(body []byte) (*domain.ArchivedEvent, error) {
	args := m.Called(body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ArchivedEvent), args.Error(1)
}

// settleCounter records ack and nack calls of test envelopes
type settleCounter struct {
	acks  chan string
	nacks chan string
}

func newSettleCounter() *settleCounter {
	return &settleCounter{acks: make(chan string, 100), nacks: make(chan string, 100)}
}

func (s *settleCounter) envelope(id string) *Envelope {
	event := &domain.ArchivedEvent{
		EventID:   id,
		AppID:     "app-1",
		EventName: "pageview",
		Timestamp: testTimestamp,
	}
	return NewEnvelope("msg-"+id, event,
		func(context.Context) error { s.acks <- id; return nil },
		func(context.Context) error { s.nacks <- id; return nil })
}

func drain(ch chan string, want int, timeout time.Duration) []string {
	var got []string
	deadline := time.After(timeout)
	for len(got) < want {
		select {
		case id := <-ch:
			got = append(got, id)
		case <-deadline:
			return got
		}
	}
	return got
}

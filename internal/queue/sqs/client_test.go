package sqs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	envConfig "github.com/BarkinBalci/capi-relay-service/internal/config"
	"github.com/BarkinBalci/capi-relay-service/internal/domain"
)

// MockSQSAPI is a mock implementation of sqsAPI
type MockSQSAPI struct {
	mock.Mock
}

func (m *MockSQSAPI) SendMessage(ctx context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.SendMessageOutput), args.Error(1)
}

func (m *MockSQSAPI) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.ReceiveMessageOutput), args.Error(1)
}

func (m *MockSQSAPI) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.DeleteMessageOutput), args.Error(1)
}

func (m *MockSQSAPI) ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, _ ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.ChangeMessageVisibilityOutput), args.Error(1)
}

const testQueueURL = "https://sqs.eu-central-1.amazonaws.com/123/tracked-events"

func TestClient_ExportEvent_Success(t *testing.T) {
	api := new(MockSQSAPI)
	client := newClient(api, envConfig.SQS{QueueURL: testQueueURL}, zap.NewNop())

	event := &domain.TrackedEvent{
		ID:        "evt-1",
		AppID:     "app-1",
		EventName: "pageview",
		SessionID: "s1",
		CreatedAt: time.Unix(1766702551, 0).UTC(),
	}

	api.On("SendMessage", mock.Anything, mock.MatchedBy(func(in *sqs.SendMessageInput) bool {
		var decoded domain.TrackedEvent
		if err := json.Unmarshal([]byte(aws.ToString(in.MessageBody)), &decoded); err != nil {
			return false
		}
		return aws.ToString(in.QueueUrl) == testQueueURL &&
			decoded.ID == "evt-1" &&
			aws.ToString(in.MessageAttributes["AppID"].StringValue) == "app-1"
	})).Return(&sqs.SendMessageOutput{}, nil)

	err := client.ExportEvent(context.Background(), event)

	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestClient_ExportEvent_SendError(t *testing.T) {
	api := new(MockSQSAPI)
	client := newClient(api, envConfig.SQS{QueueURL: testQueueURL}, zap.NewNop())

	api.On("SendMessage", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	err := client.ExportEvent(context.Background(), &domain.TrackedEvent{ID: "evt-1"})

	assert.ErrorContains(t, err, "failed to send message to SQS")
}

func TestClient_QueueURL(t *testing.T) {
	client := newClient(new(MockSQSAPI), envConfig.SQS{QueueURL: testQueueURL}, zap.NewNop())

	assert.Equal(t, testQueueURL, client.QueueURL())
}

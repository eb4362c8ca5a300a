package sqsqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const queueURL = "https://sqs.us-east-1.amazonaws.com/000000000000/orders"

type MockSQSClient struct {
	mock.Mock
}

func (m *MockSQSClient) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.SendMessageOutput), args.Error(1)
}

func (m *MockSQSClient) SendMessageBatch(ctx context.Context, params *sqs.SendMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.SendMessageBatchOutput), args.Error(1)
}

func (m *MockSQSClient) GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.GetQueueAttributesOutput), args.Error(1)
}

func TestQueueSend(t *testing.T) {
	client := new(MockSQSClient)
	q := New(client, queueURL)

	client.On("SendMessage", mock.Anything, mock.MatchedBy(func(input *sqs.SendMessageInput) bool {
		attr, ok := input.MessageAttributes["source"]
		return aws.ToString(input.QueueUrl) == queueURL &&
			aws.ToString(input.MessageBody) == "payload" &&
			input.DelaySeconds == 0 &&
			ok && aws.ToString(attr.StringValue) == "orders-api"
	})).Return(&sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil)

	id, err := q.Send(context.Background(), "payload", map[string]string{"source": "orders-api"})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
}

func TestQueueSendDelayed(t *testing.T) {
	client := new(MockSQSClient)
	q := New(client, queueURL)

	client.On("SendMessage", mock.Anything, mock.MatchedBy(func(input *sqs.SendMessageInput) bool {
		return input.DelaySeconds == 90
	})).Return(&sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil)

	_, err := q.SendDelayed(context.Background(), "payload", nil, 90*time.Second)
	assert.NoError(t, err)
}

func TestQueueSendError(t *testing.T) {
	client := new(MockSQSClient)
	q := New(client, queueURL)

	client.On("SendMessage", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))

	_, err := q.Send(context.Background(), "payload", nil)
	assert.Error(t, err)
}

func TestQueueSendBatch(t *testing.T) {
	client := new(MockSQSClient)
	q := New(client, queueURL)

	var captured *sqs.SendMessageBatchInput
	out := &sqs.SendMessageBatchOutput{}
	client.On("SendMessageBatch", mock.Anything, mock.MatchedBy(func(input *sqs.SendMessageBatchInput) bool {
		return len(input.Entries) == 2 && aws.ToString(input.QueueUrl) == queueURL
	})).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*sqs.SendMessageBatchInput)
			// echo the first entry back as successful, fail the second
			out.Successful = []types.SendMessageBatchResultEntry{
				{Id: captured.Entries[0].Id, MessageId: aws.String("msg-a")},
			}
			out.Failed = []types.BatchResultErrorEntry{
				{Id: captured.Entries[1].Id, Code: aws.String("InternalError")},
			}
		}).
		Return(out, nil)

	entries := []BatchEntry{
		{Body: "one"},
		{Body: "two", Attributes: map[string]string{"k": "v"}},
	}

	result, err := q.SendBatch(context.Background(), entries)
	require.NoError(t, err)

	require.NotNil(t, captured)
	assert.Equal(t, "one", aws.ToString(captured.Entries[0].MessageBody))
	assert.Equal(t, "two", aws.ToString(captured.Entries[1].MessageBody))
	assert.NotEqual(t, aws.ToString(captured.Entries[0].Id), aws.ToString(captured.Entries[1].Id))

	assert.Equal(t, "msg-a", result.MessageIDs[0])
	assert.Equal(t, []int{1}, result.Failed)
}

func TestQueueSendBatchRejectsOversized(t *testing.T) {
	q := New(new(MockSQSClient), queueURL)

	entries := make([]BatchEntry, 11)
	_, err := q.SendBatch(context.Background(), entries)
	assert.Error(t, err)
}

func TestQueueSendBatchEmpty(t *testing.T) {
	q := New(new(MockSQSClient), queueURL)

	result, err := q.SendBatch(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, result.MessageIDs)
}

func TestQueueStats(t *testing.T) {
	client := new(MockSQSClient)
	q := New(client, queueURL)

	client.On("GetQueueAttributes", mock.Anything, mock.Anything).Return(&sqs.GetQueueAttributesOutput{
		Attributes: map[string]string{
			string(types.QueueAttributeNameApproximateNumberOfMessages):           "12",
			string(types.QueueAttributeNameApproximateNumberOfMessagesNotVisible): "3",
			string(types.QueueAttributeNameApproximateNumberOfMessagesDelayed):    "1",
		},
	}, nil)

	stats, err := q.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Available: 12, InFlight: 3, Delayed: 1}, stats)
}

package snspublisher

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const topicARN = "arn:aws:sns:us-east-1:000000000000:orders"

type MockSNSClient struct {
	mock.Mock
}

func (m *MockSNSClient) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sns.PublishOutput), args.Error(1)
}

func TestPublish(t *testing.T) {
	client := new(MockSNSClient)
	p := New(client, topicARN)

	client.On("Publish", mock.Anything, mock.MatchedBy(func(input *sns.PublishInput) bool {
		attr, ok := input.MessageAttributes["source"]
		return aws.ToString(input.TopicArn) == topicARN &&
			aws.ToString(input.Subject) == "order.created" &&
			aws.ToString(input.Message) == "payload" &&
			ok && aws.ToString(attr.StringValue) == "orders-api" &&
			input.MessageGroupId == nil &&
			input.MessageDeduplicationId == nil
	})).Return(&sns.PublishOutput{MessageId: aws.String("msg-1")}, nil)

	id, err := p.Publish(context.Background(), "order.created", "payload", map[string]string{"source": "orders-api"})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
}

func TestPublishFifoTopic(t *testing.T) {
	client := new(MockSNSClient)
	p := New(client, topicARN+".fifo", WithMessageGroup("orders"))

	client.On("Publish", mock.Anything, mock.MatchedBy(func(input *sns.PublishInput) bool {
		return aws.ToString(input.MessageGroupId) == "orders" &&
			aws.ToString(input.MessageDeduplicationId) != ""
	})).Return(&sns.PublishOutput{MessageId: aws.String("msg-1")}, nil)

	_, err := p.Publish(context.Background(), "", "payload", nil)
	assert.NoError(t, err)
}

func TestPublishError(t *testing.T) {
	client := new(MockSNSClient)
	p := New(client, topicARN)

	client.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("topic gone"))

	_, err := p.Publish(context.Background(), "", "payload", nil)
	assert.Error(t, err)
}

func TestPublishJSON(t *testing.T) {
	client := new(MockSNSClient)
	p := New(client, topicARN)

	client.On("Publish", mock.Anything, mock.MatchedBy(func(input *sns.PublishInput) bool {
		return aws.ToString(input.Message) == `{"order_id":"42"}`
	})).Return(&sns.PublishOutput{MessageId: aws.String("msg-1")}, nil)

	_, err := p.PublishJSON(context.Background(), "", map[string]string{"order_id": "42"}, nil)
	assert.NoError(t, err)
}

func TestPublishJSONMarshalError(t *testing.T) {
	p := New(new(MockSNSClient), topicARN)

	_, err := p.PublishJSON(context.Background(), "", func() {}, nil)
	assert.Error(t, err)
}

package sqslistener

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Transport is the queue the container consumes from. The container never
// implements queue semantics itself; visibility timeouts, redelivery and
// ordering are all the transport's concern.
type Transport interface {
	// Receive long-polls for up to maxMessages, waiting at most wait.
	// An empty result is not an error.
	Receive(ctx context.Context, maxMessages int, wait time.Duration) ([]Message, error)

	// Delete permanently removes a message by its receipt handle.
	Delete(ctx context.Context, receiptHandle string) error

	// ChangeVisibility resets how long a message stays hidden.
	ChangeVisibility(ctx context.Context, receiptHandle string, timeout time.Duration) error

	// Send publishes a message to destination, returning the new message id.
	// The container uses this for dead-lettering only.
	Send(ctx context.Context, destination string, body string, attributes map[string]string) (string, error)
}

// SQSAPI is the slice of the SQS client the transport needs. Declared here so
// tests can substitute a mock, the real *sqs.Client satisfies it.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSTransport adapts an SQS client to the Transport interface for a single
// source queue.
type SQSTransport struct {
	client            SQSAPI
	queueURL          string
	visibilityTimeout time.Duration
}

// NewSQSTransport wraps client for queueURL. visibilityTimeout is applied to
// every receive call; it must exceed the expected handler runtime.
func NewSQSTransport(client SQSAPI, queueURL string, visibilityTimeout time.Duration) *SQSTransport {
	return &SQSTransport{
		client:            client,
		queueURL:          queueURL,
		visibilityTimeout: visibilityTimeout,
	}
}

func (t *SQSTransport) Receive(ctx context.Context, maxMessages int, wait time.Duration) ([]Message, error) {
	out, err := t.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(t.queueURL),
		MaxNumberOfMessages:   int32(maxMessages),
		WaitTimeSeconds:       int32(wait / time.Second),
		VisibilityTimeout:     int32(t.visibilityTimeout / time.Second),
		MessageAttributeNames: []string{"All"},
		AttributeNames: []types.QueueAttributeName{
			types.QueueAttributeName(types.MessageSystemAttributeNameApproximateReceiveCount),
		},
	})
	if err != nil {
		return nil, &TransportError{Op: "receive", Err: err}
	}

	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, fromSQSMessage(m))
	}
	return msgs, nil
}

func (t *SQSTransport) Delete(ctx context.Context, receiptHandle string) error {
	_, err := t.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(t.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return &TransportError{Op: "delete", Err: err}
	}
	return nil
}

func (t *SQSTransport) ChangeVisibility(ctx context.Context, receiptHandle string, timeout time.Duration) error {
	_, err := t.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(t.queueURL),
		ReceiptHandle:     aws.String(receiptHandle),
		VisibilityTimeout: int32(timeout / time.Second),
	})
	if err != nil {
		return &TransportError{Op: "change-visibility", Err: err}
	}
	return nil
}

func (t *SQSTransport) Send(ctx context.Context, destination string, body string, attributes map[string]string) (string, error) {
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(destination),
		MessageBody: aws.String(body),
	}
	if len(attributes) > 0 {
		input.MessageAttributes = make(map[string]types.MessageAttributeValue, len(attributes))
		for k, v := range attributes {
			input.MessageAttributes[k] = types.MessageAttributeValue{
				DataType:    aws.String("String"),
				StringValue: aws.String(v),
			}
		}
	}

	out, err := t.client.SendMessage(ctx, input)
	if err != nil {
		return "", &TransportError{Op: "send", Err: err}
	}
	return aws.ToString(out.MessageId), nil
}

func fromSQSMessage(m types.Message) Message {
	msg := Message{
		ID:            aws.ToString(m.MessageId),
		ReceiptHandle: aws.ToString(m.ReceiptHandle),
		Body:          aws.ToString(m.Body),
		Attributes:    make(map[string]string, len(m.MessageAttributes)),
	}
	for k, v := range m.MessageAttributes {
		msg.Attributes[k] = aws.ToString(v.StringValue)
	}
	// SQS reports the current delivery in ApproximateReceiveCount, so the
	// first delivery arrives as 1. ReceiveCount holds prior deliveries.
	if raw, ok := m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]; ok {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			msg.ReceiveCount = n - 1
		}
	}
	return msg
}

// Package sqsqueue is the producer-side facade over an SQS queue: typed send
// operations and queue statistics. Consumption lives in sqslistener.
package sqsqueue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
)

// maxBatchSize is the SQS limit on entries per batch call.
const maxBatchSize = 10

// SQSAPI is the slice of the SQS client the queue needs.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	SendMessageBatch(ctx context.Context, params *sqs.SendMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// Queue sends messages to a single SQS queue.
type Queue struct {
	client   SQSAPI
	queueURL string
}

// New wraps client for queueURL.
func New(client SQSAPI, queueURL string) *Queue {
	return &Queue{client: client, queueURL: queueURL}
}

// URL returns the queue URL this facade sends to.
func (q *Queue) URL() string { return q.queueURL }

// Send publishes body with optional string attributes, returning the
// transport-assigned message id.
func (q *Queue) Send(ctx context.Context, body string, attributes map[string]string) (string, error) {
	return q.send(ctx, body, attributes, 0)
}

// SendDelayed publishes body with a delivery delay of up to 15 minutes.
func (q *Queue) SendDelayed(ctx context.Context, body string, attributes map[string]string, delay time.Duration) (string, error) {
	return q.send(ctx, body, attributes, delay)
}

func (q *Queue) send(ctx context.Context, body string, attributes map[string]string, delay time.Duration) (string, error) {
	input := &sqs.SendMessageInput{
		QueueUrl:          aws.String(q.queueURL),
		MessageBody:       aws.String(body),
		MessageAttributes: toMessageAttributes(attributes),
	}
	if delay > 0 {
		input.DelaySeconds = int32(delay / time.Second)
	}

	out, err := q.client.SendMessage(ctx, input)
	if err != nil {
		return "", fmt.Errorf("sqsqueue: send: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

// BatchEntry is one message in a batch send.
type BatchEntry struct {
	Body       string
	Attributes map[string]string
}

// BatchResult reports the outcome of a batch send. Failed entries are
// indexed into the original slice.
type BatchResult struct {
	MessageIDs []string
	Failed     []int
}

// SendBatch publishes up to 10 entries in one call. Oversized batches are
// rejected rather than split so callers stay in control of chunking.
func (q *Queue) SendBatch(ctx context.Context, entries []BatchEntry) (BatchResult, error) {
	if len(entries) == 0 {
		return BatchResult{}, nil
	}
	if len(entries) > maxBatchSize {
		return BatchResult{}, fmt.Errorf("sqsqueue: batch of %d exceeds the limit of %d", len(entries), maxBatchSize)
	}

	batch := make([]types.SendMessageBatchRequestEntry, 0, len(entries))
	ids := make(map[string]int, len(entries))
	for i, e := range entries {
		entryID := uuid.NewString()
		ids[entryID] = i
		batch = append(batch, types.SendMessageBatchRequestEntry{
			Id:                aws.String(entryID),
			MessageBody:       aws.String(e.Body),
			MessageAttributes: toMessageAttributes(e.Attributes),
		})
	}

	out, err := q.client.SendMessageBatch(ctx, &sqs.SendMessageBatchInput{
		QueueUrl: aws.String(q.queueURL),
		Entries:  batch,
	})
	if err != nil {
		return BatchResult{}, fmt.Errorf("sqsqueue: send batch: %w", err)
	}

	result := BatchResult{MessageIDs: make([]string, len(entries))}
	for _, ok := range out.Successful {
		result.MessageIDs[ids[aws.ToString(ok.Id)]] = aws.ToString(ok.MessageId)
	}
	for _, failed := range out.Failed {
		result.Failed = append(result.Failed, ids[aws.ToString(failed.Id)])
	}
	return result, nil
}

// Stats is an approximate view of queue depth.
type Stats struct {
	Available int
	InFlight  int
	Delayed   int
}

// Stats fetches the approximate message counts for the queue.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	out, err := q.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl: aws.String(q.queueURL),
		AttributeNames: []types.QueueAttributeName{
			types.QueueAttributeNameApproximateNumberOfMessages,
			types.QueueAttributeNameApproximateNumberOfMessagesNotVisible,
			types.QueueAttributeNameApproximateNumberOfMessagesDelayed,
		},
	})
	if err != nil {
		return Stats{}, fmt.Errorf("sqsqueue: get queue attributes: %w", err)
	}

	return Stats{
		Available: atoi(out.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessages)]),
		InFlight:  atoi(out.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessagesNotVisible)]),
		Delayed:   atoi(out.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessagesDelayed)]),
	}, nil
}

func toMessageAttributes(attributes map[string]string) map[string]types.MessageAttributeValue {
	if len(attributes) == 0 {
		return nil
	}
	out := make(map[string]types.MessageAttributeValue, len(attributes))
	for k, v := range attributes {
		out[k] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(v),
		}
	}
	return out
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// Package snspublisher is a thin pub/sub facade over SNS.
package snspublisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"
)

// SNSAPI is the slice of the SNS client the publisher needs.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Publisher publishes messages to a single SNS topic. FIFO topics get a
// generated deduplication id and a fixed message group unless the caller
// supplies their own via WithMessageGroup.
type Publisher struct {
	client       SNSAPI
	topicARN     string
	messageGroup string
}

// Option customizes a publisher.
type Option func(*Publisher)

// WithMessageGroup sets the message group id used for FIFO topics.
func WithMessageGroup(group string) Option {
	return func(p *Publisher) { p.messageGroup = group }
}

// New wraps client for topicARN.
func New(client SNSAPI, topicARN string, opts ...Option) *Publisher {
	p := &Publisher{client: client, topicARN: topicARN, messageGroup: "default"}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish sends body with an optional subject and string attributes,
// returning the published message id.
func (p *Publisher) Publish(ctx context.Context, subject, body string, attributes map[string]string) (string, error) {
	input := &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(body),
	}
	if subject != "" {
		input.Subject = aws.String(subject)
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
	if strings.HasSuffix(p.topicARN, ".fifo") {
		input.MessageGroupId = aws.String(p.messageGroup)
		input.MessageDeduplicationId = aws.String(uuid.NewString())
	}

	out, err := p.client.Publish(ctx, input)
	if err != nil {
		return "", fmt.Errorf("snspublisher: publish: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

// PublishJSON marshals v and publishes it as the message body.
func (p *Publisher) PublishJSON(ctx context.Context, subject string, v any, attributes map[string]string) (string, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("snspublisher: marshal: %w", err)
	}
	return p.Publish(ctx, subject, string(body), attributes)
}

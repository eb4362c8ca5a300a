package sqslistener

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Attributes stamped onto dead-lettered messages alongside the originals.
const (
	attrOriginalMessageID = "OriginalMessageId"
	attrReceiveCount      = "OriginalReceiveCount"
	attrFailedAt          = "FailedAt"
)

// DeadLetterRouter copies permanently-failing messages to a secondary
// destination and removes them from the source queue.
type DeadLetterRouter struct {
	transport Transport
	target    string
	log       zerolog.Logger
	now       func() time.Time
}

// NewDeadLetterRouter routes to target via transport's send operation.
func NewDeadLetterRouter(transport Transport, target string, logger zerolog.Logger) *DeadLetterRouter {
	return &DeadLetterRouter{
		transport: transport,
		target:    target,
		log:       logger,
		now:       time.Now,
	}
}

// Route sends msg to the dead-letter destination, then deletes the original.
// If the send fails the original is left un-deleted so the queue redelivers
// it naturally; a *DeadLetterError is returned and no message is lost. A
// delete failure after a successful send is logged only: the message may be
// dead-lettered twice, which at-least-once delivery already permits.
func (r *DeadLetterRouter) Route(ctx context.Context, msg Message) error {
	attrs := make(map[string]string, len(msg.Attributes)+3)
	for k, v := range msg.Attributes {
		attrs[k] = v
	}
	attrs[attrOriginalMessageID] = msg.ID
	attrs[attrReceiveCount] = strconv.Itoa(msg.ReceiveCount)
	attrs[attrFailedAt] = r.now().UTC().Format(time.RFC3339)

	if _, err := r.transport.Send(ctx, r.target, msg.Body, attrs); err != nil {
		return &DeadLetterError{MessageID: msg.ID, Err: err}
	}

	if err := r.transport.Delete(ctx, msg.ReceiptHandle); err != nil {
		r.log.Warn().
			Err(err).
			Str("message_id", msg.ID).
			Msg("Failed to delete message after dead-lettering, it may be routed again")
	}
	return nil
}

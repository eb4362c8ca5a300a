package sqslistener

import "context"

// Message is a single message pulled from the queue. It is handed to exactly
// one worker and never mutated after receipt.
type Message struct {
	// ID is the transport-assigned message id.
	ID string

	// ReceiptHandle is the acknowledgment token used for delete and
	// visibility-extension calls. It is only valid for the current delivery.
	ReceiptHandle string

	// Body is the raw message body.
	Body string

	// Attributes holds the message attributes as plain strings.
	Attributes map[string]string

	// ReceiveCount is the number of times this message was delivered before
	// the current delivery, as reported by the transport. First delivery is 0.
	ReceiveCount int
}

// Handler processes a single message. Returning nil acknowledges the message
// (it is deleted from the queue); returning an error hands it to the retry
// policy. Handlers are invoked concurrently and must be safe to run in
// parallel with each other.
type Handler func(ctx context.Context, msg Message) error

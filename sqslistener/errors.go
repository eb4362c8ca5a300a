package sqslistener

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned when Start or Stop is called in a state
	// that does not permit the transition.
	ErrInvalidState = errors.New("sqslistener: invalid container state")

	// ErrShutdownTimeout is returned when in-flight work did not drain
	// within the stop timeout. Remaining tasks are abandoned.
	ErrShutdownTimeout = errors.New("sqslistener: shutdown timed out")

	// ErrExecutorClosed is returned by Submit after an executor has been
	// shut down.
	ErrExecutorClosed = errors.New("sqslistener: executor closed")
)

// ConfigError reports an invalid configuration value. It is fatal: a
// container never starts with a bad config.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("sqslistener: invalid config field %s: %s", e.Field, e.Reason)
}

// TransportError wraps a failure of a transport operation. These are treated
// as transient: logged and retried, never fatal to the container.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("sqslistener: transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DeadLetterError reports a failure to route a message to the dead-letter
// destination. The original message is left un-deleted so the queue
// redelivers it naturally.
type DeadLetterError struct {
	MessageID string
	Err       error
}

func (e *DeadLetterError) Error() string {
	return fmt.Sprintf("sqslistener: dead-letter routing failed for message %s: %v", e.MessageID, e.Err)
}

func (e *DeadLetterError) Unwrap() error { return e.Err }

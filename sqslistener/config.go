package sqslistener

import "time"

// ExecutorType selects the execution model for poller and worker tasks.
type ExecutorType string

const (
	// ExecutorPlatform runs tasks on a fixed-size pool of goroutines fed by
	// a bounded queue.
	ExecutorPlatform ExecutorType = "platform"

	// ExecutorLightweight spawns one goroutine per task, bounded by a
	// semaphore. Suited to I/O-bound handlers.
	ExecutorLightweight ExecutorType = "lightweight"

	// ExecutorAuto picks lightweight when the provider supports it and
	// falls back to platform otherwise.
	ExecutorAuto ExecutorType = "auto"
)

const (
	defaultConcurrency        = 10
	defaultMaxMessagesPerPoll = 10
	defaultWaitTime           = 20 * time.Second
	defaultVisibilityTimeout  = 30 * time.Second
	defaultMaxRetries         = 3
	defaultPollBackoff        = 5 * time.Second

	// SQS caps a single receive call at 10 messages and long polling at 20s.
	sqsMaxMessagesPerPoll = 10
	sqsMaxWaitTime        = 20 * time.Second
)

// Config holds all tunables for a listener container. Zero values are
// replaced by defaults in Validate; the value is treated as immutable once a
// container has been constructed from it.
type Config struct {
	// QueueURL is the source queue.
	QueueURL string

	// Concurrency is the worker-pool size. It bounds how many messages are
	// in flight (received but not yet acknowledged) at once.
	Concurrency int

	// MaxMessagesPerPoll is the upper bound per receive call (1..10).
	MaxMessagesPerPoll int

	// WaitTime is the long-poll duration (0..20s).
	WaitTime time.Duration

	// VisibilityTimeout is how long a received message stays hidden from
	// other consumers. Must exceed the expected handler runtime.
	VisibilityTimeout time.Duration

	// MaxRetries is the retry budget before a failing message is
	// dead-lettered. Zero means every failure dead-letters immediately.
	MaxRetries int

	// DeadLetterTarget is the queue URL that permanently-failing messages
	// are routed to. Required: a missing target is caught at construction,
	// not at failure time.
	DeadLetterTarget string

	// Executor selects the execution model. Defaults to ExecutorAuto.
	Executor ExecutorType

	// PollBackoff is the fixed delay before re-polling after a transport
	// error. Empty results are not errors and re-poll immediately.
	PollBackoff time.Duration
}

// Validate applies defaults and checks every field, returning a *ConfigError
// for the first invalid one. maxRetries < 0 and a missing dead-letter target
// are rejected here so misconfiguration surfaces at start, not when a
// message finally fails.
func (c *Config) Validate() error {
	if c.QueueURL == "" {
		return &ConfigError{Field: "QueueURL", Reason: "must not be empty"}
	}
	if c.Concurrency == 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.Concurrency < 0 {
		return &ConfigError{Field: "Concurrency", Reason: "must be positive"}
	}
	if c.MaxMessagesPerPoll == 0 {
		c.MaxMessagesPerPoll = defaultMaxMessagesPerPoll
	}
	if c.MaxMessagesPerPoll < 1 || c.MaxMessagesPerPoll > sqsMaxMessagesPerPoll {
		return &ConfigError{Field: "MaxMessagesPerPoll", Reason: "must be between 1 and 10"}
	}
	if c.WaitTime == 0 {
		c.WaitTime = defaultWaitTime
	}
	if c.WaitTime < 0 || c.WaitTime > sqsMaxWaitTime {
		return &ConfigError{Field: "WaitTime", Reason: "must be between 0s and 20s"}
	}
	if c.VisibilityTimeout == 0 {
		c.VisibilityTimeout = defaultVisibilityTimeout
	}
	if c.VisibilityTimeout < 0 {
		return &ConfigError{Field: "VisibilityTimeout", Reason: "must not be negative"}
	}
	if c.MaxRetries < 0 {
		return &ConfigError{Field: "MaxRetries", Reason: "must not be negative"}
	}
	if c.DeadLetterTarget == "" {
		return &ConfigError{Field: "DeadLetterTarget", Reason: "must not be empty"}
	}
	switch c.Executor {
	case "":
		c.Executor = ExecutorAuto
	case ExecutorPlatform, ExecutorLightweight, ExecutorAuto:
	default:
		return &ConfigError{Field: "Executor", Reason: "must be platform, lightweight or auto"}
	}
	if c.PollBackoff == 0 {
		c.PollBackoff = defaultPollBackoff
	}
	if c.PollBackoff < 0 {
		return &ConfigError{Field: "PollBackoff", Reason: "must not be negative"}
	}
	return nil
}

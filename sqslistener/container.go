// Package sqslistener consumes messages from an SQS queue. A listener
// container long-polls the queue, dispatches messages to a bounded worker
// pool, deletes on success and applies a retry/dead-letter policy on
// failure. One container owns its executors and metrics; multiple containers
// in a process do not share state.
package sqslistener

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	dedupCleanupInterval = 1 * time.Hour
	dedupRetention       = 7 * 24 * time.Hour
)

// ListenerContainer pulls messages from a transport and runs a handler for
// each under a bounded concurrency model. Lifecycle: Created -> Start ->
// Running -> Stop -> Stopping -> Stopped. A failed message can never stop
// the container or affect other in-flight messages; only configuration
// errors at construction or start are fatal.
type ListenerContainer struct {
	name      string
	cfg       Config
	transport Transport
	handler   Handler

	policy   RetryPolicy
	router   *DeadLetterRouter
	provider ExecutorProvider
	metrics  *Collector
	dedup    DeduplicationStore
	log      zerolog.Logger

	state   atomic.Int32
	poller  Executor
	workers Executor

	// pollCtx stops the poll loop on Stop; taskCtx is cancelled only after
	// the drain timeout, so in-flight handlers are not interrupted during a
	// graceful stop.
	pollCtx    context.Context
	pollCancel context.CancelFunc
	taskCtx    context.Context
	taskCancel context.CancelFunc
}

// Option customizes a container beyond its Config.
type Option func(*ListenerContainer)

// WithLogger replaces the default (global) logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *ListenerContainer) { c.log = logger }
}

// WithRetryPolicy replaces the default max-attempts policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *ListenerContainer) { c.policy = p }
}

// WithExecutorProvider replaces the default provider.
func WithExecutorProvider(p ExecutorProvider) Option {
	return func(c *ListenerContainer) { c.provider = p }
}

// WithCollector records metrics into an externally-owned collector, e.g. one
// obtained from a Registry shared by several containers.
func WithCollector(m *Collector) Option {
	return func(c *ListenerContainer) { c.metrics = m }
}

// WithDeduplicationStore enables skipping of already-processed redeliveries.
func WithDeduplicationStore(s DeduplicationStore) Option {
	return func(c *ListenerContainer) { c.dedup = s }
}

// NewListenerContainer validates cfg and builds a container in the Created
// state. The returned error is a *ConfigError for any invalid setting.
func NewListenerContainer(name string, cfg Config, transport Transport, handler Handler, opts ...Option) (*ListenerContainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, &ConfigError{Field: "Transport", Reason: "must not be nil"}
	}
	if handler == nil {
		return nil, &ConfigError{Field: "Handler", Reason: "must not be nil"}
	}

	c := &ListenerContainer{
		name:      name,
		cfg:       cfg,
		transport: transport,
		handler:   handler,
		log:       log.With().Str("container", name).Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.policy == nil {
		c.policy = MaxAttemptsPolicy{MaxRetries: cfg.MaxRetries}
	}
	if c.provider == nil {
		c.provider = NewExecutorProvider(cfg.Executor, c.log)
	}
	if c.metrics == nil {
		c.metrics = NewCollector(name)
	}
	c.router = NewDeadLetterRouter(transport, cfg.DeadLetterTarget, c.log)

	c.pollCtx, c.pollCancel = context.WithCancel(context.Background())
	c.taskCtx, c.taskCancel = context.WithCancel(context.Background())
	return c, nil
}

// Name returns the container name used for metrics namespacing.
func (c *ListenerContainer) Name() string { return c.name }

// State returns the current lifecycle state.
func (c *ListenerContainer) State() State {
	return State(c.state.Load())
}

// MetricsSnapshot returns a point-in-time copy of the container's metrics.
func (c *ListenerContainer) MetricsSnapshot() Snapshot {
	return c.metrics.Snapshot()
}

// Start transitions Created -> Running and begins polling. Calling Start on
// a container that is already Running is a no-op; calling it on a stopped
// container returns ErrInvalidState. Executor creation failures surface as
// configuration errors and leave the container startable.
func (c *ListenerContainer) Start() error {
	switch c.State() {
	case StateRunning:
		return nil
	case StateStopping, StateStopped:
		return fmt.Errorf("%w: cannot start from %s", ErrInvalidState, c.State())
	}

	poller, err := c.provider.Poller()
	if err != nil {
		return &ConfigError{Field: "Executor", Reason: err.Error()}
	}
	workers, err := c.provider.Workers(c.cfg.Concurrency)
	if err != nil {
		return &ConfigError{Field: "Executor", Reason: err.Error()}
	}

	if !c.state.CompareAndSwap(int32(StateCreated), int32(StateRunning)) {
		// lost a concurrent Start; release the executors we just built
		_ = poller.Shutdown(0)
		_ = workers.Shutdown(0)
		if c.State() == StateRunning {
			return nil
		}
		return fmt.Errorf("%w: cannot start from %s", ErrInvalidState, c.State())
	}
	c.poller = poller
	c.workers = workers
	c.metrics.RecordStateTransition(StateCreated, StateRunning)

	c.log.Info().
		Str("queue_url", c.cfg.QueueURL).
		Int("concurrency", c.cfg.Concurrency).
		Str("executor", string(c.cfg.Executor)).
		Msg("Listener container started")

	if c.dedup != nil {
		go c.cleanupDedupStore()
	}
	if err := c.poller.Submit(c.pollLoop); err != nil {
		return &ConfigError{Field: "Executor", Reason: err.Error()}
	}
	return nil
}

// Stop transitions Running -> Stopping, stops issuing polls, waits up to
// timeout for in-flight work to drain, then cancels whatever remains and
// transitions to Stopped. It always returns within roughly the timeout;
// ErrShutdownTimeout reports an incomplete drain.
func (c *ListenerContainer) Stop(timeout time.Duration) error {
	if !c.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return fmt.Errorf("%w: cannot stop from %s", ErrInvalidState, c.State())
	}
	c.metrics.RecordStateTransition(StateRunning, StateStopping)
	c.log.Info().Dur("timeout", timeout).Msg("Stopping listener container")

	c.pollCancel()
	deadline := time.Now().Add(timeout)

	var timedOut bool
	if err := c.workers.Shutdown(time.Until(deadline)); err != nil {
		timedOut = true
		c.log.Warn().Err(err).Msg("In-flight handlers exceeded drain timeout, cancelling")
		c.taskCancel()
	}
	remaining := time.Until(deadline)
	if remaining < 0 {
		remaining = 0
	}
	if err := c.poller.Shutdown(remaining); err != nil {
		timedOut = true
	}
	c.taskCancel()

	c.state.Store(int32(StateStopped))
	c.metrics.RecordStateTransition(StateStopping, StateStopped)
	c.log.Info().Msg("Listener container stopped")

	if timedOut {
		return ErrShutdownTimeout
	}
	return nil
}

// pollLoop runs on the poll executor until the container stops. Empty
// receives re-poll immediately (long polling provides the pacing); transport
// errors back off for a fixed interval and never stop the loop.
func (c *ListenerContainer) pollLoop() {
	for {
		select {
		case <-c.pollCtx.Done():
			return
		default:
		}

		msgs, err := c.transport.Receive(c.pollCtx, c.cfg.MaxMessagesPerPoll, c.cfg.WaitTime)
		if err != nil {
			if c.pollCtx.Err() != nil {
				return
			}
			c.log.Error().Err(err).Msg("Failed to receive messages, backing off")
			select {
			case <-time.After(c.cfg.PollBackoff):
			case <-c.pollCtx.Done():
				return
			}
			continue
		}

		for i := range msgs {
			msg := msgs[i]
			// Submit blocks while the worker pool is saturated, which in
			// turn holds off the next receive call. That is the only
			// backpressure mechanism: at most Concurrency messages are in
			// flight plus one received batch waiting here.
			if err := c.workers.Submit(func() { c.process(msg) }); err != nil {
				return
			}
		}
	}
}

// process runs on a worker. Nothing that happens in here may propagate out:
// handler errors go through the retry policy, panics are recovered, and
// transport failures on the acknowledgment path are logged and resolved by
// redelivery.
func (c *ListenerContainer) process(msg Message) {
	if c.dedup != nil {
		processed, err := c.dedup.IsProcessed(c.taskCtx, msg.ID)
		if err != nil {
			c.log.Error().Err(err).Str("message_id", msg.ID).Msg("Deduplication check failed")
		} else if processed {
			c.log.Info().Str("message_id", msg.ID).Msg("Duplicate message detected, skipping")
			c.deleteMessage(msg)
			return
		}
	}

	start := time.Now()
	err := c.invokeHandler(msg)
	elapsed := time.Since(start)

	if err == nil {
		if c.dedup != nil {
			if derr := c.dedup.MarkProcessed(c.taskCtx, msg.ID); derr != nil {
				c.log.Error().Err(derr).Str("message_id", msg.ID).Msg("Failed to mark message as processed")
			}
		}
		c.deleteMessage(msg)
		c.metrics.RecordSuccess(elapsed)
		c.log.Debug().
			Str("message_id", msg.ID).
			Dur("duration", elapsed).
			Msg("Message processed")
		return
	}

	c.handleFailure(msg, err, elapsed)
}

func (c *ListenerContainer) invokeHandler(msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return c.handler(c.taskCtx, msg)
}

func (c *ListenerContainer) handleFailure(msg Message, cause error, elapsed time.Duration) {
	decision := c.policy.Decide(msg.ReceiveCount)

	switch decision {
	case DecisionRedeliver:
		// deliberate no-op: the message becomes visible again once its
		// visibility timeout elapses, the queue re-exposes it on its own
		c.metrics.RecordFailure(elapsed)
		c.log.Warn().
			Err(cause).
			Str("message_id", msg.ID).
			Int("receive_count", msg.ReceiveCount).
			Msg("Handler failed, message will be redelivered")

	case DecisionDeadLetter:
		if err := c.router.Route(c.taskCtx, msg); err != nil {
			// original left un-deleted so it retries naturally
			c.metrics.RecordDeadLetterFailure()
			c.metrics.RecordFailure(elapsed)
			c.log.Error().
				Err(err).
				Str("message_id", msg.ID).
				Msg("Dead-letter routing failed, message left on queue")
			return
		}
		c.metrics.RecordDeadLetter()
		c.metrics.RecordFailure(elapsed)
		c.log.Warn().
			Err(cause).
			Str("message_id", msg.ID).
			Int("receive_count", msg.ReceiveCount).
			Str("target", c.cfg.DeadLetterTarget).
			Msg("Retries exhausted, message dead-lettered")
	}
}

func (c *ListenerContainer) deleteMessage(msg Message) {
	if err := c.transport.Delete(c.taskCtx, msg.ReceiptHandle); err != nil {
		// the queue will redeliver; at-least-once permits this
		c.log.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to delete message")
	}
}

func (c *ListenerContainer) cleanupDedupStore() {
	ticker := time.NewTicker(dedupCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.dedup.Cleanup(c.taskCtx, dedupRetention); err != nil {
				c.log.Error().Err(err).Msg("Failed to clean up deduplication store")
			}
		case <-c.pollCtx.Done():
			return
		}
	}
}

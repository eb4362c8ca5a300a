package sqslistener

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Strategy is a concrete execution model offered by an ExecutorProvider.
type Strategy string

const (
	StrategyPlatform    Strategy = "platform"
	StrategyLightweight Strategy = "lightweight"
)

// Executor runs submitted tasks. Submit blocks while the executor is
// saturated; that blocking is the container's backpressure mechanism.
// Shutdown drains gracefully up to the timeout, then abandons remaining
// tasks and returns ErrShutdownTimeout. It never blocks past its timeout.
type Executor interface {
	Submit(task func()) error
	Shutdown(timeout time.Duration) error
}

// ExecutorProvider supplies the two execution contexts a container needs:
// one for the poll loop and one for message handlers.
type ExecutorProvider interface {
	Poller() (Executor, error)
	Workers(concurrency int) (Executor, error)
	Supports(s Strategy) bool
}

// DefaultProvider resolves the configured executor type against the
// capabilities it was built with. If lightweight execution is requested but
// unsupported it transparently falls back to platform and logs the decision;
// callers never see the difference through the Executor interface.
type DefaultProvider struct {
	resolved      Strategy
	lightweightOK bool
	log           zerolog.Logger
}

// NewExecutorProvider builds a provider for the requested executor type.
func NewExecutorProvider(t ExecutorType, logger zerolog.Logger) *DefaultProvider {
	return newProviderWithCapability(t, true, logger)
}

func newProviderWithCapability(t ExecutorType, lightweightOK bool, logger zerolog.Logger) *DefaultProvider {
	p := &DefaultProvider{lightweightOK: lightweightOK, log: logger}
	switch t {
	case ExecutorPlatform:
		p.resolved = StrategyPlatform
	case ExecutorLightweight, ExecutorAuto:
		if p.Supports(StrategyLightweight) {
			p.resolved = StrategyLightweight
			break
		}
		p.resolved = StrategyPlatform
		if t == ExecutorLightweight {
			p.log.Info().Msg("Lightweight executors unavailable, falling back to platform")
		}
	default:
		p.resolved = StrategyPlatform
	}
	return p
}

// Supports reports whether the provider can build executors for s.
func (p *DefaultProvider) Supports(s Strategy) bool {
	switch s {
	case StrategyPlatform:
		return true
	case StrategyLightweight:
		return p.lightweightOK
	default:
		return false
	}
}

// Resolved returns the strategy the provider settled on.
func (p *DefaultProvider) Resolved() Strategy {
	return p.resolved
}

// Poller returns a single-slot executor for the poll loop.
func (p *DefaultProvider) Poller() (Executor, error) {
	return p.build(1), nil
}

// Workers returns an executor bounded to concurrency simultaneous tasks.
func (p *DefaultProvider) Workers(concurrency int) (Executor, error) {
	return p.build(concurrency), nil
}

func (p *DefaultProvider) build(concurrency int) Executor {
	if p.resolved == StrategyLightweight {
		return newLightweightExecutor(concurrency)
	}
	return newPlatformExecutor(concurrency)
}

// platformExecutor is a fixed pool of goroutines fed by a bounded channel.
// Submit blocks once the queue is full.
type platformExecutor struct {
	tasks  chan func()
	quit   chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool
}

func newPlatformExecutor(workers int) *platformExecutor {
	e := &platformExecutor{
		tasks: make(chan func(), workers),
		quit:  make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}
	return e
}

func (e *platformExecutor) worker() {
	defer e.wg.Done()

	for {
		select {
		case task := <-e.tasks:
			task()
		case <-e.quit:
			// finish whatever is already queued, then exit
			for {
				select {
				case task := <-e.tasks:
					task()
				default:
					return
				}
			}
		}
	}
}

func (e *platformExecutor) Submit(task func()) error {
	if e.closed.Load() {
		return ErrExecutorClosed
	}
	select {
	case e.tasks <- task:
		return nil
	case <-e.quit:
		return ErrExecutorClosed
	}
}

func (e *platformExecutor) Shutdown(timeout time.Duration) error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(e.quit)

	if waitTimeout(&e.wg, timeout) {
		return nil
	}
	// drop queued tasks so workers exit as soon as their current task ends
	for {
		select {
		case <-e.tasks:
		default:
			return ErrShutdownTimeout
		}
	}
}

// lightweightExecutor spawns one goroutine per task, bounded by a semaphore.
// Submit blocks while all slots are taken.
type lightweightExecutor struct {
	slots  chan struct{}
	quit   chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool
}

func newLightweightExecutor(concurrency int) *lightweightExecutor {
	return &lightweightExecutor{
		slots: make(chan struct{}, concurrency),
		quit:  make(chan struct{}),
	}
}

func (e *lightweightExecutor) Submit(task func()) error {
	if e.closed.Load() {
		return ErrExecutorClosed
	}
	select {
	case e.slots <- struct{}{}:
	case <-e.quit:
		return ErrExecutorClosed
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() { <-e.slots }()
		task()
	}()
	return nil
}

func (e *lightweightExecutor) Shutdown(timeout time.Duration) error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(e.quit)

	if waitTimeout(&e.wg, timeout) {
		return nil
	}
	return ErrShutdownTimeout
}

// waitTimeout waits for wg up to d, reporting whether the wait completed.
func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

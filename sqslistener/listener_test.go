package sqslistener

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
)

// runs before all tests and configures the test environment
func TestMain(m *testing.M) {
	// we do not need logging during the tests
	zerolog.SetGlobalLevel(zerolog.Disabled)

	code := m.Run()

	os.Exit(code)
}

// MockTransport is a testify mock over the Transport interface, used where a
// test asserts on exact call shapes.
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Receive(ctx context.Context, maxMessages int, wait time.Duration) ([]Message, error) {
	args := m.Called(ctx, maxMessages, wait)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Message), args.Error(1)
}

func (m *MockTransport) Delete(ctx context.Context, receiptHandle string) error {
	args := m.Called(ctx, receiptHandle)
	return args.Error(0)
}

func (m *MockTransport) ChangeVisibility(ctx context.Context, receiptHandle string, timeout time.Duration) error {
	args := m.Called(ctx, receiptHandle, timeout)
	return args.Error(0)
}

func (m *MockTransport) Send(ctx context.Context, destination string, body string, attributes map[string]string) (string, error) {
	args := m.Called(ctx, destination, body, attributes)
	return args.String(0), args.Error(1)
}

type sentMessage struct {
	destination string
	body        string
	attributes  map[string]string
}

// fakeTransport hands out queued batches once each and then simulates an
// empty long poll. Deletes and sends are published on channels so tests can
// wait for them instead of sleeping.
type fakeTransport struct {
	mu      sync.Mutex
	batches [][]Message

	receiveErrs []error // returned before any batches, one per call
	sendErr     error

	deleted chan string
	sent    chan sentMessage
}

func newFakeTransport(batches ...[]Message) *fakeTransport {
	return &fakeTransport{
		batches: batches,
		deleted: make(chan string, 64),
		sent:    make(chan sentMessage, 64),
	}
}

func (t *fakeTransport) Receive(ctx context.Context, _ int, _ time.Duration) ([]Message, error) {
	t.mu.Lock()
	if len(t.receiveErrs) > 0 {
		err := t.receiveErrs[0]
		t.receiveErrs = t.receiveErrs[1:]
		t.mu.Unlock()
		return nil, err
	}
	if len(t.batches) > 0 {
		batch := t.batches[0]
		t.batches = t.batches[1:]
		t.mu.Unlock()
		return batch, nil
	}
	t.mu.Unlock()

	// nothing queued: behave like an empty long poll
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Millisecond):
		return nil, nil
	}
}

func (t *fakeTransport) Delete(_ context.Context, receiptHandle string) error {
	t.deleted <- receiptHandle
	return nil
}

func (t *fakeTransport) ChangeVisibility(context.Context, string, time.Duration) error {
	return nil
}

func (t *fakeTransport) Send(_ context.Context, destination, body string, attributes map[string]string) (string, error) {
	if t.sendErr != nil {
		return "", t.sendErr
	}
	t.sent <- sentMessage{destination: destination, body: body, attributes: attributes}
	return "dlq-msg-id", nil
}

// waitFor receives from ch or fails the test after timeout.
func waitFor[T any](t *testing.T, ch <-chan T, timeout time.Duration) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		t.Fatalf("timed out after %v waiting for event", timeout)
		var zero T
		return zero
	}
}

func testConfig() Config {
	return Config{
		QueueURL:         "https://sqs.us-east-1.amazonaws.com/000000000000/source",
		DeadLetterTarget: "https://sqs.us-east-1.amazonaws.com/000000000000/source-dlq",
		MaxRetries:       2,
		PollBackoff:      10 * time.Millisecond,
	}
}

package sqslistener

// RetryDecision is the outcome of consulting the retry policy for a failed
// message.
type RetryDecision int

const (
	// DecisionRedeliver leaves the message on the queue; it becomes visible
	// again once its visibility timeout elapses.
	DecisionRedeliver RetryDecision = iota

	// DecisionDeadLetter routes the message to the dead-letter destination
	// and removes it from the source queue.
	DecisionDeadLetter
)

func (d RetryDecision) String() string {
	switch d {
	case DecisionRedeliver:
		return "redeliver"
	case DecisionDeadLetter:
		return "dead-letter"
	default:
		return "unknown"
	}
}

// RetryPolicy decides what to do with a failed message given how many times
// it has already been delivered. Implementations must be pure: no side
// effects, no I/O.
type RetryPolicy interface {
	Decide(receiveCount int) RetryDecision
}

// MaxAttemptsPolicy redelivers until the receive count reaches MaxRetries,
// then dead-letters. MaxRetries of zero dead-letters every failure.
type MaxAttemptsPolicy struct {
	MaxRetries int
}

func (p MaxAttemptsPolicy) Decide(receiveCount int) RetryDecision {
	if receiveCount < p.MaxRetries {
		return DecisionRedeliver
	}
	return DecisionDeadLetter
}

package categorizer

// BreakerState is the state of a Breaker.
type BreakerState int

const (
	// BreakerClosed lets remote calls through.
	BreakerClosed BreakerState = iota
	// BreakerOpen bypasses the remote service for the rest of the run.
	BreakerOpen
)

func (s BreakerState) String() string {
	if s == BreakerOpen {
		return "open"
	}
	return "closed"
}

// Breaker trips once on quota exhaustion and stays open until a new Breaker is
// made for the next run. It is owned by a single orchestrator goroutine.
type Breaker struct {
	state     BreakerState
	trippedAt int
}

// NewBreaker returns a closed breaker.
func NewBreaker() *Breaker {
	return &Breaker{trippedAt: -1}
}

// Allow reports whether a remote call may be made.
func (b *Breaker) Allow() bool {
	return b.state == BreakerClosed
}

// Trip opens the breaker and records the batch that caused it. It reports
// whether this call changed the state.
func (b *Breaker) Trip(batch int) bool {
	if b.state == BreakerOpen {
		return false
	}
	b.state = BreakerOpen
	b.trippedAt = batch
	return true
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	return b.state
}

// TrippedAt returns the zero-based batch index that opened the breaker, or -1.
func (b *Breaker) TrippedAt() int {
	return b.trippedAt
}

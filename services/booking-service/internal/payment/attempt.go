package payment

import (
	"context"
	"sync"
)

// Attempt tracks one trip through the provider checkout. Terminal states are final;
// a retry starts a new Attempt.
type Attempt struct {
	Order    Order
	Checkout Checkout

	mu      sync.Mutex
	state   State
	outcome Outcome
	done    chan struct{}
}

func newAttempt(order Order) *Attempt {
	return &Attempt{Order: order, state: StateNotStarted, done: make(chan struct{})}
}

func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Attempt) advance(next State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.state.Terminal() {
		a.state = next
	}
}

// finish moves the attempt to the outcome's terminal state. Only the first call wins.
func (a *Attempt) finish(o Outcome) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Terminal() {
		return ErrAttemptClosed
	}
	a.state = o.State
	a.outcome = o
	close(a.done)
	return nil
}

// Wait blocks until the attempt resolves or ctx ends. An open checkout has no deadline of its own.
func (a *Attempt) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-a.done:
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Done is closed once the attempt reaches a terminal state.
func (a *Attempt) Done() <-chan struct{} { return a.done }

package flow

import (
	"sync"
	"time"

	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/payment"
)

type State string

const (
	StateSelection State = "selection"
	StatePayment   State = "payment"
	StateSuccess   State = "success"
	StateFailure   State = "failure"
)

// Session is one customer's walk through the booking flow. All controller operations on a
// session are serialized by its lock.
type Session struct {
	mu sync.Mutex

	token     string
	state     State
	record    model.BookingRecord
	order     *payment.Order
	attempt   *payment.Attempt
	reason    string
	message   string
	touchedAt time.Time

	notifications <-chan notify.Report
}

func NewSession() *Session {
	return &Session{state: StateSelection, touchedAt: time.Now()}
}

// View is a read-only snapshot of a session.
type View struct {
	Token     string            `json:"token,omitempty"`
	BookingID string            `json:"bookingId,omitempty"`
	State     State             `json:"state"`
	Status    model.Status      `json:"status,omitempty"`
	Service   string            `json:"service,omitempty"`
	Amount    int64             `json:"amount,omitempty"`
	PaidAt    *time.Time        `json:"paidAt,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Message   string            `json:"message,omitempty"`
	Checkout  *payment.Checkout `json:"checkout,omitempty"`
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	v := View{
		Token:     s.token,
		BookingID: s.record.BookingID,
		State:     s.state,
		Status:    s.record.Status,
		Service:   s.record.Service,
		Amount:    s.record.Amount,
		PaidAt:    s.record.PaidAt,
		Reason:    s.reason,
		Message:   s.message,
	}
	if s.attempt != nil && s.state == StatePayment && !s.attempt.State().Terminal() {
		co := s.attempt.Checkout
		v.Checkout = &co
	}
	return v
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Notifications yields the dispatch report of the successful payment, or nil before success.
func (s *Session) Notifications() <-chan notify.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notifications
}

// Sessions indexes live sessions by booking token.
type Sessions struct {
	mu    sync.Mutex
	limit int
	items map[string]*Session
}

func NewSessions(limit int) *Sessions {
	if limit <= 0 {
		limit = 10000
	}
	return &Sessions{limit: limit, items: map[string]*Session{}}
}

func (r *Sessions) Get(token string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[token]
	return s, ok
}

func (r *Sessions) Put(token string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[token] = s
	if len(r.items) > r.limit {
		r.evictLocked()
	}
}

// LoadOrStore returns the session already registered for token, or registers s and returns it.
func (r *Sessions) LoadOrStore(token string, s *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.items[token]; ok {
		return cur
	}
	r.items[token] = s
	if len(r.items) > r.limit {
		r.evictLocked()
	}
	return s
}

func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// evictLocked drops the least recently touched sessions until the registry is back under its limit.
// Evicted sessions can be rebuilt from the store.
func (r *Sessions) evictLocked() {
	for len(r.items) > r.limit {
		var oldestToken string
		var oldest time.Time
		for tok, s := range r.items {
			if !s.mu.TryLock() {
				continue
			}
			t := s.touchedAt
			s.mu.Unlock()
			if oldestToken == "" || t.Before(oldest) {
				oldestToken, oldest = tok, t
			}
		}
		if oldestToken == "" {
			return
		}
		delete(r.items, oldestToken)
	}
}

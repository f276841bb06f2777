package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/model"
)

const DefaultNamespace = "sevabook"

var (
	ErrNotFound          = errors.New("storage: booking not found")
	ErrInvalidTransition = errors.New("storage: invalid status transition")
)

// Retention bounds how many records are kept and for how long. Zero values disable a bound.
type Retention struct {
	MaxRecords int
	MaxAge     time.Duration
}

// Store is the booking record store. Persistence is best effort: read failures look like an
// empty store and write failures are logged while the caller still gets the attempted record.
// Records whose write failed are kept in process and retried with the next successful write.
type Store struct {
	backend   Backend
	logger    *slog.Logger
	retention Retention
	now       func() time.Time
	newToken  func() string

	mu      sync.Mutex
	unsaved map[string]model.BookingRecord
}

type StoreOption func(*Store)

func WithRetention(r Retention) StoreOption {
	return func(s *Store) { s.retention = r }
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func WithTokenGenerator(gen func() string) StoreOption {
	return func(s *Store) { s.newToken = gen }
}

func NewStore(backend Backend, logger *slog.Logger, opts ...StoreOption) *Store {
	s := &Store{
		backend:  backend,
		logger:   logger,
		now:      time.Now,
		newToken: newToken,
		unsaved:  map[string]model.BookingRecord{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newToken returns a UUIDv7: a millisecond timestamp followed by random bits.
func newToken() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Create stores a new payment_pending record and returns it.
func (s *Store) Create(ctx context.Context, in model.NewRecord) model.BookingRecord {
	now := s.now().UTC()
	rec := model.BookingRecord{
		Token:        s.newToken(),
		BookingID:    model.BookingIDFor(now),
		Status:       model.StatusPaymentPending,
		CreatedAt:    now,
		UpdatedAt:    now,
		Contact:      in.Contact,
		Service:      in.Service,
		ServiceLabel: in.ServiceLabel,
		Schedule:     in.Schedule,
		BirthDetails: in.BirthDetails,
		Amount:       in.Amount,
	}

	err := s.write(ctx, rec.Token, func(records map[string]model.BookingRecord) (model.BookingRecord, error) {
		if _, taken := records[rec.Token]; taken {
			return model.BookingRecord{}, fmt.Errorf("%w: token collision", ErrConflict)
		}
		return rec, nil
	})
	if err != nil {
		s.logger.Warn("booking persist failed", "token", rec.Token, "booking_id", rec.BookingID, "err", err)
		s.keepUnsaved(rec)
	}
	return rec
}

// GetByToken has no side effects.
func (s *Store) GetByToken(ctx context.Context, token string) (model.BookingRecord, bool) {
	if token == "" {
		return model.BookingRecord{}, false
	}
	records := s.load(ctx)
	rec, ok := records[token]
	return rec, ok
}

// Update shallow-merges patch into the record for token. It never creates a record.
func (s *Store) Update(ctx context.Context, token string, patch model.Patch) (model.BookingRecord, bool) {
	rec, err := s.modify(ctx, token, patch, false)
	if errors.Is(err, ErrNotFound) {
		return model.BookingRecord{}, false
	}
	return rec, true
}

// Transition is Update with the status transition table enforced.
func (s *Store) Transition(ctx context.Context, token string, patch model.Patch) (model.BookingRecord, error) {
	return s.modify(ctx, token, patch, true)
}

func (s *Store) modify(ctx context.Context, token string, patch model.Patch, checked bool) (model.BookingRecord, error) {
	var attempted model.BookingRecord
	apply := func(records map[string]model.BookingRecord) (model.BookingRecord, error) {
		cur, ok := records[token]
		if !ok {
			return model.BookingRecord{}, ErrNotFound
		}
		if checked && patch.Status != nil && !cur.Status.CanTransitionTo(*patch.Status) {
			return model.BookingRecord{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, *patch.Status)
		}
		next := patch.Apply(cur)
		next.UpdatedAt = s.now().UTC()
		attempted = next
		return next, nil
	}

	err := s.write(ctx, token, apply)
	switch {
	case err == nil:
		return attempted, nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidTransition):
		return model.BookingRecord{}, err
	}

	s.logger.Warn("booking persist failed", "token", token, "err", err)
	if attempted.Token == "" {
		// The backend failed before the record could be read; fall back to what we can see.
		records := s.load(ctx)
		if _, err := apply(records); err != nil {
			return model.BookingRecord{}, err
		}
	}
	s.keepUnsaved(attempted)
	return attempted, nil
}

// write runs one read-modify-write against the backend. fn receives the current records,
// including any held back from failed writes, and returns the record to store under token.
func (s *Store) write(ctx context.Context, token string, fn func(map[string]model.BookingRecord) (model.BookingRecord, error)) error {
	pending := s.snapshotUnsaved()
	err := s.backend.Update(ctx, func(cur []byte) ([]byte, error) {
		records := s.decode(cur)
		overlay(records, pending)
		rec, err := fn(records)
		if err != nil {
			return nil, err
		}
		records[token] = rec
		s.prune(records, token)
		return json.Marshal(records)
	})
	if err == nil {
		s.clearUnsaved(pending)
	}
	return err
}

func (s *Store) load(ctx context.Context) map[string]model.BookingRecord {
	raw, err := s.backend.Load(ctx)
	if err != nil {
		s.logger.Warn("booking store read failed", "err", err)
		raw = nil
	}
	records := s.decode(raw)
	overlay(records, s.snapshotUnsaved())
	return records
}

// overlay lays records held back by failed writes over what the backend returned, newest wins.
func overlay(records, pending map[string]model.BookingRecord) {
	for t, rec := range pending {
		if cur, ok := records[t]; !ok || rec.UpdatedAt.After(cur.UpdatedAt) {
			records[t] = rec
		}
	}
}

func (s *Store) decode(raw []byte) map[string]model.BookingRecord {
	records := map[string]model.BookingRecord{}
	if len(raw) == 0 {
		return records
	}
	if err := json.Unmarshal(raw, &records); err != nil {
		s.logger.Warn("booking store payload unreadable; treating as empty", "err", err)
		return map[string]model.BookingRecord{}
	}
	return records
}

// prune applies the retention policy, never evicting keep.
func (s *Store) prune(records map[string]model.BookingRecord, keep string) {
	if s.retention.MaxAge > 0 {
		cutoff := s.now().UTC().Add(-s.retention.MaxAge)
		for t, rec := range records {
			if t != keep && rec.CreatedAt.Before(cutoff) {
				delete(records, t)
			}
		}
	}
	if s.retention.MaxRecords <= 0 || len(records) <= s.retention.MaxRecords {
		return
	}
	tokens := make([]string, 0, len(records))
	for t := range records {
		if t != keep {
			tokens = append(tokens, t)
		}
	}
	sort.Slice(tokens, func(i, j int) bool {
		return records[tokens[i]].CreatedAt.Before(records[tokens[j]].CreatedAt)
	})
	for _, t := range tokens {
		if len(records) <= s.retention.MaxRecords {
			break
		}
		delete(records, t)
	}
}

func (s *Store) keepUnsaved(rec model.BookingRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsaved[rec.Token] = rec
}

func (s *Store) snapshotUnsaved() map[string]model.BookingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]model.BookingRecord, len(s.unsaved))
	for t, rec := range s.unsaved {
		out[t] = rec
	}
	return out
}

func (s *Store) clearUnsaved(written map[string]model.BookingRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for t, rec := range written {
		if cur, ok := s.unsaved[t]; ok && cur.UpdatedAt.Equal(rec.UpdatedAt) {
			delete(s.unsaved, t)
		}
	}
}

// Ping reports backend health for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrConflict is returned when an optimistic update keeps losing to concurrent writers.
var ErrConflict = errors.New("storage: concurrent update conflict")

// Backend holds the whole record set as one opaque blob under a namespace.
// Update must apply fn atomically: the bytes fn returns replace exactly the bytes it was given.
// If fn returns an error nothing is written and that error is returned.
type Backend interface {
	Load(ctx context.Context) ([]byte, error)
	Update(ctx context.Context, fn func(current []byte) ([]byte, error)) error
	Ping(ctx context.Context) error
}

// MemoryBackend keeps the blob in process memory. Useful for tests and single-instance dev runs.
type MemoryBackend struct {
	mu   sync.Mutex
	blob []byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Load(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneBytes(m.blob), nil
}

func (m *MemoryBackend) Update(_ context.Context, fn func([]byte) ([]byte, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := fn(cloneBytes(m.blob))
	if err != nil {
		return err
	}
	m.blob = cloneBytes(next)
	return nil
}

func (m *MemoryBackend) Ping(context.Context) error { return nil }

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

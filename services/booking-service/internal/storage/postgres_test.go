package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKV emulates the booking_kv table. rowLock is held by the open transaction the way
// SELECT ... FOR UPDATE holds the row.
type fakeKV struct {
	rowLock sync.Mutex

	mu         sync.Mutex
	rows       map[string][]byte
	versions   map[string]int
	schema     bool
	failUpdate bool
}

func newFakeKV() *fakeKV {
	return &fakeKV{rows: map[string][]byte{}, versions: map[string]int{}}
}

func (f *fakeKV) Begin(context.Context) (pgx.Tx, error) {
	f.rowLock.Lock()
	return &fakeTx{kv: f}, nil
}

func (f *fakeKV) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	if strings.Contains(sql, "CREATE TABLE IF NOT EXISTS booking_kv") {
		f.mu.Lock()
		f.schema = true
		f.mu.Unlock()
	}
	return pgconn.CommandTag{}, nil
}

func (f *fakeKV) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	payload, ok := f.rows[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{payload: payload}
}

func (f *fakeKV) Ping(context.Context) error { return nil }

func (f *fakeKV) version(ns string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.versions[ns]
}

type fakeTx struct {
	pgx.Tx
	kv       *fakeKV
	ns       string
	inserted bool
	staged   []byte
	written  bool
	closed   bool
}

func (tx *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tx.ns = args[0].(string)
	switch {
	case strings.Contains(sql, "INSERT INTO booking_kv"):
		tx.kv.mu.Lock()
		_, exists := tx.kv.rows[tx.ns]
		tx.kv.mu.Unlock()
		tx.inserted = !exists
	case strings.Contains(sql, "UPDATE booking_kv"):
		if tx.kv.failUpdate {
			return pgconn.CommandTag{}, errors.New("disk full")
		}
		tx.staged = args[1].([]byte)
		tx.written = true
	}
	return pgconn.CommandTag{}, nil
}

func (tx *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx.inserted {
		return fakeRow{payload: []byte(`{}`)}
	}
	return tx.kv.QueryRow(ctx, sql, args...)
}

func (tx *fakeTx) Commit(context.Context) error {
	if tx.closed {
		return pgx.ErrTxClosed
	}
	tx.closed = true
	defer tx.kv.rowLock.Unlock()
	if tx.written {
		tx.kv.mu.Lock()
		tx.kv.rows[tx.ns] = tx.staged
		tx.kv.versions[tx.ns]++
		tx.kv.mu.Unlock()
	}
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	if tx.closed {
		return pgx.ErrTxClosed
	}
	tx.closed = true
	tx.kv.rowLock.Unlock()
	return nil
}

type fakeRow struct {
	payload []byte
	err     error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*[]byte) = append([]byte(nil), r.payload...)
	return nil
}

func TestPostgresBackendUpdate(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	b := NewPostgresBackend(kv, "")
	require.NoError(t, b.EnsureSchema(ctx))
	assert.True(t, kv.schema)

	raw, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, raw)

	var seen []byte
	require.NoError(t, b.Update(ctx, func(cur []byte) ([]byte, error) {
		seen = cur
		return []byte(`{"a":1}`), nil
	}))
	assert.JSONEq(t, `{}`, string(seen))
	assert.Equal(t, 1, kv.version(DefaultNamespace))

	require.NoError(t, b.Update(ctx, func(cur []byte) ([]byte, error) {
		seen = cur
		return []byte(`{"b":2}`), nil
	}))
	assert.JSONEq(t, `{"a":1}`, string(seen))
	raw, err = b.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":2}`, string(raw))
	assert.Equal(t, 2, kv.version(DefaultNamespace))
	require.NoError(t, b.Ping(ctx))
}

func TestPostgresBackendRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	b := NewPostgresBackend(kv, "seva")
	require.NoError(t, b.Update(ctx, func([]byte) ([]byte, error) { return []byte(`{"keep":true}`), nil }))

	boom := errors.New("boom")
	err := b.Update(ctx, func([]byte) ([]byte, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	kv.failUpdate = true
	require.Error(t, b.Update(ctx, func([]byte) ([]byte, error) { return []byte(`{"lost":true}`), nil }))
	kv.failUpdate = false

	raw, err := b.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"keep":true}`, string(raw))
	assert.Equal(t, 1, kv.version("seva"))

	// the row lock was released by each rollback
	require.NoError(t, b.Update(ctx, func([]byte) ([]byte, error) { return []byte(`{"next":true}`), nil }))
	assert.Equal(t, 2, kv.version("seva"))
}

func TestPostgresBackendConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()

	const writers = 8
	var wg sync.WaitGroup
	tokens := make(chan string, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := NewStore(NewPostgresBackend(kv, "race"), testLogger(),
				WithTokenGenerator(func() string { return fmt.Sprintf("tok-%d", i) }))
			tokens <- s.Create(ctx, sampleRecord()).Token
		}(i)
	}
	wg.Wait()
	close(tokens)

	reader := NewStore(NewPostgresBackend(kv, "race"), testLogger())
	for tok := range tokens {
		rec, ok := reader.GetByToken(ctx, tok)
		assert.True(t, ok, "token %s lost to a concurrent write", tok)
		assert.Equal(t, model.StatusPaymentPending, rec.Status)
	}
	assert.Equal(t, writers, kv.version("race"))
}

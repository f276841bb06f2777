package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	return NewClient(Config{URL: url, APIKey: "k", MaxTries: 3, RetryDelay: time.Millisecond})
}

func TestMissingCredential(t *testing.T) {
	_, err := NewClient(Config{URL: "http://example.invalid"}).GenerateText(context.Background(), "hi")
	require.ErrorIs(t, err, ErrMissingCredential)
}

func TestGenerateText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		var req generateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(generateResponse{Text: "  echo: " + req.Prompt + " "})
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL).GenerateText(context.Background(), "which pooja for a new home?")
	require.NoError(t, err)
	assert.Equal(t, "echo: which pooja for a new home?", text)
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(generateResponse{Text: "ok"})
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL).GenerateText(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.EqualValues(t, 3, calls.Load())
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GenerateText(context.Background(), "p")
	require.ErrorIs(t, err, ErrGeneration)
	assert.NotErrorIs(t, err, ErrMissingCredential)
	assert.EqualValues(t, 1, calls.Load())
}

func TestEmptyResponseFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(generateResponse{Error: "blocked by safety filter"})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GenerateText(context.Background(), "p")
	require.ErrorIs(t, err, ErrGeneration)
	assert.Contains(t, err.Error(), "safety filter")
}

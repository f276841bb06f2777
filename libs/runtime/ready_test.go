package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestReadyz(t *testing.T) {
	mux := NewBaseMuxWithReady(
		ReadyCheck{Name: "store", Check: func(context.Context) error { return nil }},
		ReadyCheck{Name: "kafka", Optional: true, Check: func(context.Context) error { return errors.New("down") }},
	)

	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200 with only optional failure, got %d", rw.Code)
	}
	var report readyReport
	if err := json.Unmarshal(rw.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Checks["kafka"] != "down" || report.Checks["store"] != "ok" {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestReadyzRequiredFailure(t *testing.T) {
	mux := NewBaseMuxWithReady(
		ReadyCheck{Name: "store", Check: func(context.Context) error { return errors.New("no redis") }},
	)
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rw.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rw.Code)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG").String() != "DEBUG" {
		t.Fatal("expected debug level")
	}
	if ParseLevel("nonsense").String() != "INFO" {
		t.Fatal("expected info fallback")
	}
}

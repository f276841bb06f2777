package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPort(t *testing.T) {
	t.Setenv("SEVA_TEST_PORT", "8080")
	if got, err := Port("SEVA_TEST_PORT", "1"); err != nil || got != "8080" {
		t.Fatalf("expected 8080, got %q (%v)", got, err)
	}

	t.Setenv("SEVA_TEST_PORT", "99999")
	if _, err := Port("SEVA_TEST_PORT", "1"); err == nil {
		t.Fatal("expected error for out of range port")
	}
}

func TestRequiredString(t *testing.T) {
	t.Setenv("SEVA_TEST_REQUIRED", "  ")
	if _, err := RequiredString("SEVA_TEST_REQUIRED"); err == nil {
		t.Fatal("expected error for blank value")
	}
}

func TestList(t *testing.T) {
	got := List(" a, ,b ,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected list: %#v", got)
	}
}

func TestProcess(t *testing.T) {
	var cfg struct {
		Name    string        `envconfig:"SEVA_TEST_NAME" default:"seva"`
		Timeout time.Duration `envconfig:"SEVA_TEST_TIMEOUT" default:"5s"`
		Limit   int           `envconfig:"SEVA_TEST_LIMIT"`
	}
	t.Setenv("SEVA_TEST_LIMIT", "42")

	if err := Process("", &cfg); err != nil {
		t.Fatalf("process: %v", err)
	}
	if cfg.Name != "seva" || cfg.Timeout != 5*time.Second || cfg.Limit != 42 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("SEVA_DOTENV_VALUE=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("SEVA_DOTENV_VALUE") })

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := os.Getenv("SEVA_DOTENV_VALUE"); got != "from-file" {
		t.Fatalf("expected value from file, got %q", got)
	}
}

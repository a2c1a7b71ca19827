package config_test

import (
	"strings"
	"testing"

	"github.com/calvella/bucketsync/internal/config"
)

// setBaseEnv sets the required variables plus one LLM provider so Load
// succeeds unless a test breaks something on purpose.
func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("INVESTEC_X_API_KEY", "key")
	t.Setenv("INVESTEC_CLIENT_ID", "id")
	t.Setenv("INVESTEC_CLIENT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/bucketsync")
	t.Setenv("OLLAMA_MODEL", "llama3")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GEMINI_MODEL", "")
	t.Setenv("GOOGLE_SEARCH_API_KEY", "")
	t.Setenv("GOOGLE_SEARCH_ENGINE_ID", "")
	t.Setenv("BUCKETS", "")
	t.Setenv("CITY", "")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.OllamaHost != "http://localhost" {
		t.Errorf("expected default ollama host, got %q", cfg.OllamaHost)
	}
	if cfg.OllamaPort != "11434" {
		t.Errorf("expected default ollama port, got %q", cfg.OllamaPort)
	}
	if len(cfg.Buckets) != 8 {
		t.Errorf("expected 8 default buckets, got %d: %v", len(cfg.Buckets), cfg.Buckets)
	}
	if cfg.Buckets[len(cfg.Buckets)-1] != "Other" {
		t.Errorf("expected terminal bucket 'Other', got %q", cfg.Buckets[len(cfg.Buckets)-1])
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("INVESTEC_CLIENT_SECRET", "")

	_, err := config.Load()
	if err == nil {
		t.Fatal("expected error for missing INVESTEC_CLIENT_SECRET")
	}
	if !strings.Contains(err.Error(), "INVESTEC_CLIENT_SECRET") {
		t.Errorf("error should name the missing variable, got %q", err)
	}
}

func TestLoad_GeminiPairViolation(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("GEMINI_API_KEY", "g-key")
	// GEMINI_MODEL left unset

	_, err := config.Load()
	if err == nil {
		t.Fatal("expected error for half-configured gemini pair")
	}
}

func TestLoad_SearchPairViolation(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("GOOGLE_SEARCH_ENGINE_ID", "cx")
	// GOOGLE_SEARCH_API_KEY left unset

	_, err := config.Load()
	if err == nil {
		t.Fatal("expected error for half-configured search pair")
	}
}

func TestLoad_NoLLMConfigured(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("OLLAMA_MODEL", "")

	_, err := config.Load()
	if err == nil {
		t.Fatal("expected error when no LLM provider is configured")
	}
}

func TestLoad_CustomBuckets(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("BUCKETS", "Groceries, Rent ,Fun")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := []string{"Groceries", "Rent", "Fun", "Other"}
	if len(cfg.Buckets) != len(want) {
		t.Fatalf("expected %v, got %v", want, cfg.Buckets)
	}
	for i, b := range want {
		if cfg.Buckets[i] != b {
			t.Errorf("bucket %d: expected %q, got %q", i, b, cfg.Buckets[i])
		}
	}
}

func TestLoad_GeminiOnlyIsEnough(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("OLLAMA_MODEL", "")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("GEMINI_MODEL", "gemini-2.0-flash")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !cfg.GeminiEnabled() {
		t.Error("expected gemini to be enabled")
	}
	if cfg.OllamaEnabled() {
		t.Error("expected ollama to be disabled")
	}
}

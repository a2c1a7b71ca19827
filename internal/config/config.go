// Package config collects and validates runtime settings from the
// environment. Values are immutable after Load.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultBuckets is the bucket list used when BUCKETS is unset. Order matters:
// bucket matching resolves ties by configuration order, and "Other" is the
// terminal bucket.
const DefaultBuckets = "Food,Transportation,Entertainment,Bills & Utilities,Healthcare,Income,Transfers,Other"

const (
	defaultInvestecAPIURL = "https://openapi.investec.com"
	defaultOllamaHost     = "http://localhost"
	defaultOllamaPort     = "11434"
)

// Config holds all application configuration.
type Config struct {
	// Bank credentials
	InvestecAPIKey       string
	InvestecClientID     string
	InvestecClientSecret string
	InvestecAPIURL       string

	// Persistence
	DatabaseURL string

	// Gemini (LLM-A); both or neither
	GeminiAPIKey string
	GeminiModel  string

	// Ollama (LLM-B)
	OllamaModel string
	OllamaHost  string
	OllamaPort  string

	// Google Custom Search; both or neither
	SearchAPIKey   string
	SearchEngineID string

	// Classification
	Buckets []string
	City    string

	// Daemon
	Port         int
	LogLevel     string
	OTLPEndpoint string
}

// Load reads configuration from environment variables and validates it.
// The returned error is a single-line diagnostic suitable for stderr.
func Load() (*Config, error) {
	cfg := &Config{
		InvestecAPIKey:       os.Getenv("INVESTEC_X_API_KEY"),
		InvestecClientID:     os.Getenv("INVESTEC_CLIENT_ID"),
		InvestecClientSecret: os.Getenv("INVESTEC_CLIENT_SECRET"),
		InvestecAPIURL:       getEnv("INVESTEC_API_URL", defaultInvestecAPIURL),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  os.Getenv("GEMINI_MODEL"),

		OllamaModel: os.Getenv("OLLAMA_MODEL"),
		OllamaHost:  getEnv("OLLAMA_HOST", defaultOllamaHost),
		OllamaPort:  getEnv("OLLAMA_PORT", defaultOllamaPort),

		SearchAPIKey:   os.Getenv("GOOGLE_SEARCH_API_KEY"),
		SearchEngineID: os.Getenv("GOOGLE_SEARCH_ENGINE_ID"),

		Buckets: parseBuckets(getEnv("BUCKETS", DefaultBuckets)),
		City:    os.Getenv("CITY"),

		Port:         getEnvInt("PORT", 8080),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	for _, v := range []struct{ name, value string }{
		{"INVESTEC_X_API_KEY", c.InvestecAPIKey},
		{"INVESTEC_CLIENT_ID", c.InvestecClientID},
		{"INVESTEC_CLIENT_SECRET", c.InvestecClientSecret},
		{"DATABASE_URL", c.DatabaseURL},
	} {
		if v.value == "" {
			return fmt.Errorf("config: missing required environment variable %s", v.name)
		}
	}

	if (c.GeminiAPIKey == "") != (c.GeminiModel == "") {
		return fmt.Errorf("config: GEMINI_API_KEY and GEMINI_MODEL must be set together")
	}
	if (c.SearchAPIKey == "") != (c.SearchEngineID == "") {
		return fmt.Errorf("config: GOOGLE_SEARCH_API_KEY and GOOGLE_SEARCH_ENGINE_ID must be set together")
	}
	if !c.GeminiEnabled() && !c.OllamaEnabled() {
		return fmt.Errorf("config: at least one LLM provider must be configured (GEMINI_* or OLLAMA_MODEL)")
	}
	return nil
}

// GeminiEnabled reports whether the Gemini provider is configured.
func (c *Config) GeminiEnabled() bool {
	return c.GeminiAPIKey != "" && c.GeminiModel != ""
}

// OllamaEnabled reports whether the Ollama provider is configured.
func (c *Config) OllamaEnabled() bool {
	return c.OllamaModel != ""
}

// SearchEnabled reports whether the search provider is configured.
func (c *Config) SearchEnabled() bool {
	return c.SearchAPIKey != "" && c.SearchEngineID != ""
}

// parseBuckets splits a comma-separated bucket list, trimming whitespace and
// dropping empty entries. "Other" is appended when absent so the classifier
// always has its terminal bucket.
func parseBuckets(raw string) []string {
	var buckets []string
	hasOther := false
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		if b == "Other" {
			hasOther = true
		}
		buckets = append(buckets, b)
	}
	if !hasOther {
		buckets = append(buckets, "Other")
	}
	return buckets
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

package search_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/calvella/bucketsync/internal/infra/cache"
	"github.com/calvella/bucketsync/internal/infra/observability"
	"github.com/calvella/bucketsync/internal/infra/resilience"
	"github.com/calvella/bucketsync/internal/infra/search"

	"go.uber.org/zap"
	"google.golang.org/api/option"
)

func newClient(t *testing.T, srv *httptest.Server) *search.GoogleClient {
	t.Helper()
	c, err := search.NewGoogleClient(
		context.Background(),
		"api-key",
		"engine-id",
		resilience.NewCircuitBreaker("search-test"),
		cache.New[string](time.Minute),
		observability.NewMetrics(),
		zap.NewNop(),
		option.WithEndpoint(srv.URL+"/"),
	)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	return c
}

func TestSearch_FormatsTopResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("cx"); got != "engine-id" {
			t.Errorf("expected engine id, got %q", got)
		}
		if got := r.URL.Query().Get("num"); got != "3" {
			t.Errorf("expected num=3, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[
			{"title":"Starbucks ZA","snippet":"Coffee chain.","link":"https://starbucks.co.za"},
			{"title":"Starbucks wiki","link":"https://example.org/wiki"}
		]}`))
	}))
	defer srv.Close()

	c := newClient(t, srv)
	got, err := c.Search(context.Background(), "what is starbucks business")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := "1. Starbucks ZA\n   Coffee chain.\n   https://starbucks.co.za\n\n" +
		"2. Starbucks wiki\n   https://example.org/wiki\n\n"
	if got != want {
		t.Errorf("formatted results mismatch:\n got: %q\nwant: %q", got, want)
	}
}

func TestSearch_NoItemsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newClient(t, srv)
	got, err := c.Search(context.Background(), "mystery merchant")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != "No relevant information found for: mystery merchant" {
		t.Errorf("unexpected sentinel: %q", got)
	}
}

func TestSearch_UnusableUpstreamSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"quota exceeded"}}`))
	}))
	defer srv.Close()

	c := newClient(t, srv)
	got, err := c.Search(context.Background(), "mystery merchant")
	if err != nil {
		t.Fatalf("search is best-effort, expected no error, got %v", err)
	}
	if got != "Search completed for: mystery merchant" {
		t.Errorf("unexpected sentinel: %q", got)
	}
}

func TestSearch_CachesResults(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"title":"T","link":"https://t"}]}`))
	}))
	defer srv.Close()

	c := newClient(t, srv)
	first, err := c.Search(context.Background(), "repeat query")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := c.Search(context.Background(), "repeat query")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if first != second {
		t.Errorf("cached result should match: %q vs %q", first, second)
	}
	if hits != 1 {
		t.Errorf("expected one upstream call, got %d", hits)
	}
	if !strings.Contains(first, "1. T") {
		t.Errorf("unexpected result: %q", first)
	}
}

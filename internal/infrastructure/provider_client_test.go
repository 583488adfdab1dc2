package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestClient() *ProviderClient {
	return NewProviderClient(zap.NewNop().Sugar())
}

func TestDeliverPostsJSONPayload(t *testing.T) {
	var gotContentType string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient()
	payload := map[string]any{"from": "+12155550000", "to": "+15559990000", "body": "hi"}
	if err := client.Deliver(context.Background(), server.URL, payload); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}
	if gotBody["body"] != "hi" {
		t.Errorf("payload not relayed verbatim: %v", gotBody)
	}
}

func TestDeliverNon2xxIsFatalNotTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rejected", http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient()
	err := client.Deliver(context.Background(), server.URL, map[string]any{})
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
	if errors.Is(err, ErrDeliveryTimeout) {
		t.Fatalf("remote rejection must not classify as timeout: %v", err)
	}
}

func TestDeliverClassifiesTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := newTestClient()
	client.httpClient.Timeout = 20 * time.Millisecond

	err := client.Deliver(context.Background(), server.URL, map[string]any{})
	if !errors.Is(err, ErrDeliveryTimeout) {
		t.Fatalf("expected ErrDeliveryTimeout, got %v", err)
	}
}

func TestDeliverWithRetryBackoffSchedule(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := newTestClient()
	client.httpClient.Timeout = 20 * time.Millisecond

	var delays []time.Duration
	client.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	if client.DeliverWithRetry(context.Background(), server.URL, map[string]any{}) {
		t.Fatal("expected delivery failure after exhausted retries")
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
	want := []time.Duration{5 * time.Second, 10 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("delay before attempt %d = %v, want %v", i+2, delays[i], want[i])
		}
	}
}

func TestDeliverWithRetryFatalAbortsImmediately(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient()
	slept := false
	client.sleep = func(ctx context.Context, d time.Duration) error {
		slept = true
		return nil
	}

	if client.DeliverWithRetry(context.Background(), server.URL, map[string]any{}) {
		t.Fatal("expected delivery failure")
	}
	if got := attempts.Load(); got != 1 {
		t.Fatalf("attempts = %d, want 1 (fatal errors are not retried)", got)
	}
	if slept {
		t.Fatal("no backoff sleep should happen on a fatal failure")
	}
}

func TestDeliverWithRetrySucceedsFirstTry(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := newTestClient()
	if !client.DeliverWithRetry(context.Background(), server.URL, map[string]any{}) {
		t.Fatal("expected delivery success")
	}
	if got := attempts.Load(); got != 1 {
		t.Fatalf("attempts = %d, want 1", got)
	}
}

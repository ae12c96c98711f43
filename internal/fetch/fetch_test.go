package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetchReturnsBodyOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>hi</body></html>"))
	}))
	defer srv.Close()

	c := NewClient()
	resp, kind := c.Fetch(context.Background(), srv.URL, Options{Timeout: time.Second})
	if kind != ErrNone {
		t.Fatalf("Fetch() kind = %q, want none", kind)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("StatusCode = %d, want 200", resp.StatusCode)
	}
}

func TestFetchRejectsWrongContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient()
	_, kind := c.Fetch(context.Background(), srv.URL, Options{Timeout: time.Second})
	if kind != ErrWrongContentType {
		t.Fatalf("Fetch() kind = %q, want wrong_content_type", kind)
	}
}

func TestFetchClassifies5xxAsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient()
	_, kind := c.Fetch(context.Background(), srv.URL, Options{Timeout: time.Second})
	if kind != ErrHTTP5xx || !kind.Retryable() {
		t.Fatalf("Fetch() kind = %q, want retryable http_5xx", kind)
	}
}

func TestFetchClassifies4xxAsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient()
	_, kind := c.Fetch(context.Background(), srv.URL, Options{Timeout: time.Second})
	if kind != ErrHTTP4xx || kind.Retryable() {
		t.Fatalf("Fetch() kind = %q, want terminal http_4xx", kind)
	}
}

func TestFetchWithRetryStopsAtThreeAttemptsOn5xx(t *testing.T) {
	var count int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&count, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient()
	_, kind, attempts := c.FetchWithRetry(context.Background(), srv.URL, Options{Timeout: time.Second})
	if kind != ErrHTTP5xx {
		t.Fatalf("kind = %q, want http_5xx", kind)
	}
	if attempts != MaxAttempts {
		t.Fatalf("attempts = %d, want %d", attempts, MaxAttempts)
	}
	if int(atomic.LoadInt32(&count)) != MaxAttempts {
		t.Fatalf("server saw %d requests, want %d", count, MaxAttempts)
	}
}

func TestFetchWithRetryDoesNotRetry4xx(t *testing.T) {
	var count int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&count, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient()
	_, kind, attempts := c.FetchWithRetry(context.Background(), srv.URL, Options{Timeout: time.Second})
	if kind != ErrHTTP4xx {
		t.Fatalf("kind = %q, want http_4xx", kind)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func testHTTPCfg() HTTPClientConfig {
	return HTTPClientConfig{
		Client: &http.Client{Timeout: 5 * time.Second},
		Backoff: BackoffConfig{
			MaxAttempts:     3,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
		AttemptTimeout: time.Second,
	}
}

func testBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: name})
}

func getRequest(t *testing.T, rawURL string) func() (*http.Request, error) {
	t.Helper()
	return func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, rawURL, nil)
	}
}

// A rate-limit response followed by a success within the attempt budget must
// yield the successful body.
func TestRetryAfterRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	body, err := doRequestWithResilience(context.Background(), testHTTPCfg(), testBreaker("rate-limit"), getRequest(t, srv.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Fatalf("unexpected body: %s", body)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

// Consecutive retryable failures equal to the attempt budget must surface a
// terminal max-retries error with no further attempts.
func TestMaxRetriesExceeded(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := doRequestWithResilience(context.Background(), testHTTPCfg(), testBreaker("max-retries"), getRequest(t, srv.URL))
	if !errors.Is(err, ErrMaxRetries) {
		t.Fatalf("expected ErrMaxRetries, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", got)
	}
}

// Non-retryable rejections must short-circuit without consuming the
// remaining attempts.
func TestRejectionShortCircuits(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   string
	}{
		{"unauthorized", http.StatusUnauthorized, "invalid API key (401 Unauthorized)"},
		{"not found", http.StatusNotFound, "location not found (404)"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			_, err := doRequestWithResilience(context.Background(), testHTTPCfg(), testBreaker(tc.name), getRequest(t, srv.URL))
			if err == nil || err.Error() != tc.want {
				t.Fatalf("expected %q, got %v", tc.want, err)
			}
			if got := atomic.LoadInt32(&calls); got != 1 {
				t.Fatalf("expected 1 attempt, got %d", got)
			}
		})
	}
}

func TestCancelledContextWinsOverRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := doRequestWithResilience(ctx, testHTTPCfg(), testBreaker("cancelled"), getRequest(t, srv.URL))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	cfg := testHTTPCfg()
	cfg.Backoff.MaxAttempts = 0

	_, err := doRequestWithResilience(context.Background(), cfg, testBreaker("invalid"), getRequest(t, "http://localhost"))
	if !errors.Is(err, errInvalidConfig) {
		t.Fatalf("expected errInvalidConfig, got %v", err)
	}
}

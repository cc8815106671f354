package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// BackoffConfig controls retry and exponential backoff behaviour.
type BackoffConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles the HTTP client and resilience settings shared by
// both source clients.
type HTTPClientConfig struct {
	Client         *http.Client
	Backoff        BackoffConfig
	AttemptTimeout time.Duration // per-attempt deadline; 0 disables
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")

	// ErrMaxRetries is the terminal error after the attempt budget is spent
	// on transient failures.
	ErrMaxRetries = errors.New("max retries exceeded")
)

// rejectedError marks a provider rejection (bad credentials, unresolvable
// location) that must not consume remaining attempts.
type rejectedError struct{ msg string }

func (e *rejectedError) Error() string { return e.msg }

func isRejected(err error) bool {
	var re *rejectedError
	return errors.As(err, &re)
}

// doRequestWithResilience executes the HTTP request with bounded retries,
// exponential backoff, a per-attempt timeout, and a circuit breaker. It
// returns the response body on success. Transient failures (timeout,
// rate-limit, 5xx) are retried; rejections short-circuit immediately.
func doRequestWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) ([]byte, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxAttempts <= 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	var lastErr error

	for attempt := 0; attempt < cfg.Backoff.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		body, err := doAttempt(ctx, cfg, cb, buildRequest)
		if err == nil {
			return body, nil
		}

		// Circuit open and provider rejections propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		if isRejected(err) {
			return nil, err
		}
		// The caller going away is not a provider failure.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		if attempt == cfg.Backoff.MaxAttempts-1 {
			break
		}

		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if cfg.Backoff.MaxInterval > 0 && delay > cfg.Backoff.MaxInterval {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrMaxRetries, lastErr)
}

func doAttempt(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) ([]byte, error) {
	req, err := buildRequest()
	if err != nil {
		return nil, err
	}

	attemptCtx := ctx
	if cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, cfg.AttemptTimeout)
		defer cancel()
	}
	req = req.WithContext(attemptCtx)

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := cfg.Client.Do(req)
		if execErr != nil {
			return nil, execErr
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return nil, &rejectedError{msg: "invalid API key (401 Unauthorized)"}
		case resp.StatusCode == http.StatusNotFound:
			return nil, &rejectedError{msg: "location not found (404)"}
		case resp.StatusCode == http.StatusTooManyRequests:
			io.Copy(io.Discard, resp.Body)
			return nil, errRateLimited
		case resp.StatusCode >= 500:
			io.Copy(io.Discard, resp.Body)
			return nil, errServerError
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			io.Copy(io.Discard, resp.Body)
			return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
		}

		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, readErr
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}

	body, ok := result.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return body, nil
}

package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 5 * time.Second
	requestTimeout     = 10 * time.Second

	// Per-endpoint throttle toward one provider.
	providerRate  = rate.Limit(10)
	providerBurst = 20
)

// ErrDeliveryTimeout marks a transient network failure worth retrying.
// Every other delivery error is fatal for the request.
var ErrDeliveryTimeout = errors.New("provider request timed out")

// ProviderClient posts outbound messages to per-channel provider endpoints.
type ProviderClient struct {
	httpClient  *http.Client
	logger      *zap.SugaredLogger
	maxAttempts int
	baseDelay   time.Duration
	sleep       func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewProviderClient(logger *zap.SugaredLogger) *ProviderClient {
	return &ProviderClient{
		httpClient:  &http.Client{Timeout: requestTimeout},
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		sleep:       sleepCtx,
		limiters:    make(map[string]*rate.Limiter),
	}
}

// Deliver performs a single JSON POST to the endpoint. Success is judged
// purely by response status: any 2xx counts, anything else is an error.
// Timeouts are wrapped in ErrDeliveryTimeout so the retry loop can tell
// them apart from fatal failures.
func (c *ProviderClient) Deliver(ctx context.Context, endpoint string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %v", ErrDeliveryTimeout, err)
		}
		return fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("provider responded %d: %s", resp.StatusCode, respBody)
	}

	c.logger.Infow("message delivered", "endpoint", endpoint, "status", resp.StatusCode)
	return nil
}

// DeliverWithRetry wraps Deliver with bounded exponential backoff. Only
// timeouts are retried; the delay before attempt k is baseDelay*2^(k-2).
// Fatal failures and exhausted retries both report false rather than an
// error, so the caller sees a single "not sent" outcome.
func (c *ProviderClient) DeliverWithRetry(ctx context.Context, endpoint string, payload map[string]any) bool {
	limiter := c.limiterFor(endpoint)

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			c.logger.Errorw("delivery aborted", "endpoint", endpoint, "error", err)
			return false
		}

		err := c.Deliver(ctx, endpoint, payload)
		if err == nil {
			return true
		}
		if !errors.Is(err, ErrDeliveryTimeout) {
			c.logger.Errorw("delivery failed", "endpoint", endpoint, "error", err)
			return false
		}

		c.logger.Warnw("delivery timed out, retrying",
			"endpoint", endpoint, "attempt", attempt, "max_attempts", c.maxAttempts)
		if attempt == c.maxAttempts {
			break
		}
		if err := c.sleep(ctx, c.baseDelay<<(attempt-1)); err != nil {
			return false
		}
	}
	return false
}

// limiterFor returns the rate limiter for an endpoint, creating it on first use.
func (c *ProviderClient) limiterFor(endpoint string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	limiter, ok := c.limiters[endpoint]
	if !ok {
		limiter = rate.NewLimiter(providerRate, providerBurst)
		c.limiters[endpoint] = limiter
	}
	return limiter
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Package notifier delivers deployment outcomes to caller supplied evaluation
// endpoints with bounded retries and exponential backoff.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	requestTimeout = 30 * time.Second
	maxDelay       = 60 * time.Second
	userAgent      = "llm-code-deployment/1.0"
)

// Ack is the endpoint's acknowledgement on the first 2xx response.
type Ack struct {
	StatusCode int
	Body       string
	Attempts   int
}

// DeliveryError reports terminal failure after exhausting all attempts. It
// carries the last observed failure so callers can log it, the notifier itself
// never panics or crashes the host.
type DeliveryError struct {
	Attempts   int
	LastStatus int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("delivery failed after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("delivery failed after %d attempts: last status %d", e.Attempts, e.LastStatus)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// OnAttempt is invoked after every attempt with its outcome, for bookkeeping.
// statusCode is zero when the request never reached the endpoint.
type OnAttempt func(attempt, statusCode int, err error)

type Notifier struct {
	client      *resty.Client
	maxAttempts int
	baseDelay   time.Duration

	// sleep is replaced in tests to observe the backoff schedule.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg Config) *Notifier {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	baseDelay := cfg.BaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}

	return &Notifier{
		client: resty.New().
			SetTimeout(requestTimeout).
			SetHeader("User-Agent", userAgent),
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		sleep:       sleepCtx,
	}
}

// Notify posts payload to url, retrying any transport failure or non-2xx
// response. Delays double from the base delay and never decrease. Success on
// attempt k issues exactly k requests and no more; permanent failure issues
// exactly MaxAttempts requests before returning a DeliveryError.
func (n *Notifier) Notify(ctx context.Context, url string, payload any, onAttempt OnAttempt) (Ack, error) {
	if url == "" {
		return Ack{}, &DeliveryError{Attempts: 0, Err: fmt.Errorf("no evaluation url provided")}
	}

	var lastErr error
	var lastStatus int

	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := n.Delay(attempt)
			slog.Info("retrying delivery", "url", url, "attempt", attempt, "max_attempts", n.maxAttempts, "delay", delay)
			if err := n.sleep(ctx, delay); err != nil {
				return Ack{}, &DeliveryError{Attempts: attempt - 1, LastStatus: lastStatus, Err: err}
			}
		}

		res, err := n.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(payload).
			Post(url)

		switch {
		case err != nil:
			lastErr = err
			lastStatus = 0
			slog.Warn("delivery attempt failed", "url", url, "attempt", attempt, "error", err)
		case res.IsSuccess():
			if onAttempt != nil {
				onAttempt(attempt, res.StatusCode(), nil)
			}
			slog.Info("delivered evaluation payload", "url", url, "attempt", attempt, "status_code", res.StatusCode())
			return Ack{StatusCode: res.StatusCode(), Body: res.String(), Attempts: attempt}, nil
		default:
			lastErr = fmt.Errorf("endpoint returned status %d", res.StatusCode())
			lastStatus = res.StatusCode()
			slog.Warn("delivery attempt rejected", "url", url, "attempt", attempt, "status_code", res.StatusCode())
		}

		if onAttempt != nil {
			onAttempt(attempt, lastStatus, lastErr)
		}
	}

	slog.Error("failed to deliver evaluation payload", "url", url, "attempts", n.maxAttempts, "error", lastErr)
	return Ack{}, &DeliveryError{Attempts: n.maxAttempts, LastStatus: lastStatus, Err: lastErr}
}

// Delay returns the backoff before the given attempt (attempt >= 2). The
// schedule doubles from the base delay and is capped, so it is non-decreasing.
func (n *Notifier) Delay(attempt int) time.Duration {
	d := n.baseDelay
	for i := 2; i < attempt; i++ {
		d *= 2
		if d >= maxDelay {
			return maxDelay
		}
	}
	if d > maxDelay {
		return maxDelay
	}
	return d
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

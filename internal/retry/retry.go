// Package retry wraps Notion write operations with bounded retries and
// optional audit logging.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quan0715/notion-github-sync/internal/models"
	"github.com/quan0715/notion-github-sync/internal/notion"
)

// ErrExhausted is returned when every attempt failed. The underlying cause is
// recorded in the audit log, not propagated; callers only learn that retries
// ran out.
var ErrExhausted = errors.New("retry attempts exhausted")

// Sink receives one audit entry per attempt. The audit log's own writes must
// not go through this package, or the executor would log about logging.
type Sink interface {
	Append(ctx context.Context, severity models.LogSeverity, message string) error
}

// Executor holds the retry policy. The delay is fixed between attempts; there
// is no backoff.
type Executor struct {
	MaxRetries int
	Delay      time.Duration
}

// Default matches the policy used for all page write-backs.
func Default() Executor {
	return Executor{MaxRetries: 2, Delay: 500 * time.Millisecond}
}

// Do runs action up to MaxRetries+1 times. On success with a description and
// sink present, an info entry is appended. Each failed attempt that still has
// retries left appends an error entry and sleeps the fixed delay. On
// exhaustion the last error is logged with its kind and message, unless it is
// the benign Notion conflict kind, and ErrExhausted is returned.
func Do[T any](ctx context.Context, ex Executor, sink Sink, description string, action func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= ex.MaxRetries; attempt++ {
		result, err := action(ctx)
		if err == nil {
			if sink != nil && description != "" {
				_ = sink.Append(ctx, models.LogInfo, description)
			}
			return result, nil
		}
		lastErr = err

		if attempt < ex.MaxRetries {
			if sink != nil && description != "" {
				_ = sink.Append(ctx, models.LogError, description)
			}
			select {
			case <-time.After(ex.Delay):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
	}

	if sink != nil && description != "" && !notion.IsConflict(lastErr) {
		var apiErr *notion.APIError
		msg := fmt.Sprintf("notion write failed: %v", lastErr)
		if errors.As(lastErr, &apiErr) {
			msg = fmt.Sprintf("notion write failed: %s %s", apiErr.Code, apiErr.Message)
		}
		_ = sink.Append(ctx, models.LogError, msg)
	}
	return zero, ErrExhausted
}

// DoVoid is Do for actions without a result.
func DoVoid(ctx context.Context, ex Executor, sink Sink, description string, action func(context.Context) error) error {
	_, err := Do(ctx, ex, sink, description, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, action(ctx)
	})
	return err
}

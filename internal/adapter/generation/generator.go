package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/user/feedback-pipeline/internal/domain"
)

// Generator is the external text-generation capability, treated as a black
// box. Implementations must be safe to retry: a repeated call with the same
// prompt has no side effects beyond producing text.
type Generator interface {
	Generate(ctx context.Context, prompt, context string) (string, error)
}

// RetryPolicy bounds each generation call. The adapter is the only
// component that knows the capability exists, so the policy lives here and
// is injected per call site.
type RetryPolicy struct {
	MaxAttempts int
	Timeout     time.Duration
	BaseBackoff time.Duration
}

// DefaultRetryPolicy matches the pipeline defaults: 3 attempts, 30s per
// call, exponential backoff starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Timeout: 30 * time.Second, BaseBackoff: 1 * time.Second}
}

// GenerateWithRetry invokes g under the policy's per-attempt timeout,
// backing off exponentially between attempts. After exhaustion it returns a
// *domain.GenerationError wrapping the last failure.
func GenerateWithRetry(ctx context.Context, g Generator, policy RetryPolicy, prompt, contextText string, logger *slog.Logger) (string, error) {
	var lastErr error
	backoff := policy.BaseBackoff

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, policy.Timeout)
		text, err := g.Generate(callCtx, prompt, contextText)
		cancel()
		if err == nil {
			return text, nil
		}
		lastErr = err
		logger.Warn("generation call failed, retrying", "attempt", attempt, "error", err)

		if attempt == policy.MaxAttempts {
			break
		}
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return "", &domain.GenerationError{Attempts: attempt, Err: ctx.Err()}
		}
	}

	return "", &domain.GenerationError{Attempts: policy.MaxAttempts, Err: lastErr}
}

// ExtractJSONObject returns the first complete JSON object in s. Generation
// output often wraps JSON in prose; callers validate the result before use.
func ExtractJSONObject(s string) (string, error) {
	return extractBetween(s, '{', '}')
}

// ExtractJSONArray returns the first complete JSON array in s.
func ExtractJSONArray(s string) (string, error) {
	return extractBetween(s, '[', ']')
}

func extractBetween(s string, open, closing byte) (string, error) {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, closing)
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON payload found in generation output")
	}
	return s[start : end+1], nil
}

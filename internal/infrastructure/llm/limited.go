package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"ScriptWriter/internal/ports"
)

// LimitedGenerator throttles calls with a token bucket and bounds each call
// with its own timeout. A timed-out call surfaces as an ordinary error.
type LimitedGenerator struct {
	next    ports.TextGenerator
	limiter *rate.Limiter
	timeout time.Duration
}

var _ ports.TextGenerator = (*LimitedGenerator)(nil)

// NewLimitedGenerator wraps next; rps <= 0 disables throttling.
func NewLimitedGenerator(next ports.TextGenerator, rps float64, burst int, timeout time.Duration) *LimitedGenerator {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &LimitedGenerator{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
		timeout: timeout,
	}
}

// Name reports the wrapped backend.
func (l *LimitedGenerator) Name() string {
	return l.next.Name()
}

// Generate waits for a token, then calls the backend under the per-call deadline.
func (l *LimitedGenerator) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	if err := l.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	return l.next.Generate(ctx, req)
}

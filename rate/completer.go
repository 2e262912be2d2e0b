// Package rate limits calls to the language model on the client side so a
// burst of questions fails fast instead of exhausting the provider quota.
package rate

import (
	"context"
	"time"

	"github.com/fwojciec/handbook"
	"golang.org/x/time/rate"
)

var _ handbook.Completer = (*Completer)(nil)

// DefaultMaxWait is how long a call may queue for a token before failing.
const DefaultMaxWait = 10 * time.Second

// Completer wraps a handbook.Completer with a token bucket allowing
// requestsPerMinute calls with the given burst. A call that would wait
// longer than MaxWait fails immediately with ERATELIMIT and the time until
// a token is available.
type Completer struct {
	next    handbook.Completer
	limiter *rate.Limiter

	// MaxWait bounds queueing for a token.
	MaxWait time.Duration
}

// NewCompleter creates a rate limited Completer. A burst below 1 is treated
// as 1.
func NewCompleter(next handbook.Completer, requestsPerMinute float64, burst int) *Completer {
	if burst < 1 {
		burst = 1
	}
	return &Completer{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(requestsPerMinute/60), burst),
		MaxWait: DefaultMaxWait,
	}
}

// Complete waits for a token and then calls the wrapped Completer.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	r := c.limiter.Reserve()
	if !r.OK() {
		return "", handbook.RateLimitf(0, "request rate exceeded")
	}

	delay := r.Delay()
	if delay > c.MaxWait {
		r.Cancel()
		return "", handbook.RateLimitf(delay.Round(time.Second), "request rate exceeded")
	}

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			r.Cancel()
			return "", ctx.Err()
		case <-t.C:
		}
	}

	return c.next.Complete(ctx, prompt)
}

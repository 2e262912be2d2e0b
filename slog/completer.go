package slog

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/fwojciec/handbook"
)

// Ensure LoggingCompleter implements handbook.Completer.
var _ handbook.Completer = (*LoggingCompleter)(nil)

// LoggingCompleter wraps a Completer with logging. Prompts and responses
// are logged by size only.
type LoggingCompleter struct {
	next   handbook.Completer
	logger *slog.Logger
}

// NewLoggingCompleter creates a new LoggingCompleter.
func NewLoggingCompleter(next handbook.Completer, logger *slog.Logger) *LoggingCompleter {
	return &LoggingCompleter{next: next, logger: logger}
}

// Complete delegates to the wrapped completer and logs the operation.
func (c *LoggingCompleter) Complete(ctx context.Context, prompt string) (text string, err error) {
	defer func(begin time.Time) {
		attrs := []any{
			"prompt_chars", utf8.RuneCountInString(prompt),
			"response_chars", utf8.RuneCountInString(text),
			"duration", time.Since(begin),
			"err", err,
		}
		if d := handbook.RetryAfter(err); d > 0 {
			attrs = append(attrs, "retry_after", d)
		}
		c.logger.Info("complete", attrs...)
	}(time.Now())
	return c.next.Complete(ctx, prompt)
}

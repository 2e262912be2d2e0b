package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/handbook"
)

// Ensure LoggingAsker implements handbook.Asker.
var _ handbook.Asker = (*LoggingAsker)(nil)

// LoggingAsker wraps an Asker with logging.
type LoggingAsker struct {
	next   handbook.Asker
	logger *slog.Logger
}

// NewLoggingAsker creates a new LoggingAsker.
func NewLoggingAsker(next handbook.Asker, logger *slog.Logger) *LoggingAsker {
	return &LoggingAsker{next: next, logger: logger}
}

// Ask delegates to the wrapped asker and logs the operation. Failures are
// logged at error level with their code.
func (a *LoggingAsker) Ask(ctx context.Context, q *handbook.Question) (answer *handbook.Answer, err error) {
	defer func(begin time.Time) {
		level := slog.LevelInfo
		if err != nil && handbook.ErrorCode(err) != handbook.EINVALID && handbook.ErrorCode(err) != handbook.ENOTFOUND {
			level = slog.LevelError
		}
		a.logger.Log(ctx, level, "ask",
			"faculty", q.DocumentID,
			"department", q.DepartmentID,
			"truncated", answer != nil && answer.Truncated,
			"duration", time.Since(begin),
			"code", handbook.ErrorCode(err),
			"err", err,
		)
	}(time.Now())
	return a.next.Ask(ctx, q)
}

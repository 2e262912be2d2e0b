// Package slog provides logging decorators for handbook services.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/handbook"
)

// Ensure LoggingIngestor implements handbook.Ingestor.
var _ handbook.Ingestor = (*LoggingIngestor)(nil)

// LoggingIngestor wraps an Ingestor with logging.
type LoggingIngestor struct {
	next   handbook.Ingestor
	logger *slog.Logger
}

// NewLoggingIngestor creates a new LoggingIngestor.
func NewLoggingIngestor(next handbook.Ingestor, logger *slog.Logger) *LoggingIngestor {
	return &LoggingIngestor{next: next, logger: logger}
}

// Ingest delegates to the wrapped ingestor and logs the operation.
func (i *LoggingIngestor) Ingest(ctx context.Context, source string) (corpus *handbook.Corpus, err error) {
	defer func(begin time.Time) {
		var pages int
		if corpus != nil {
			pages = corpus.PageCount()
		}
		i.logger.Info("ingest",
			"source", source,
			"pages", pages,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return i.next.Ingest(ctx, source)
}

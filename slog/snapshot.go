package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/handbook"
)

// Ensure LoggingSnapshotStore implements handbook.SnapshotStore.
var _ handbook.SnapshotStore = (*LoggingSnapshotStore)(nil)

// LoggingSnapshotStore wraps a SnapshotStore with debug logging.
type LoggingSnapshotStore struct {
	next   handbook.SnapshotStore
	logger *slog.Logger
}

// NewLoggingSnapshotStore creates a new LoggingSnapshotStore.
func NewLoggingSnapshotStore(next handbook.SnapshotStore, logger *slog.Logger) *LoggingSnapshotStore {
	return &LoggingSnapshotStore{next: next, logger: logger}
}

// FindSnapshot delegates to the wrapped store and logs the operation.
func (s *LoggingSnapshotStore) FindSnapshot(ctx context.Context, documentID string) (corpus *handbook.Corpus, err error) {
	defer func(begin time.Time) {
		s.logger.Debug("find snapshot",
			"document", documentID,
			"hit", corpus != nil,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.FindSnapshot(ctx, documentID)
}

// SaveSnapshot delegates to the wrapped store and logs the operation.
func (s *LoggingSnapshotStore) SaveSnapshot(ctx context.Context, documentID string, corpus *handbook.Corpus) (err error) {
	defer func(begin time.Time) {
		s.logger.Debug("save snapshot",
			"document", documentID,
			"bytes", len(corpus.Text()),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.SaveSnapshot(ctx, documentID, corpus)
}

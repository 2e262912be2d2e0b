package mock

import (
	"context"

	"github.com/fwojciec/handbook"
)

var _ handbook.SnapshotStore = (*SnapshotStore)(nil)

// SnapshotStore is a mock implementation of handbook.SnapshotStore.
type SnapshotStore struct {
	FindSnapshotFn func(ctx context.Context, documentID string) (*handbook.Corpus, error)
	SaveSnapshotFn func(ctx context.Context, documentID string, corpus *handbook.Corpus) error
}

func (s *SnapshotStore) FindSnapshot(ctx context.Context, documentID string) (*handbook.Corpus, error) {
	return s.FindSnapshotFn(ctx, documentID)
}

func (s *SnapshotStore) SaveSnapshot(ctx context.Context, documentID string, corpus *handbook.Corpus) error {
	return s.SaveSnapshotFn(ctx, documentID, corpus)
}

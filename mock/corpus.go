package mock

import (
	"context"

	"github.com/fwojciec/handbook"
)

var _ handbook.CorpusService = (*CorpusService)(nil)

// CorpusService is a mock implementation of handbook.CorpusService.
type CorpusService struct {
	LoadCorpusFn func(ctx context.Context, documentID string) (*handbook.Corpus, error)
}

func (s *CorpusService) LoadCorpus(ctx context.Context, documentID string) (*handbook.Corpus, error) {
	return s.LoadCorpusFn(ctx, documentID)
}

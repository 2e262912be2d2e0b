package mock

import (
	"context"
	"sync/atomic"

	"github.com/fwojciec/handbook"
)

var _ handbook.Ingestor = (*Ingestor)(nil)

// Ingestor is a mock implementation of handbook.Ingestor.
// Calls counts invocations of Ingest.
type Ingestor struct {
	IngestFn func(ctx context.Context, source string) (*handbook.Corpus, error)

	Calls atomic.Int64
}

func (i *Ingestor) Ingest(ctx context.Context, source string) (*handbook.Corpus, error) {
	i.Calls.Add(1)
	return i.IngestFn(ctx, source)
}

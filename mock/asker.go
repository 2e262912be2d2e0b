package mock

import (
	"context"

	"github.com/fwojciec/handbook"
)

var _ handbook.Asker = (*Asker)(nil)

// Asker is a mock implementation of handbook.Asker.
type Asker struct {
	AskFn func(ctx context.Context, q *handbook.Question) (*handbook.Answer, error)
}

func (a *Asker) Ask(ctx context.Context, q *handbook.Question) (*handbook.Answer, error) {
	return a.AskFn(ctx, q)
}

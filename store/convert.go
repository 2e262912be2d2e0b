package store

import (
	"context"
	"sync"

	"github.com/fwojciec/handbook"
	"golang.org/x/sync/errgroup"
)

// DefaultConvertConcurrency is the number of documents converted at once.
const DefaultConvertConcurrency = 4

// ConvertOptions configures a batch conversion.
type ConvertOptions struct {
	// Force re-ingests documents that already have a snapshot.
	Force bool

	// Concurrency limits parallel conversions. Zero means
	// DefaultConvertConcurrency.
	Concurrency int

	// Progress, if set, receives events as documents finish.
	Progress ProgressFunc
}

// ConvertResult summarizes a batch conversion.
type ConvertResult struct {
	Converted int
	Skipped   int
	Failed    int
	Pages     int
	Bytes     int
}

// ProgressEvent reports progress during a conversion.
type ProgressEvent struct {
	Type       ProgressType
	Completed  int
	Total      int
	DocumentID string
	Pages      int
	Error      error
}

// ProgressType indicates the type of progress event.
type ProgressType int

const (
	ProgressStarted ProgressType = iota
	ProgressConverted
	ProgressSkipped
	ProgressFailed
	ProgressFinished
)

// ProgressFunc is a callback for reporting conversion progress.
type ProgressFunc func(event ProgressEvent)

type convertOutcome struct {
	typ   ProgressType
	pages int
	bytes int
	err   error
}

// Convert ingests documents ahead of time and writes their snapshots so the
// server can start without parsing PDFs. An empty ids list converts every
// configured document. Per-document failures are counted, not returned.
func (s *Store) Convert(ctx context.Context, ids []string, opts ConvertOptions) (*ConvertResult, error) {
	if s.Snapshots == nil {
		return nil, handbook.Errorf(handbook.EINVALID, "no snapshot store configured")
	}
	if len(ids) == 0 {
		ids = s.Catalog.IDs()
	}

	descs := make([]*handbook.Descriptor, len(ids))
	for i, id := range ids {
		d, err := s.Catalog.FindDocument(id)
		if err != nil {
			return nil, err
		}
		descs[i] = d
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConvertConcurrency
	}

	progress := opts.Progress
	if progress == nil {
		progress = func(ProgressEvent) {}
	}

	total := len(descs)
	progress(ProgressEvent{Type: ProgressStarted, Total: total})

	outcomes := make([]convertOutcome, total)
	var mu sync.Mutex // serializes progress callbacks
	completed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, d := range descs {
		g.Go(func() error {
			o := s.convertOne(gctx, d, opts.Force)
			outcomes[i] = o

			mu.Lock()
			defer mu.Unlock()
			completed++
			progress(ProgressEvent{
				Type:       o.typ,
				Completed:  completed,
				Total:      total,
				DocumentID: d.ID,
				Pages:      o.pages,
				Error:      o.err,
			})
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result ConvertResult
	for _, o := range outcomes {
		switch o.typ {
		case ProgressConverted:
			result.Converted++
			result.Pages += o.pages
			result.Bytes += o.bytes
		case ProgressSkipped:
			result.Skipped++
		case ProgressFailed:
			result.Failed++
		}
	}

	progress(ProgressEvent{Type: ProgressFinished, Completed: total, Total: total})

	return &result, nil
}

func (s *Store) convertOne(ctx context.Context, desc *handbook.Descriptor, force bool) convertOutcome {
	ctx, cancel := context.WithTimeout(ctx, s.ingestTimeout())
	defer cancel()

	if !force {
		if c, err := s.Snapshots.FindSnapshot(ctx, desc.ID); err == nil {
			return convertOutcome{typ: ProgressSkipped, pages: c.PageCount()}
		}
	}

	c, err := s.ingest(ctx, desc)
	if err != nil {
		return convertOutcome{typ: ProgressFailed, err: err}
	}
	if err := s.Snapshots.SaveSnapshot(ctx, desc.ID, c); err != nil {
		s.logger().Error("snapshot save failed", "document", desc.ID, "error", err)
		return convertOutcome{typ: ProgressFailed, err: err}
	}
	s.put(desc.ID, c)

	return convertOutcome{typ: ProgressConverted, pages: c.PageCount(), bytes: len(c.Text())}
}

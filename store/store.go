// Package store loads handbook corpora on demand and keeps them in memory
// for the life of the process.
package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fwojciec/handbook"
	"golang.org/x/sync/singleflight"
)

// Compile-time interface verification.
var _ handbook.CorpusService = (*Store)(nil)

// DefaultIngestTimeout bounds a single document load.
const DefaultIngestTimeout = 5 * time.Minute

// Store implements handbook.CorpusService. The first request for a document
// loads it from its snapshot, or ingests the source document when no usable
// snapshot exists; later requests share the cached corpus. Concurrent first
// requests for the same document trigger a single load.
type Store struct {
	Catalog   *handbook.Catalog
	Ingestor  handbook.Ingestor
	Snapshots handbook.SnapshotStore // optional
	Logger    *slog.Logger

	// IngestTimeout bounds each load. Zero means DefaultIngestTimeout.
	IngestTimeout time.Duration

	mu      sync.RWMutex
	corpora map[string]*handbook.Corpus
	group   singleflight.Group
}

// LoadCorpus returns the corpus for a document, loading it on first use.
// A failed load is not cached, so the next request retries it.
func (s *Store) LoadCorpus(ctx context.Context, documentID string) (*handbook.Corpus, error) {
	desc, err := s.Catalog.FindDocument(documentID)
	if err != nil {
		return nil, err
	}

	if c, ok := s.Cached(documentID); ok {
		return c, nil
	}

	// The load runs detached from the caller so that one cancelled request
	// does not fail the others waiting on the same document.
	loadCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(documentID, func() (any, error) {
		if c, ok := s.Cached(documentID); ok {
			return c, nil
		}
		c, err := s.load(loadCtx, desc)
		if err != nil {
			return nil, err
		}
		s.put(documentID, c)
		return c, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*handbook.Corpus), nil
	}
}

// Cached returns the corpus for a document if it has already been loaded.
func (s *Store) Cached(documentID string) (*handbook.Corpus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.corpora[documentID]
	return c, ok
}

func (s *Store) put(documentID string, c *handbook.Corpus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.corpora == nil {
		s.corpora = make(map[string]*handbook.Corpus)
	}
	s.corpora[documentID] = c
}

// load reads the snapshot if one is usable and falls back to ingestion.
func (s *Store) load(ctx context.Context, desc *handbook.Descriptor) (*handbook.Corpus, error) {
	ctx, cancel := context.WithTimeout(ctx, s.ingestTimeout())
	defer cancel()

	logger := s.logger().With("document", desc.ID)

	if s.Snapshots != nil {
		c, err := s.Snapshots.FindSnapshot(ctx, desc.ID)
		if err == nil {
			logger.Debug("snapshot loaded", "pages", c.PageCount())
			return c, nil
		}
		if handbook.ErrorCode(err) != handbook.ENOTFOUND {
			logger.Warn("snapshot unusable, re-ingesting", "error", err)
		}
	}

	c, err := s.ingest(ctx, desc)
	if err != nil {
		return nil, err
	}

	if s.Snapshots != nil {
		if err := s.Snapshots.SaveSnapshot(ctx, desc.ID, c); err != nil {
			logger.Warn("snapshot save failed", "error", err)
		}
	}
	return c, nil
}

// ingest parses the source document. Failures are logged with their cause
// and reported to callers without source paths.
func (s *Store) ingest(ctx context.Context, desc *handbook.Descriptor) (*handbook.Corpus, error) {
	start := time.Now()
	c, err := s.Ingestor.Ingest(ctx, desc.Source)
	if err != nil {
		s.logger().Error("ingest failed",
			"document", desc.ID,
			"source", desc.Source,
			"duration", time.Since(start),
			"error", err,
		)
		return nil, handbook.Errorf(handbook.EUNAVAILABLE, "handbook for %s is not available", desc.Name)
	}
	s.logger().Info("ingested",
		"document", desc.ID,
		"pages", c.PageCount(),
		"duration", time.Since(start),
	)
	return c, nil
}

func (s *Store) ingestTimeout() time.Duration {
	if s.IngestTimeout > 0 {
		return s.IngestTimeout
	}
	return DefaultIngestTimeout
}

func (s *Store) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.DiscardHandler)
}

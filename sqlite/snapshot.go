package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/fwojciec/handbook"
)

// Compile-time interface verification.
var _ handbook.SnapshotStore = (*SnapshotStore)(nil)

// SnapshotStore implements handbook.SnapshotStore using SQLite.
// Each document has at most one row holding the same flattened text the
// file store writes, plus a content hash checked on every read.
type SnapshotStore struct {
	db *DB
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// SnapshotInfo describes a stored snapshot without its content.
type SnapshotInfo struct {
	DocumentID  string
	PageCount   int
	ContentHash string
	CreatedAt   time.Time
}

// SnapshotFilter limits ListSnapshots results.
type SnapshotFilter struct {
	Limit  int
	Offset int
}

// FindSnapshot retrieves and verifies the snapshot for a document.
func (s *SnapshotStore) FindSnapshot(ctx context.Context, documentID string) (*handbook.Corpus, error) {
	var content, contentHash string

	err := s.db.QueryRowContext(ctx, `
		SELECT content, content_hash
		FROM snapshots
		WHERE document_id = ?
	`, documentID).Scan(&content, &contentHash)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, handbook.Errorf(handbook.ENOTFOUND, "no snapshot for %q", documentID)
	}
	if err != nil {
		return nil, err
	}

	if hashContent(content) != contentHash {
		return nil, handbook.Errorf(handbook.EMALFORMED, "snapshot for %q failed integrity check", documentID)
	}

	return handbook.ParseCorpus(content)
}

// SaveSnapshot inserts or replaces the snapshot for a document.
func (s *SnapshotStore) SaveSnapshot(ctx context.Context, documentID string, corpus *handbook.Corpus) error {
	if documentID == "" {
		return handbook.Errorf(handbook.EINVALID, "document ID required")
	}

	text := corpus.Text()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (document_id, content, content_hash, page_count, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			content = excluded.content,
			content_hash = excluded.content_hash,
			page_count = excluded.page_count,
			created_at = excluded.created_at
	`, documentID, text, hashContent(text), corpus.PageCount(), time.Now().UTC().Format(time.RFC3339))

	return err
}

// DeleteSnapshot removes the snapshot for a document.
func (s *SnapshotStore) DeleteSnapshot(ctx context.Context, documentID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE document_id = ?`, documentID)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return handbook.Errorf(handbook.ENOTFOUND, "no snapshot for %q", documentID)
	}
	return nil
}

// ListSnapshots returns stored snapshot metadata ordered by document ID.
func (s *SnapshotStore) ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]*SnapshotInfo, error) {
	var query strings.Builder
	query.WriteString(`
		SELECT document_id, page_count, content_hash, created_at
		FROM snapshots
		ORDER BY document_id`)

	var args []any
	appendPagination(&query, &args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []*SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		var createdAt string
		if err := rows.Scan(&info.DocumentID, &info.PageCount, &info.ContentHash, &createdAt); err != nil {
			return nil, err
		}
		if info.CreatedAt, err = parseRFC3339(createdAt, "created_at"); err != nil {
			return nil, err
		}
		infos = append(infos, &info)
	}
	return infos, rows.Err()
}

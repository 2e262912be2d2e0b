// Package fs provides file-based snapshot storage for handbook corpora.
package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fwojciec/handbook"
)

// Ensure SnapshotStore implements handbook.SnapshotStore at compile time.
var _ handbook.SnapshotStore = (*SnapshotStore)(nil)

// SnapshotStore keeps one UTF-8 text file per document in a directory,
// named handbook_<id>.txt and holding the corpus's flattened text.
// Files are written to a temporary name and renamed into place so readers
// never observe a partial snapshot.
type SnapshotStore struct {
	dir string
}

// NewSnapshotStore creates a new SnapshotStore rooted at dir.
// The directory is created on first save.
func NewSnapshotStore(dir string) *SnapshotStore {
	return &SnapshotStore{dir: dir}
}

// Path returns the snapshot file path for a document.
func (s *SnapshotStore) Path(documentID string) (string, error) {
	if documentID == "" || documentID == "." || documentID == ".." ||
		strings.ContainsAny(documentID, `/\`) {
		return "", handbook.Errorf(handbook.EINVALID, "invalid document ID %q", documentID)
	}
	return filepath.Join(s.dir, "handbook_"+documentID+".txt"), nil
}

// FindSnapshot reads and parses the snapshot for a document.
func (s *SnapshotStore) FindSnapshot(ctx context.Context, documentID string) (*handbook.Corpus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.Path(documentID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, handbook.Errorf(handbook.ENOTFOUND, "no snapshot for %q", documentID)
	} else if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	return handbook.ParseCorpus(string(data))
}

// SaveSnapshot atomically replaces the snapshot for a document.
func (s *SnapshotStore) SaveSnapshot(ctx context.Context, documentID string, corpus *handbook.Corpus) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.Path(documentID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.WriteString(corpus.Text()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}

// DeleteSnapshot removes the snapshot for a document.
// Returns ENOTFOUND if there is none.
func (s *SnapshotStore) DeleteSnapshot(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.Path(documentID)
	if err != nil {
		return err
	}

	if err := os.Remove(path); errors.Is(err, os.ErrNotExist) {
		return handbook.Errorf(handbook.ENOTFOUND, "no snapshot for %q", documentID)
	} else if err != nil {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	return nil
}

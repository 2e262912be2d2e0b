package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/fwojciec/handbook"
	"github.com/fwojciec/handbook/config"
	"github.com/fwojciec/handbook/sqlite"
	"github.com/fwojciec/handbook/store"
)

// SnapshotDeleter removes stored snapshots.
type SnapshotDeleter interface {
	DeleteSnapshot(ctx context.Context, documentID string) error
}

// SnapshotLister reports stored snapshot metadata.
type SnapshotLister interface {
	ListSnapshots(ctx context.Context, filter sqlite.SnapshotFilter) ([]*sqlite.SnapshotInfo, error)
}

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx          context.Context
	Stdout       io.Writer
	Stderr       io.Writer
	Logger       *slog.Logger
	Config       *config.Config
	Catalog      *handbook.Catalog
	Store        *store.Store
	Corpora      handbook.CorpusService
	Snapshots    handbook.SnapshotStore
	Deleter      SnapshotDeleter
	Lister       SnapshotLister
	Asker        handbook.Asker
	TokenCounter handbook.TokenCounter
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Verbose bool `short:"v" help:"Enable debug logging"`

	Serve   ServeCmd   `cmd:"" help:"Serve the chat API over HTTP"`
	Ask     AskCmd     `cmd:"" help:"Ask a question about a faculty handbook"`
	Convert ConvertCmd `cmd:"" help:"Convert handbook PDFs into text snapshots"`
	List    ListCmd    `cmd:"" help:"List configured handbooks and their snapshots"`
	Delete  DeleteCmd  `cmd:"" help:"Delete a handbook snapshot"`
	Context ContextCmd `cmd:"" help:"Show the handbook excerpt selected for a query"`
}

// ServeCmd is the "serve" subcommand.
type ServeCmd struct {
	Addr    string `help:"Listen address (overrides the configured port)"`
	Preload bool   `help:"Load every handbook before accepting requests"`
}

// AskCmd is the "ask" subcommand.
type AskCmd struct {
	Faculty    string `arg:"" help:"Faculty ID"`
	Question   string `arg:"" help:"Question to ask about the handbook"`
	Department string `short:"d" help:"Department ID"`
	Grade      string `short:"g" help:"Student grade, e.g. 2年"`
}

// ConvertCmd is the "convert" subcommand.
type ConvertCmd struct {
	Faculties   []string `arg:"" optional:"" help:"Faculty IDs (default: all)"`
	Force       bool     `short:"f" help:"Re-convert handbooks that already have a snapshot"`
	Concurrency int      `short:"c" help:"Concurrent conversions (default: from config)"`
}

// ListCmd is the "list" subcommand.
type ListCmd struct{}

// DeleteCmd is the "delete" subcommand.
type DeleteCmd struct {
	Faculty string `arg:"" help:"Faculty ID"`
	Force   bool   `help:"Confirm deletion"`
}

// ContextCmd is the "context" subcommand.
type ContextCmd struct {
	Faculty string `arg:"" help:"Faculty ID"`
	Query   string `arg:"" help:"Query used to select handbook lines"`
	Stats   bool   `short:"s" help:"Print only statistics, not the excerpt"`
}

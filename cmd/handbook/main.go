package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/handbook"
	"github.com/fwojciec/handbook/answer"
	"github.com/fwojciec/handbook/config"
	"github.com/fwojciec/handbook/fs"
	"github.com/fwojciec/handbook/gemini"
	"github.com/fwojciec/handbook/pdf"
	"github.com/fwojciec/handbook/poppler"
	"github.com/fwojciec/handbook/rate"
	hbslog "github.com/fwojciec/handbook/slog"
	"github.com/fwojciec/handbook/sqlite"
	"github.com/fwojciec/handbook/store"
	"github.com/joho/godotenv"
	"google.golang.org/genai"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A .env file is optional.
	_ = godotenv.Load()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Config file path. Set before calling Run().
	ConfigPath string

	// Getenv reads environment variables. Defaults to os.Getenv.
	Getenv func(string) string

	// SQLite database, open only when the sqlite snapshot backend is used.
	DB *sqlite.DB
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{
		ConfigPath: config.Path(os.Getenv),
		Getenv:     os.Getenv,
	}
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	if m.DB != nil {
		return m.DB.Close()
	}
	return nil
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("handbook"),
		kong.Description("Answer questions about university student handbooks."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'handbook --help' to see available commands")
	}

	if args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	cmd := strings.Fields(kongCtx.Command())[0]

	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	deps.Logger = logger

	getenv := m.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg, err := config.Load(m.ConfigPath, getenv)
	if err != nil {
		if handbook.ErrorCode(err) == handbook.ENOTFOUND {
			fmt.Fprintf(stderr, "Hint: Set %s to use a different config file\n", config.EnvConfig)
		}
		return fmt.Errorf("failed to load config: %w", err)
	}
	catalog, err := cfg.Catalog()
	if err != nil {
		return err
	}
	deps.Config = cfg
	deps.Catalog = catalog

	if err := m.openSnapshots(cfg, deps); err != nil {
		return err
	}
	defer m.Close()

	// Listing and deleting snapshots never ingest.
	var ingestor handbook.Ingestor
	if cmd != "list" && cmd != "delete" {
		ingestor, err = newIngestor(cfg, logger, stderr)
		if err != nil {
			return err
		}
		ingestor = hbslog.NewLoggingIngestor(ingestor, logger)
	}

	deps.Store = &store.Store{
		Catalog:       catalog,
		Ingestor:      ingestor,
		Snapshots:     deps.Snapshots,
		Logger:        logger,
		IngestTimeout: time.Duration(cfg.Ingest.Timeout),
	}
	deps.Corpora = deps.Store

	switch cmd {
	case "serve", "ask":
		asker, err := newAsker(ctx, cfg, catalog, deps.Store, logger, stderr)
		if err != nil {
			return err
		}
		deps.Asker = asker
	case "context":
		tokenCounter, err := gemini.NewTokenCounter(tokenizerModel)
		if err != nil {
			return fmt.Errorf("failed to create token counter: %w", err)
		}
		deps.TokenCounter = tokenCounter
	}

	return kongCtx.Run(deps)
}

// tokenizerModel is used for token counting. The local tokenizer supports
// a fixed set of models, so it does not follow the configured model.
const tokenizerModel = gemini.DefaultModel

func (m *Main) openSnapshots(cfg *config.Config, deps *Dependencies) error {
	switch cfg.Snapshots.Backend {
	case config.SnapshotFile:
		s := fs.NewSnapshotStore(cfg.Snapshots.Dir)
		deps.Snapshots = hbslog.NewLoggingSnapshotStore(s, deps.Logger)
		deps.Deleter = s
	case config.SnapshotSQLite:
		path := cfg.Snapshots.DBPath
		if path != ":memory:" {
			_ = os.MkdirAll(filepath.Dir(path), 0755)
		}
		m.DB = sqlite.NewDB(path)
		if err := m.DB.Open(); err != nil {
			m.DB = nil
			fmt.Fprintln(deps.Stderr, "Hint: Set snapshots.db_path in the config file to use a different database")
			return fmt.Errorf("failed to open database at %q: %w", path, err)
		}
		s := sqlite.NewSnapshotStore(m.DB)
		deps.Snapshots = hbslog.NewLoggingSnapshotStore(s, deps.Logger)
		deps.Deleter = s
		deps.Lister = s
	}
	return nil
}

func newIngestor(cfg *config.Config, logger *slog.Logger, stderr io.Writer) (handbook.Ingestor, error) {
	if cfg.Ingest.Engine == config.EnginePoppler {
		if err := poppler.CheckAvailable(); err != nil {
			fmt.Fprintln(stderr, poppler.InstallInstructions())
			return nil, err
		}
		return poppler.NewIngestor(logger), nil
	}
	return pdf.NewIngestor(), nil
}

func newAsker(ctx context.Context, cfg *config.Config, catalog *handbook.Catalog, corpora handbook.CorpusService, logger *slog.Logger, stderr io.Writer) (handbook.Asker, error) {
	if cfg.APIKey == "" {
		fmt.Fprintf(stderr, "%s environment variable not set. Get an API key at https://aistudio.google.com/apikey\n", config.EnvAPIKey)
		return nil, fmt.Errorf("%s not set. Get a key at https://aistudio.google.com/apikey", config.EnvAPIKey)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Hint: Check your %s is valid\n", config.EnvAPIKey)
		return nil, fmt.Errorf("failed to connect to Gemini API: %w", err)
	}

	limited := rate.NewCompleter(gemini.NewCompleter(client, cfg.Model.Name), cfg.Model.RequestsPerMinute, cfg.Model.Burst)
	limited.MaxWait = time.Duration(cfg.Model.MaxWait)

	svc := &answer.Service{
		Catalog:         catalog,
		Corpora:         corpora,
		Completer:       hbslog.NewLoggingCompleter(limited, logger),
		Institution:     cfg.Institution,
		MaxContextChars: cfg.Answer.MaxContextChars,
		ContextLines:    cfg.Answer.ContextLines,
		MaxHistory:      cfg.Answer.MaxHistory,
		Timeout:         time.Duration(cfg.Model.Timeout),
	}
	return hbslog.NewLoggingAsker(svc, logger), nil
}

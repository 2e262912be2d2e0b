// Package poppler extracts page text from PDF handbooks with the Poppler
// command line tools pdfinfo and pdftotext.
package poppler

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/fwojciec/handbook"
)

// Compile-time interface verification.
var _ handbook.Ingestor = (*Ingestor)(nil)

// ErrToolNotFound is returned by CheckAvailable when the Poppler tools are
// not installed.
var ErrToolNotFound = errors.New("pdfinfo/pdftotext not found in PATH")

// CheckAvailable reports whether the Poppler tools can be found.
func CheckAvailable() error {
	for _, name := range []string{"pdfinfo", "pdftotext"} {
		if _, err := exec.LookPath(name); err != nil {
			return ErrToolNotFound
		}
	}
	return nil
}

// InstallInstructions returns how to install the Poppler tools.
func InstallInstructions() string {
	return "pdftotext is part of Poppler. Install with:\n" +
		"  macOS: brew install poppler\n" +
		"  Debian/Ubuntu: apt install poppler-utils"
}

// CommandRunner runs an external command and returns its standard output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements CommandRunner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Ingestor converts PDFs by running pdftotext once per page, which keeps
// page boundaries exact even when a page has no text layer.
type Ingestor struct {
	runner CommandRunner
	logger *slog.Logger
}

// NewIngestor creates an Ingestor that runs the installed Poppler tools.
func NewIngestor(logger *slog.Logger) *Ingestor {
	return NewIngestorWithRunner(ExecRunner{}, logger)
}

// NewIngestorWithRunner creates an Ingestor using runner for commands.
func NewIngestorWithRunner(runner CommandRunner, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Ingestor{runner: runner, logger: logger}
}

// Ingest extracts every page of the PDF at source. A page that fails to
// extract is recorded as empty so the remaining pages keep their numbers.
func (i *Ingestor) Ingest(ctx context.Context, source string) (*handbook.Corpus, error) {
	if _, err := os.Stat(source); err != nil {
		return nil, handbook.Errorf(handbook.ENOTFOUND, "handbook document not found")
	}

	n, err := i.pageCount(ctx, source)
	if err != nil {
		return nil, err
	}

	pages := make([]handbook.PageRecord, 0, n)
	for num := 1; num <= n; num++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p := strconv.Itoa(num)
		out, err := i.runner.Run(ctx, "pdftotext", "-f", p, "-l", p, "-enc", "UTF-8", source, "-")
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			i.logger.Warn("page extraction failed", "page", num, "error", err)
			out = nil
		}
		pages = append(pages, handbook.PageRecord{
			Page:    num,
			Content: strings.TrimRight(string(out), "\f \t\r\n"),
		})
	}

	return handbook.NewCorpus(pages)
}

func (i *Ingestor) pageCount(ctx context.Context, source string) (int, error) {
	out, err := i.runner.Run(ctx, "pdfinfo", source)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		i.logger.Warn("pdfinfo failed", "error", err)
		return 0, handbook.Errorf(handbook.EMALFORMED, "handbook document could not be parsed")
	}

	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok || strings.TrimSpace(key) != "Pages" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 1 {
			break
		}
		return n, nil
	}
	return 0, handbook.Errorf(handbook.EMALFORMED, "handbook document has no pages")
}

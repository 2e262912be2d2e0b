package handbook

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

// PageRecord holds the text extracted from one page of a source document.
type PageRecord struct {
	Page    int    `json:"page"`
	Content string `json:"content"`
}

// Corpus is the ordered, page-tagged text of one handbook document.
// A Corpus is immutable once constructed and safe for concurrent use.
type Corpus struct {
	pages []PageRecord
	text  string
}

// NewCorpus validates pages and returns a Corpus over a copy of them.
// Pages must be non-empty and numbered 1..N in order.
func NewCorpus(pages []PageRecord) (*Corpus, error) {
	if len(pages) == 0 {
		return nil, Errorf(EMALFORMED, "document has no pages")
	}
	for i, p := range pages {
		if p.Page != i+1 {
			return nil, Errorf(EMALFORMED, "page %d out of order (expected page %d)", p.Page, i+1)
		}
	}

	cp := make([]PageRecord, len(pages))
	copy(cp, pages)
	return &Corpus{pages: cp, text: FlattenPages(cp)}, nil
}

// Pages returns a copy of the page records in page order.
func (c *Corpus) Pages() []PageRecord {
	cp := make([]PageRecord, len(c.pages))
	copy(cp, c.pages)
	return cp
}

// PageCount returns the number of pages in the corpus.
func (c *Corpus) PageCount() int {
	return len(c.pages)
}

// Text returns the flattened, page-tagged text of the corpus.
// This is also the snapshot format.
func (c *Corpus) Text() string {
	return c.text
}

// PageMarker returns the marker line that opens page n in flattened text.
func PageMarker(n int) string {
	return "--- PAGE " + strconv.Itoa(n) + " ---"
}

// FlattenPages renders pages as "--- PAGE {n} ---\n{content}\n\n" in order.
func FlattenPages(pages []PageRecord) string {
	var sb strings.Builder
	for _, p := range pages {
		sb.WriteString(PageMarker(p.Page))
		sb.WriteString("\n")
		sb.WriteString(p.Content)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

var markerRe = regexp.MustCompile(`(?m)^--- PAGE (\d+) ---\n`)

// ParseCorpus reconstructs a Corpus from its flattened text.
// Returns EMALFORMED unless re-flattening the parsed pages reproduces text
// byte for byte.
func ParseCorpus(text string) (*Corpus, error) {
	locs := markerRe.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil, Errorf(EMALFORMED, "snapshot contains no page markers")
	}
	if locs[0][0] != 0 {
		return nil, Errorf(EMALFORMED, "snapshot does not start with a page marker")
	}

	pages := make([]PageRecord, 0, len(locs))
	for i, loc := range locs {
		n, err := strconv.Atoi(text[loc[2]:loc[3]])
		if err != nil {
			return nil, Errorf(EMALFORMED, "invalid page number %q", text[loc[2]:loc[3]])
		}

		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		body := text[loc[1]:end]
		if !strings.HasSuffix(body, "\n\n") {
			return nil, Errorf(EMALFORMED, "page %d is not terminated by a blank line", n)
		}
		pages = append(pages, PageRecord{Page: n, Content: strings.TrimSuffix(body, "\n\n")})
	}

	c, err := NewCorpus(pages)
	if err != nil {
		return nil, err
	}
	if c.text != text {
		return nil, Errorf(EMALFORMED, "snapshot is not in canonical form")
	}
	return c, nil
}

// Ingestor parses a paginated source document into a Corpus.
type Ingestor interface {
	// Ingest reads the document at source page by page.
	// Returns ENOTFOUND if the source is missing or unreadable and
	// EMALFORMED if it cannot be parsed.
	Ingest(ctx context.Context, source string) (*Corpus, error)
}

// SnapshotStore persists flattened corpora so that documents are not
// re-parsed after a restart.
type SnapshotStore interface {
	// FindSnapshot returns the persisted corpus for a document.
	// Returns ENOTFOUND if no snapshot exists and EMALFORMED if it is corrupt.
	FindSnapshot(ctx context.Context, documentID string) (*Corpus, error)

	// SaveSnapshot persists the corpus, replacing any previous snapshot.
	SaveSnapshot(ctx context.Context, documentID string, corpus *Corpus) error
}

// CorpusService serves corpora by document identifier.
type CorpusService interface {
	// LoadCorpus returns the cached corpus for a document, loading it from a
	// snapshot or by ingestion on first use.
	// Returns ENOTFOUND if the document is not configured and EUNAVAILABLE
	// if it cannot be loaded.
	LoadCorpus(ctx context.Context, documentID string) (*Corpus, error)
}

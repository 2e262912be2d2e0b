package handbook

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Defaults for relevance extraction.
const (
	DefaultContextLines    = 3
	DefaultMaxContextChars = 30000
)

// TruncationMarker is appended to extracted context cut at the size bound.
const TruncationMarker = "\n\n...(以下省略)"

// RelevantContext is the excerpt of a corpus sent to the language model.
type RelevantContext struct {
	Text         string
	Keywords     []string
	MatchedLines int
	Truncated    bool
}

// normalizer folds text for keyword matching. A new one is needed per call
// because cases.Caser is stateful.
type normalizer struct {
	lower cases.Caser
}

func newNormalizer() *normalizer {
	return &normalizer{lower: cases.Lower(language.Und)}
}

// Full-width digits and letters fold to ASCII so "９時" matches "9時".
func (n *normalizer) normalize(s string) string {
	return n.lower.String(norm.NFKC.String(s))
}

// Keywords splits a query into normalized keywords longer than one
// character. Duplicates are dropped; first occurrence order is kept.
func Keywords(query string) []string {
	n := newNormalizer()
	var keywords []string
	seen := make(map[string]bool)
	for _, tok := range strings.Fields(n.normalize(query)) {
		if utf8.RuneCountInString(tok) <= 1 || seen[tok] {
			continue
		}
		seen[tok] = true
		keywords = append(keywords, tok)
	}
	return keywords
}

// RelevantLines returns the ascending indices of lines containing any of
// the keywords, each widened by window lines on both sides. Keywords must
// already be normalized (see Keywords).
func RelevantLines(lines []string, keywords []string, window int) []int {
	if len(keywords) == 0 || len(lines) == 0 {
		return nil
	}
	if window < 0 {
		window = 0
	}

	n := newNormalizer()
	selected := make([]bool, len(lines))
	count := 0
	for i, line := range lines {
		if !containsAny(n.normalize(line), keywords) {
			continue
		}
		lo, hi := max(i-window, 0), min(i+window, len(lines)-1)
		for j := lo; j <= hi; j++ {
			if !selected[j] {
				selected[j] = true
				count++
			}
		}
	}

	indices := make([]int, 0, count)
	for i, ok := range selected {
		if ok {
			indices = append(indices, i)
		}
	}
	return indices
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// Extract selects the part of corpusText relevant to query using
// DefaultContextLines of surrounding context.
func Extract(corpusText, query string, maxChars int) RelevantContext {
	return ExtractWindow(corpusText, query, maxChars, DefaultContextLines)
}

// ExtractWindow selects the lines of corpusText that match the query's
// keywords plus window lines around each match, in document order, bounded
// by maxChars characters. With no keywords or no match it falls back to the
// beginning of the corpus.
func ExtractWindow(corpusText, query string, maxChars, window int) RelevantContext {
	keywords := Keywords(query)
	if len(keywords) == 0 {
		text, truncated := Truncate(corpusText, maxChars)
		return RelevantContext{Text: text, Truncated: truncated}
	}

	lines := strings.Split(corpusText, "\n")
	indices := RelevantLines(lines, keywords, window)
	if len(indices) == 0 {
		text, truncated := Truncate(corpusText, maxChars)
		return RelevantContext{Text: text, Keywords: keywords, Truncated: truncated}
	}

	selected := make([]string, len(indices))
	for i, idx := range indices {
		selected[i] = lines[idx]
	}
	text, truncated := Truncate(strings.Join(selected, "\n"), maxChars)
	return RelevantContext{
		Text:         text,
		Keywords:     keywords,
		MatchedLines: len(indices),
		Truncated:    truncated,
	}
}

// Truncate cuts s to at most maxChars characters and appends
// TruncationMarker if anything was cut.
func Truncate(s string, maxChars int) (string, bool) {
	if maxChars < 0 {
		maxChars = 0
	}
	if utf8.RuneCountInString(s) <= maxChars {
		return s, false
	}

	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i] + TruncationMarker, true
		}
		n++
	}
	return s, false
}

// Package answer answers handbook questions by pairing the relevant part of
// a handbook with a language model.
package answer

import (
	"context"
	"strings"
	"time"

	"github.com/fwojciec/handbook"
)

// Compile-time interface verification.
var _ handbook.Asker = (*Service)(nil)

// Defaults applied when the corresponding Service field is zero.
const (
	DefaultTimeout    = 60 * time.Second
	DefaultMaxHistory = 10
)

// FallbackAnswer is returned when the model produces no text.
const FallbackAnswer = "AIから有効な回答を得られませんでした。"

// Service implements handbook.Asker.
type Service struct {
	Catalog   *handbook.Catalog
	Corpora   handbook.CorpusService
	Completer handbook.Completer

	// Institution prefixes the document name in the prompt, e.g. a
	// university name. Optional.
	Institution string

	// MaxContextChars bounds the handbook excerpt in runes.
	// Zero means handbook.DefaultMaxContextChars.
	MaxContextChars int

	// ContextLines is the number of neighbouring lines kept around each
	// match. Zero means handbook.DefaultContextLines.
	ContextLines int

	// MaxHistory is the number of most recent conversation turns included.
	// Zero means DefaultMaxHistory; negative disables history.
	MaxHistory int

	// Timeout bounds the model call. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Ask answers q from the relevant excerpt of the selected handbook.
func (s *Service) Ask(ctx context.Context, q *handbook.Question) (*handbook.Answer, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	doc, err := s.Catalog.FindDocument(q.DocumentID)
	if err != nil {
		return nil, err
	}

	var dept *handbook.Department
	if q.DepartmentID != "" {
		_, d, err := s.Catalog.FindDepartment(q.DocumentID, q.DepartmentID)
		if err != nil {
			return nil, err
		}
		dept = &d
	}

	corpus, err := s.Corpora.LoadCorpus(ctx, doc.ID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		switch handbook.ErrorCode(err) {
		case handbook.ENOTFOUND, handbook.EUNAVAILABLE:
			return nil, err
		}
		return nil, handbook.Errorf(handbook.EUNAVAILABLE, "handbook for %s is not available", doc.Name)
	}

	excerpt := handbook.ExtractWindow(corpus.Text(), q.Message, s.maxContextChars(), s.contextLines())

	prompt := BuildPrompt(PromptInput{
		Institution: s.Institution,
		Document:    doc,
		Department:  dept,
		Grade:       q.Grade,
		Excerpt:     excerpt,
		History:     s.recentHistory(q.History),
		Question:    q.Message,
	})

	text, err := s.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(text) == "" {
		text = FallbackAnswer
	}
	return &handbook.Answer{Text: text, Truncated: excerpt.Truncated}, nil
}

func (s *Service) complete(ctx context.Context, prompt string) (string, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text, err := s.Completer.Complete(ctx, prompt)
	if err == nil {
		return text, nil
	}

	if handbook.ErrorCode(err) == handbook.ERATELIMIT {
		return "", handbook.RateLimitf(handbook.RetryAfter(err), "%s", handbook.ErrorMessage(err))
	}
	return "", handbook.Errorf(handbook.EUPSTREAM, "failed to get a response from the model")
}

func (s *Service) recentHistory(turns []handbook.Turn) []handbook.Turn {
	n := s.MaxHistory
	if n == 0 {
		n = DefaultMaxHistory
	}
	if n < 0 {
		return nil
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return turns
}

func (s *Service) maxContextChars() int {
	if s.MaxContextChars > 0 {
		return s.MaxContextChars
	}
	return handbook.DefaultMaxContextChars
}

func (s *Service) contextLines() int {
	if s.ContextLines > 0 {
		return s.ContextLines
	}
	return handbook.DefaultContextLines
}

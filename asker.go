package handbook

import (
	"context"
	"strings"
)

// Turn is one earlier message of the conversation shown in the chat form.
type Turn struct {
	Content string `json:"content"`
	IsUser  bool   `json:"isUser"`
}

// Question is a user's question about one handbook.
type Question struct {
	Message      string `json:"message"`
	DocumentID   string `json:"faculty"`
	DepartmentID string `json:"department,omitempty"`
	Grade        string `json:"grade,omitempty"`
	History      []Turn `json:"history,omitempty"`
}

// Validate returns an error if the question is missing required fields.
func (q *Question) Validate() error {
	if strings.TrimSpace(q.Message) == "" {
		return Errorf(EINVALID, "message required")
	}
	if q.DocumentID == "" {
		return Errorf(EINVALID, "faculty required")
	}
	return nil
}

// Answer is the model's response, expected to cite handbook page numbers.
// Citations are not verified.
type Answer struct {
	Text string `json:"response"`

	// Truncated reports whether the handbook excerpt hit the size bound.
	Truncated bool `json:"-"`
}

// Asker answers natural language questions about handbooks.
type Asker interface {
	// Ask answers a question from the relevant part of the selected handbook.
	// Returns EINVALID for incomplete questions, ENOTFOUND for unknown
	// faculties or departments, EUNAVAILABLE if the handbook cannot be
	// loaded, ERATELIMIT when the model quota is exhausted and EUPSTREAM for
	// other model failures.
	Ask(ctx context.Context, q *Question) (*Answer, error)
}

// Completer sends a single prompt to a large language model.
type Completer interface {
	// Complete returns the model's text response.
	// Returns ERATELIMIT when the provider reports quota exhaustion.
	Complete(ctx context.Context, prompt string) (string, error)
}

// TokenCounter counts tokens in text for a specific model.
type TokenCounter interface {
	CountTokens(ctx context.Context, text string) (int, error)
}

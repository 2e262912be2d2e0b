// Package gemini implements the model-facing interfaces with Google Gemini.
package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fwojciec/handbook"
	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// Ensure Completer implements handbook.Completer at compile time.
var _ handbook.Completer = (*Completer)(nil)

// DefaultRetryDelays returns the backoff delays after transient server
// errors: 1s, 2s.
func DefaultRetryDelays() []time.Duration {
	return []time.Duration{1 * time.Second, 2 * time.Second}
}

// Completer implements handbook.Completer using Google Gemini.
type Completer struct {
	client *genai.Client
	model  string

	// RetryDelays are waited between attempts after a transient server
	// error. Rate limit errors are never retried here.
	RetryDelays []time.Duration
}

// NewCompleter creates a new Completer. An empty model means DefaultModel.
func NewCompleter(client *genai.Client, model string) *Completer {
	if model == "" {
		model = DefaultModel
	}
	return &Completer{client: client, model: model, RetryDelays: DefaultRetryDelays()}
}

// Model returns the model name used for completions.
func (c *Completer) Model() string {
	return c.model
}

// Complete sends prompt as a single user turn and returns the response text.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	for attempt := 0; ; attempt++ {
		text, err := c.generate(ctx, prompt)
		if err == nil {
			return text, nil
		}
		if !isTransient(err) || attempt >= len(c.RetryDelays) {
			return "", ClassifyError(err)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.RetryDelays[attempt]):
		}
	}
}

func (c *Completer) generate(ctx context.Context, prompt string) (string, error) {
	result, err := c.client.Models.GenerateContent(ctx, c.model,
		[]*genai.Content{genai.NewContentFromText(prompt, "user")},
		BuildConfig(),
	)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", handbook.Errorf(handbook.EINTERNAL, "gemini returned nil result")
	}
	return result.Text(), nil
}

// BuildConfig returns the GenerateContentConfig for Gemini API calls.
func BuildConfig() *genai.GenerateContentConfig {
	temp := float32(0.4)
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{
				Text: "You answer questions about university student handbooks. Use only the handbook excerpt in the prompt, cite the page numbers it marks, and say so plainly when the excerpt does not contain the answer.",
			}},
		},
		Temperature: &temp,
	}
}

// ClassifyError converts quota and rate limit failures into ERATELIMIT
// errors carrying the server's retry delay when it sent one. Other errors
// are returned unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	if apiErr, ok := asAPIError(err); ok {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED" {
			return handbook.RateLimitf(retryDelay(apiErr.Details), "model quota exceeded")
		}
		return err
	}

	msg := err.Error()
	if strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(strings.ToLower(msg), "quota") {
		return handbook.RateLimitf(0, "model quota exceeded")
	}
	return err
}

func asAPIError(err error) (genai.APIError, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	var apiPtr *genai.APIError
	if errors.As(err, &apiPtr) && apiPtr != nil {
		return *apiPtr, true
	}
	return genai.APIError{}, false
}

// isTransient reports whether err is a server-side failure worth retrying.
func isTransient(err error) bool {
	apiErr, ok := asAPIError(err)
	if !ok {
		return false
	}
	switch apiErr.Code {
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryDelay reads the google.rpc.RetryInfo detail, e.g. "17s".
// It returns zero when the detail is absent or unparsable.
func retryDelay(details []map[string]any) time.Duration {
	for _, d := range details {
		typ, _ := d["@type"].(string)
		if !strings.HasSuffix(typ, "google.rpc.RetryInfo") {
			continue
		}
		s, _ := d["retryDelay"].(string)
		if v, err := time.ParseDuration(s); err == nil && v > 0 {
			return v
		}
	}
	return 0
}

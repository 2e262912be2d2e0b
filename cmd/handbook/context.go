package main

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fwojciec/handbook"
)

// Run executes the context command. It prints the excerpt the answer
// service would send to the model for the same question.
func (c *ContextCmd) Run(deps *Dependencies) error {
	if _, err := deps.Catalog.FindDocument(c.Faculty); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s. Use 'handbook list' to see available faculties.\n", handbook.ErrorMessage(err))
		return err
	}

	corpus, err := deps.Corpora.LoadCorpus(deps.Ctx, c.Faculty)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", handbook.ErrorMessage(err))
		return err
	}

	maxChars, window := handbook.DefaultMaxContextChars, handbook.DefaultContextLines
	if deps.Config != nil {
		if deps.Config.Answer.MaxContextChars > 0 {
			maxChars = deps.Config.Answer.MaxContextChars
		}
		if deps.Config.Answer.ContextLines > 0 {
			window = deps.Config.Answer.ContextLines
		}
	}

	rc := handbook.ExtractWindow(corpus.Text(), c.Query, maxChars, window)

	stats := deps.Stderr
	if c.Stats {
		stats = deps.Stdout
	} else {
		fmt.Fprintln(deps.Stdout, rc.Text)
	}

	fmt.Fprintf(stats, "keywords: %s\n", strings.Join(rc.Keywords, ", "))
	fmt.Fprintf(stats, "matched lines: %d\n", rc.MatchedLines)
	fmt.Fprintf(stats, "characters: %d of %d (truncated: %t)\n", utf8.RuneCountInString(rc.Text), maxChars, rc.Truncated)

	if deps.TokenCounter != nil {
		tokens, err := deps.TokenCounter.CountTokens(deps.Ctx, rc.Text)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error counting tokens: %v\n", err)
			return err
		}
		fmt.Fprintf(stats, "size: %s\n", FormatTokens(tokens))
	}
	return nil
}

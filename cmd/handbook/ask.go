package main

import (
	"fmt"

	"github.com/fwojciec/handbook"
)

// Run executes the ask command.
func (c *AskCmd) Run(deps *Dependencies) error {
	q := &handbook.Question{
		Message:      c.Question,
		DocumentID:   c.Faculty,
		DepartmentID: c.Department,
		Grade:        c.Grade,
	}

	answer, err := deps.Asker.Ask(deps.Ctx, q)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", handbook.ErrorMessage(err))
		switch handbook.ErrorCode(err) {
		case handbook.ENOTFOUND:
			fmt.Fprintln(deps.Stderr, "Use 'handbook list' to see available faculties.")
		case handbook.ERATELIMIT:
			fmt.Fprintf(deps.Stderr, "Retry after %s.\n", handbook.RetryAfter(err))
		}
		return err
	}

	fmt.Fprintln(deps.Stdout, answer.Text)
	if answer.Truncated {
		fmt.Fprintln(deps.Stderr, "note: the handbook excerpt was truncated")
	}
	return nil
}

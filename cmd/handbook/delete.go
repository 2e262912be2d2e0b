package main

import (
	"fmt"

	"github.com/fwojciec/handbook"
)

// Run executes the delete command.
func (c *DeleteCmd) Run(deps *Dependencies) error {
	if !c.Force {
		fmt.Fprintf(deps.Stderr, "error: use --force to confirm deletion\n")
		return handbook.Errorf(handbook.EINVALID, "use --force to confirm deletion")
	}

	if _, err := deps.Catalog.FindDocument(c.Faculty); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s. Use 'handbook list' to see available faculties.\n", handbook.ErrorMessage(err))
		return err
	}

	if deps.Deleter == nil {
		fmt.Fprintln(deps.Stderr, "error: snapshots are disabled")
		return handbook.Errorf(handbook.EINVALID, "snapshots are disabled")
	}

	if err := deps.Deleter.DeleteSnapshot(deps.Ctx, c.Faculty); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", handbook.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Deleted snapshot for %q\n", c.Faculty)
	return nil
}

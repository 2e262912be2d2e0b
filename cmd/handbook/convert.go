package main

import (
	"fmt"

	"github.com/fwojciec/handbook"
	"github.com/fwojciec/handbook/store"
)

// Run executes the convert command.
func (c *ConvertCmd) Run(deps *Dependencies) error {
	concurrency := c.Concurrency
	if concurrency == 0 && deps.Config != nil {
		concurrency = deps.Config.Ingest.Concurrency
	}

	progress := func(event store.ProgressEvent) {
		switch event.Type {
		case store.ProgressStarted:
			fmt.Fprintf(deps.Stdout, "Converting %d handbooks\n", event.Total)
		case store.ProgressConverted:
			fmt.Fprintf(deps.Stdout, "  [%d/%d] %s: %d pages\n", event.Completed, event.Total, event.DocumentID, event.Pages)
		case store.ProgressSkipped:
			fmt.Fprintf(deps.Stdout, "  [%d/%d] %s: snapshot exists, skipped\n", event.Completed, event.Total, event.DocumentID)
		case store.ProgressFailed:
			fmt.Fprintf(deps.Stderr, "  [%d/%d] %s: %s\n", event.Completed, event.Total, event.DocumentID, handbook.ErrorMessage(event.Error))
		case store.ProgressFinished:
			// Summary printed after conversion completes
		}
	}

	result, err := deps.Store.Convert(deps.Ctx, c.Faculties, store.ConvertOptions{
		Force:       c.Force,
		Concurrency: concurrency,
		Progress:    progress,
	})
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", handbook.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Converted %d, skipped %d, failed %d (%d pages, %s)\n",
		result.Converted, result.Skipped, result.Failed, result.Pages, FormatBytes(result.Bytes))

	if result.Failed > 0 {
		return handbook.Errorf(handbook.EUNAVAILABLE, "%d handbooks failed to convert", result.Failed)
	}
	return nil
}

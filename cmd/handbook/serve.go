package main

import (
	"fmt"
	"time"

	"github.com/fwojciec/handbook"
	hbhttp "github.com/fwojciec/handbook/http"
)

// Run executes the serve command. It blocks until the context is cancelled.
func (c *ServeCmd) Run(deps *Dependencies) error {
	addr := c.Addr
	if addr == "" {
		addr = deps.Config.Server.Addr()
	}

	if c.Preload {
		c.preload(deps)
	}

	opts := []hbhttp.Option{
		hbhttp.WithAddr(addr),
		hbhttp.WithTimeouts(time.Duration(deps.Config.Server.ReadTimeout), time.Duration(deps.Config.Server.WriteTimeout)),
	}
	if deps.Logger != nil {
		opts = append(opts, hbhttp.WithLogger(deps.Logger))
	}
	if len(deps.Config.Server.AllowOrigins) > 0 {
		opts = append(opts, hbhttp.WithAllowOrigins(deps.Config.Server.AllowOrigins...))
	}

	srv := hbhttp.NewServer(deps.Asker, deps.Catalog, opts...)
	if err := srv.Open(); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %v\n", err)
		return err
	}

	fmt.Fprintf(deps.Stdout, "Listening on %s\n", srv.Addr())
	<-deps.Ctx.Done()

	fmt.Fprintln(deps.Stdout, "Shutting down")
	return srv.Close()
}

// preload loads every handbook so the first questions do not pay for
// ingestion. Failures are reported and retried on first use.
func (c *ServeCmd) preload(deps *Dependencies) {
	for _, id := range deps.Catalog.IDs() {
		corpus, err := deps.Corpora.LoadCorpus(deps.Ctx, id)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "  skip %s: %s\n", id, handbook.ErrorMessage(err))
			continue
		}
		fmt.Fprintf(deps.Stdout, "  Loaded %s (%d pages)\n", id, corpus.PageCount())
	}
}

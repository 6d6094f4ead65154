// Command importer loads a CSV export into a content repository blueprint.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(os.Stdout)
	if err := a.root().ExecuteContext(ctx); err != nil {
		stop()
		a.log.Fatal().
			Err(err).
			Strs("hints", errors.GetAllHints(err)).
			Msg("Import failed")
	}
}

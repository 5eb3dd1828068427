// Command datoms runs scenario tests, schema validation, inspection and
// benchmarks against the in-memory datom store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/roach88/datoms/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(cli.GetExitCode(err))
	}
}

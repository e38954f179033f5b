package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		// Ctrl-C during a run already logged its own summary.
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "coworker: %v\n", err)
		}
		os.Exit(1)
	}
}

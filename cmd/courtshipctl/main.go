// courtshipctl runs repeated two-sided matching market simulations and inspects their results.
//
// Usage:
//
//	courtshipctl run [--config run.yaml] [--seed N] [--episodes N] [--track-from N]
//	courtshipctl runs [--limit N]
//	courtshipctl agents --run-id <id>|--latest [--role man|woman]
//	courtshipctl report --run-id <id>|--latest
//	courtshipctl qtable --run-id <id>|--latest --agent man_0 [--kind send|receive]
//	courtshipctl episodes --run-id <id>|--latest [--limit N]
//	courtshipctl export --run-id <id>|--latest [--out dir]
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

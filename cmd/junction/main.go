// junction runs and drives the junction directory and barrier services.
//
// Usage:
//
//	junction directory serve --participants 3
//	junction directory lookup <key> --server host:7500
//	junction barrier serve --participants 3
//	junction barrier await --id web-1 --callback 10.0.0.5:7001
//	junction config validate --config junction.yaml
//	junction version
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sufield/junction/internal/cli"
)

// Exit codes
const (
	exitOK       = 0
	exitRuntime  = 1
	exitUsage    = 2
	exitConfig   = 3
	exitNotFound = 4
	exitInternal = 5
)

func main() {
	err := cli.Execute(context.Background())
	if code := exitCode(err); code != exitOK {
		fmt.Fprintf(os.Stderr, "Error: %s\n", cli.RedactError(err))
		os.Exit(code)
	}
}

// exitCode classifies err. Interruption by a signal is a clean exit.
func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return exitOK
	case errors.Is(err, cli.ErrUsage):
		return exitUsage
	case errors.Is(err, cli.ErrConfig):
		return exitConfig
	case errors.Is(err, cli.ErrNotFound):
		return exitNotFound
	case errors.Is(err, cli.ErrInternal):
		return exitInternal
	default:
		return exitRuntime
	}
}

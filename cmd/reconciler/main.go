package main

import (
	"fmt"
	"os"

	"marketplace-profit-reconciler/cmd/reconciler/cmd"
	"marketplace-profit-reconciler/pkg/errors"
)

// Version information set by build flags
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, date)

	if err := cmd.Execute(); err != nil {
		exitCode := 1
		if reconcilerErr, ok := errors.AsReconcilerError(err); ok {
			exitCode = reconcilerErr.GetExitCode()
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode)
	}
}

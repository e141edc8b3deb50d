package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Exit codes. Scripts key off these, so keep them stable.
const (
	exitOK           = 0
	exitUnexpected   = 1
	exitUsage        = 2
	exitConfig       = 3
	exitUnreachable  = 4
	exitPartialBatch = 5
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}

	var usage *usageError
	if errors.As(err, &usage) {
		return exitUsage
	}
	var cfgErr *configError
	if errors.As(err, &cfgErr) {
		return exitConfig
	}
	var partial *partialBatchError
	if errors.As(err, &partial) {
		return exitPartialBatch
	}
	var connect *connectError
	if errors.As(err, &connect) {
		return exitUnreachable
	}

	var apiErr *apiError
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case "config_invalid", "config_missing":
			return exitUsage
		case "catalog_unreachable", "source_unreachable", "timeout":
			return exitUnreachable
		}
	}
	return exitUnexpected
}

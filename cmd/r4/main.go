// Package main is the entry point for the r4 binary.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jwiseman/r4/internal/buildinfo"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

func main() {
	buildinfo.Set(version, commit, date, builtBy)

	// Commands r4 does not implement itself go to stock p4 untouched, so
	// r4 works as a drop-in replacement for p4.
	if code, handled := maybePassThrough(os.Args); handled {
		os.Exit(code)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "r4: %v\n", err)
		os.Exit(1)
	}
}

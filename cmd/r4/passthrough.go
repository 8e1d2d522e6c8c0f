package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/jwiseman/r4/internal/config"
)

// customCommands names the subcommands r4 implements itself.
var customCommands = map[string]bool{
	"grep":    true,
	"status":  true,
	"help":    true,
	"version": true,
}

// ownFlags names r4's global flags. Any other leading option belongs to
// p4 itself (-c client, -p port, ...) and must be forwarded, not parsed.
var ownFlags = map[string]bool{
	"--help":        true,
	"-h":            true,
	"--version":     true,
	"--config-file": true,
	"--debug-log":   true,
	"--p4-bin":      true,
	"--color":       true,
}

// maybePassThrough decides whether argv names a stock p4 command. Custom
// subcommands and r4 flags stay in-process; everything else, including a
// bare "r4", is forwarded wholesale with stdio attached.
func maybePassThrough(argv []string) (int, bool) {
	if isCustomCommand(argv) {
		return 0, false
	}
	if len(argv) < 2 {
		return passThrough(passThroughBin(), nil), true
	}
	return passThrough(passThroughBin(), argv[1:]), true
}

// isCustomCommand reports whether argv names one of r4's own
// subcommands or begins with one of r4's own global flags.
func isCustomCommand(argv []string) bool {
	if len(argv) < 2 {
		return false
	}
	first := argv[1]
	if customCommands[first] {
		return true
	}
	// --color=never style: match on the flag name alone.
	if eq := strings.Index(first, "="); eq >= 0 {
		first = first[:eq]
	}
	return ownFlags[first]
}

func passThroughBin() string {
	cfg, err := config.LoadConfig("")
	if err != nil || cfg.P4Bin == "" {
		return "p4"
	}
	return cfg.P4Bin
}

// newCommand is swapped in tests.
var newCommand = exec.Command

// passThrough runs the wrapped binary with inherited stdio and returns
// its exit code.
func passThrough(bin string, args []string) int {
	// #nosec G204 -- the binary comes from local config; arguments are the user's own command line
	cmd := newCommand(bin, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "r4: %v\n", err)
		return 1
	}
	return 0
}

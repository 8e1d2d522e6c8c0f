// Package buildinfo holds the build metadata stamped into the r4 binary.
// Values arrive through linker flags on cmd/r4; main() hands them to Set
// so the version subcommand and the CLI framework can report them.
package buildinfo

import "runtime/debug"

// Zero values reported when a field was never stamped.
const (
	noVersion = "dev"
	noCommit  = "none"
	noDate    = "unknown"
	noBuilder = "unknown"
)

type metadata struct {
	version string
	commit  string
	date    string
	builtBy string
}

var current = metadata{
	version: noVersion,
	commit:  noCommit,
	date:    noDate,
	builtBy: noBuilder,
}

// Set records the linker-stamped build metadata.
func Set(version, commit, date, builtBy string) {
	current = metadata{version: version, commit: commit, date: date, builtBy: builtBy}
}

// Version returns the stamped release version, or "dev".
func Version() string { return current.version }

// Commit returns the stamped commit hash.
func Commit() string { return current.commit }

// Date returns the stamped build date.
func Date() string { return current.date }

// BuiltBy returns the stamped build agent.
func BuiltBy() string { return current.builtBy }

// Enrich backfills unstamped fields from the binary's embedded build
// info: the VCS revision and commit time when the module was built from
// a checkout, and the Go version as the builder. Stamped values win.
func Enrich() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if current.builtBy == noBuilder {
		current.builtBy = info.GoVersion
	}

	if current.commit != noCommit && current.date != noDate {
		return
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if current.commit == noCommit {
				current.commit = setting.Value
			}
		case "vcs.time":
			if current.date == noDate {
				current.date = setting.Value
			}
		}
	}
}

// Package revspec parses file arguments with revision qualifiers and
// resolves them to concrete revision lists.
package revspec

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the revision qualifier attached to a file argument.
type Kind int

// Qualifier kinds. All means no qualifier was given, which selects every
// revision of the file, not just the latest.
const (
	All Kind = iota
	Single
	Head
	Range
	Label
)

// FileSpec is a parsed file argument: a depot or workspace path, possibly
// containing p4 wildcards, plus an optional revision qualifier.
type FileSpec struct {
	Path  string
	Kind  Kind
	Lo    int    // Single: the revision; Range: lower bound
	Hi    int    // Range: upper bound
	Label string // Label: the symbolic name
}

// String renders the spec back in command-line syntax.
func (s FileSpec) String() string {
	switch s.Kind {
	case Single:
		return fmt.Sprintf("%s#%d", s.Path, s.Lo)
	case Head:
		return s.Path + "#head"
	case Range:
		return fmt.Sprintf("%s#%d,%d", s.Path, s.Lo, s.Hi)
	case Label:
		return s.Path + "@" + s.Label
	default:
		return s.Path
	}
}

// Parse splits a file argument into path and revision qualifier.
// Grammar: path [ '#' rev | '#' "head" | '#' lo ',' hi | '@' label ].
// Malformed qualifiers are input errors and abort the whole invocation.
func Parse(arg string) (FileSpec, error) {
	if arg == "" {
		return FileSpec{}, fmt.Errorf("empty file argument")
	}

	if at := strings.LastIndex(arg, "@"); at >= 0 {
		path, label := arg[:at], arg[at+1:]
		if label == "" {
			return FileSpec{}, fmt.Errorf("invalid revision specifier %q: empty label", arg)
		}
		if path == "" {
			return FileSpec{}, fmt.Errorf("invalid revision specifier %q: missing file path", arg)
		}
		return FileSpec{Path: path, Kind: Label, Label: label}, nil
	}

	hash := strings.LastIndex(arg, "#")
	if hash < 0 {
		return FileSpec{Path: arg, Kind: All}, nil
	}

	path, qual := arg[:hash], arg[hash+1:]
	if path == "" {
		return FileSpec{}, fmt.Errorf("invalid revision specifier %q: missing file path", arg)
	}

	switch {
	case qual == "":
		return FileSpec{}, fmt.Errorf("invalid revision specifier %q: empty revision", arg)
	case qual == "head":
		return FileSpec{Path: path, Kind: Head}, nil
	case strings.Contains(qual, ","):
		lo, hi, err := parseRange(qual)
		if err != nil {
			return FileSpec{}, fmt.Errorf("invalid revision specifier %q: %w", arg, err)
		}
		return FileSpec{Path: path, Kind: Range, Lo: lo, Hi: hi}, nil
	default:
		rev, err := parseRevision(qual)
		if err != nil {
			return FileSpec{}, fmt.Errorf("invalid revision specifier %q: %w", arg, err)
		}
		return FileSpec{Path: path, Kind: Single, Lo: rev}, nil
	}
}

// ParseAll parses every file argument up front so that malformed input is
// rejected before any work begins.
func ParseAll(args []string) ([]FileSpec, error) {
	specs := make([]FileSpec, 0, len(args))
	for _, arg := range args {
		spec, err := Parse(arg)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseRange(qual string) (int, int, error) {
	parts := strings.Split(qual, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("range must be lo,hi")
	}
	lo, err := parseRevision(parts[0])
	if err != nil {
		return 0, 0, err
	}
	hi, err := parseRevision(parts[1])
	if err != nil {
		return 0, 0, err
	}
	if lo > hi {
		return 0, 0, fmt.Errorf("range %d,%d is reversed", lo, hi)
	}
	return lo, hi, nil
}

func parseRevision(text string) (int, error) {
	rev, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("revision %q is not a number", text)
	}
	if rev < 1 {
		return 0, fmt.Errorf("revision %d is out of range", rev)
	}
	return rev, nil
}

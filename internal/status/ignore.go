package status

import (
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// Ignores loads and matches ignore patterns from .r4ignore files. The
// user's home ignore file applies everywhere; each directory's own file
// adds to it.
//
// Patterns are shell globs (path.Match syntax) tested against the entry's
// base name only. There is no negation and no precedence between files:
// any match ignores the entry.
type Ignores struct {
	fileName string
	homeOnce sync.Once
	home     []string
}

// NewIgnores constructs an Ignores using the given ignore file name.
func NewIgnores(fileName string) *Ignores {
	if fileName == "" {
		fileName = ".r4ignore"
	}
	return &Ignores{fileName: fileName}
}

// For returns the patterns that apply inside dir.
func (ig *Ignores) For(dir string) []string {
	ig.homeOnce.Do(func() {
		home, err := os.UserHomeDir()
		if err == nil {
			ig.home = loadPatterns(filepath.Join(home, ig.fileName))
		}
	})

	patterns := append([]string(nil), ig.home...)
	return append(patterns, loadPatterns(filepath.Join(dir, ig.fileName))...)
}

// loadPatterns reads one ignore file: one glob per line, '#' comments and
// blank lines skipped. A missing or unreadable file contributes nothing.
func loadPatterns(filePath string) []string {
	// #nosec G304 -- ignore files are read from the user's own tree
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil
	}

	var patterns []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

// Matched reports whether a base name matches any ignore pattern.
// Malformed patterns never match.
func Matched(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if ok, err := path.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

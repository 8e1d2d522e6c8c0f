// Package grep implements the multi-revision pattern search behind
// r4 grep.
package grep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/jwiseman/r4/internal/p4"
	"github.com/jwiseman/r4/internal/revspec"
)

// Options map the grep command-line flags onto engine behavior.
type Options struct {
	IgnoreCase       bool // -i: case-insensitive matching
	InvertMatch      bool // -v: select non-matching lines
	FilesWithMatches bool // -l: emit file#runs summaries instead of lines
	MaxParallel      int  // concurrent revision fetches per file; <=0 means 8
}

// Depot is the external-tool surface the engine needs. p4.Service
// satisfies it; tests use an in-memory history.
type Depot interface {
	revspec.Metadata
	FetchRevision(ctx context.Context, path string, rev int) (string, error)
}

// Engine applies a pattern to every resolved (file, revision) pair.
type Engine struct {
	depot    Depot
	resolver *revspec.Resolver
	opts     Options
	out      io.Writer
	errOut   io.Writer
}

// NewEngine constructs an Engine writing matches to out and warnings to
// errOut.
func NewEngine(depot Depot, opts Options, out, errOut io.Writer) *Engine {
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 8
	}
	return &Engine{
		depot:    depot,
		resolver: revspec.NewResolver(depot),
		opts:     opts,
		out:      out,
		errOut:   errOut,
	}
}

// Run compiles the pattern, resolves every file argument and searches each
// resolved revision. The returned error is non-nil only for fatal
// conditions: a bad pattern, malformed revision syntax, an unreachable
// backend, or no files resolving at all.
func (e *Engine) Run(ctx context.Context, pattern string, fileArgs []string) error {
	re, err := compile(pattern, e.opts.IgnoreCase)
	if err != nil {
		return fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	// Reject malformed revision syntax before any fetching begins.
	specs, err := revspec.ParseAll(fileArgs)
	if err != nil {
		return err
	}

	searchedAny := false
	for _, spec := range specs {
		resolved, pathErrs, err := e.resolver.Resolve(ctx, spec)
		if err != nil {
			if p4.Fatal(err) {
				return err
			}
			e.warnf("%s: %v", spec, err)
			continue
		}
		for _, perr := range pathErrs {
			if p4.Fatal(perr) {
				return perr
			}
			e.warnf("%v", perr)
		}
		for _, file := range resolved {
			searchedAny = true
			if err := e.grepFile(ctx, re, file); err != nil {
				return err
			}
		}
	}

	if !searchedAny {
		return errors.New("no files to search")
	}
	return nil
}

func compile(pattern string, ignoreCase bool) (*regexp.Regexp, error) {
	if ignoreCase {
		pattern = "(?i)" + pattern
	}
	return regexp.Compile(pattern)
}

type revContent struct {
	rev     int
	content string
	err     error
}

// grepFile searches every revision of one file. Revisions are fetched
// concurrently but matches are emitted strictly in ascending revision
// order, line order within a revision. At most MaxParallel fetched
// contents are held in memory at a time, so a long history never gets
// buffered whole.
func (e *Engine) grepFile(ctx context.Context, re *regexp.Regexp, file revspec.Resolved) error {
	pending := e.startFetches(ctx, file)

	var matchRevs []int
	var fatalErr error
	for ch := range pending {
		rc := <-ch
		if fatalErr != nil {
			// Drain remaining fetches after a fatal result.
			continue
		}
		if rc.err != nil {
			if errors.Is(rc.err, context.Canceled) || errors.Is(rc.err, context.DeadlineExceeded) {
				// Interrupted by the user: no warning per revision.
				fatalErr = rc.err
				continue
			}
			if p4.Fatal(rc.err) {
				fatalErr = rc.err
				continue
			}
			e.warnf("%s#%d: skipped: %v", file.Path, rc.rev, rc.err)
			continue
		}

		matched := false
		for _, line := range splitContentLines(rc.content) {
			hit := re.MatchString(line)
			if e.opts.InvertMatch {
				hit = !hit
			}
			if !hit {
				continue
			}
			matched = true
			if e.opts.FilesWithMatches {
				break
			}
			fmt.Fprintf(e.out, "%s#%d: %s\n", file.Path, rc.rev, line)
		}
		if matched {
			matchRevs = append(matchRevs, rc.rev)
		}
	}
	if fatalErr != nil {
		return fatalErr
	}

	if e.opts.FilesWithMatches && len(matchRevs) > 0 {
		fmt.Fprintf(e.out, "%s#%s\n", file.Path, FormatRuns(Coalesce(matchRevs)))
	}
	return nil
}

// startFetches launches revision fetches in resolver order, keeping at
// most MaxParallel in flight. Each element of the returned channel is
// that revision's single-use result channel, so the consumer reads
// results in canonical order while fetches overlap.
func (e *Engine) startFetches(ctx context.Context, file revspec.Resolved) <-chan chan revContent {
	pending := make(chan chan revContent, e.opts.MaxParallel)
	go func() {
		defer close(pending)
		for _, rev := range file.Revisions {
			ch := make(chan revContent, 1)
			pending <- ch
			go func(rev int, ch chan revContent) {
				content, err := e.depot.FetchRevision(ctx, file.Path, rev)
				ch <- revContent{rev: rev, content: content, err: err}
			}(rev, ch)
		}
	}()
	return pending
}

// splitContentLines splits file content into lines, dropping the empty
// trailing element a final newline produces.
func splitContentLines(content string) []string {
	lines := strings.Split(content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

func (e *Engine) warnf(format string, args ...any) {
	fmt.Fprintf(e.errOut, "r4: warning: "+format+"\n", args...)
}

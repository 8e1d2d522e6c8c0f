package grep

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jwiseman/r4/internal/p4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDepot is an in-memory file history: depot path -> revision -> content.
type fakeDepot struct {
	files   map[string]map[int]string
	labels  map[string]int
	alias   map[string]string
	deleted map[string]map[int]bool
	noLabel map[string]bool // paths no label was ever applied to
}

func (f *fakeDepot) HeadRevision(_ context.Context, path string) (int, error) {
	revs, ok := f.files[path]
	if !ok {
		return 0, fmt.Errorf("%w: %s", p4.ErrNoSuchFile, path)
	}
	head := 0
	for rev := range revs {
		if rev > head {
			head = rev
		}
	}
	return head, nil
}

func (f *fakeDepot) ListFiles(_ context.Context, pattern string) ([]string, error) {
	if depot, ok := f.alias[pattern]; ok {
		return []string{depot}, nil
	}
	if strings.HasSuffix(pattern, "...") {
		prefix := strings.TrimSuffix(pattern, "...")
		var paths []string
		for path := range f.files {
			if strings.HasPrefix(path, prefix) {
				paths = append(paths, path)
			}
		}
		if len(paths) == 0 {
			return nil, fmt.Errorf("%w: %s", p4.ErrNoSuchFile, pattern)
		}
		return paths, nil
	}
	if _, ok := f.files[pattern]; !ok {
		return nil, fmt.Errorf("%w: %s", p4.ErrNoSuchFile, pattern)
	}
	return []string{pattern}, nil
}

func (f *fakeDepot) ResolveLabel(_ context.Context, path, label string) (int, error) {
	rev, ok := f.labels[label]
	if !ok || f.noLabel[path] {
		return 0, fmt.Errorf("%w: %s@%s", p4.ErrNoSuchFile, path, label)
	}
	return rev, nil
}

func (f *fakeDepot) FetchRevision(ctx context.Context, path string, rev int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.deleted[path][rev] {
		return "", fmt.Errorf("%w: %s#%d", p4.ErrNoSuchRevision, path, rev)
	}
	content, ok := f.files[path][rev]
	if !ok {
		return "", fmt.Errorf("%w: %s#%d", p4.ErrNoSuchRevision, path, rev)
	}
	return content, nil
}

const makefilePath = "//depot/project/Makefile"

// makefileDepot reproduces the worked example: revisions 1-3 and 5
// contain the literal ALL, revision 4 does not.
func makefileDepot() *fakeDepot {
	return &fakeDepot{
		files: map[string]map[int]string{
			makefilePath: {
				1: "ALL := tools\nclean:\n",
				2: "ALL := tools scripts\nclean:\n",
				3: "ALL := tools scripts tests\nclean:\n",
				4: "TARGETS := tools scripts tests\nclean:\n",
				5: "ALL := tools scripts tests\nclean:\n",
			},
		},
		labels: map[string]int{"release_4": 4},
		alias:  map[string]string{"Makefile": makefilePath},
	}
}

func runEngine(t *testing.T, depot Depot, opts Options, pattern string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	eng := NewEngine(depot, opts, &out, &errOut)
	err := eng.Run(context.Background(), pattern, args)
	return out.String(), errOut.String(), err
}

func TestGrepAllRevisionsLineMode(t *testing.T) {
	out, errOut, err := runEngine(t, makefileDepot(), Options{}, "ALL", "Makefile")
	require.NoError(t, err)
	assert.Empty(t, errOut)

	want := makefilePath + "#1: ALL := tools\n" +
		makefilePath + "#2: ALL := tools scripts\n" +
		makefilePath + "#3: ALL := tools scripts tests\n" +
		makefilePath + "#5: ALL := tools scripts tests\n"
	assert.Equal(t, want, out)
}

func TestGrepFilesWithMatches(t *testing.T) {
	out, _, err := runEngine(t, makefileDepot(), Options{FilesWithMatches: true}, "ALL", "Makefile")
	require.NoError(t, err)

	// Revisions 1,2,3 form one run; 5 stands alone.
	assert.Equal(t, makefilePath+"#1,3,5\n", out)
}

func TestGrepHeadOnly(t *testing.T) {
	out, _, err := runEngine(t, makefileDepot(), Options{}, "ALL", "Makefile#head")
	require.NoError(t, err)
	assert.Equal(t, makefilePath+"#5: ALL := tools scripts tests\n", out)
}

func TestGrepSingleRevisionNoMatch(t *testing.T) {
	out, _, err := runEngine(t, makefileDepot(), Options{}, "ALL", "Makefile#4")
	require.NoError(t, err, "no matches is not a failure")
	assert.Empty(t, out)
}

func TestGrepRange(t *testing.T) {
	out, _, err := runEngine(t, makefileDepot(), Options{}, "ALL", "Makefile#2,4")
	require.NoError(t, err)

	want := makefilePath + "#2: ALL := tools scripts\n" +
		makefilePath + "#3: ALL := tools scripts tests\n"
	assert.Equal(t, want, out)
}

func TestGrepLabel(t *testing.T) {
	out, _, err := runEngine(t, makefileDepot(), Options{}, "TARGETS", "Makefile@release_4")
	require.NoError(t, err)
	assert.Equal(t, makefilePath+"#4: TARGETS := tools scripts tests\n", out)
}

func TestGrepIgnoreCase(t *testing.T) {
	out, _, err := runEngine(t, makefileDepot(), Options{IgnoreCase: true}, "all", "Makefile#1")
	require.NoError(t, err)
	assert.Equal(t, makefilePath+"#1: ALL := tools\n", out)

	// Case-sensitive match set is a subset of the insensitive one.
	sensitive, _, err := runEngine(t, makefileDepot(), Options{}, "all", "Makefile#1")
	require.NoError(t, err)
	assert.Empty(t, sensitive)
}

func TestGrepInvertIsComplement(t *testing.T) {
	straight, _, err := runEngine(t, makefileDepot(), Options{}, "ALL", "Makefile#1")
	require.NoError(t, err)
	inverted, _, err := runEngine(t, makefileDepot(), Options{InvertMatch: true}, "ALL", "Makefile#1")
	require.NoError(t, err)

	// Revision 1 has two lines; together the two runs cover both exactly
	// once.
	assert.Equal(t, makefilePath+"#1: ALL := tools\n", straight)
	assert.Equal(t, makefilePath+"#1: clean:\n", inverted)
}

func TestGrepDeletedRevisionSkippedWithWarning(t *testing.T) {
	depot := makefileDepot()
	depot.deleted = map[string]map[int]bool{makefilePath: {3: true}}

	out, errOut, err := runEngine(t, depot, Options{}, "ALL", "Makefile")
	require.NoError(t, err, "a missing revision must not abort the run")

	assert.Contains(t, errOut, "#3: skipped")
	assert.NotContains(t, out, "#3:")
	assert.Contains(t, out, "#2: ALL")
	assert.Contains(t, out, "#5: ALL")
}

func TestGrepUnknownFileWarnsAndContinues(t *testing.T) {
	out, errOut, err := runEngine(t, makefileDepot(), Options{}, "ALL", "//depot/nope", "Makefile#1")
	require.NoError(t, err)

	assert.Contains(t, errOut, "//depot/nope")
	assert.Equal(t, makefilePath+"#1: ALL := tools\n", out)
}

func TestGrepNoFilesResolvedIsError(t *testing.T) {
	_, _, err := runEngine(t, makefileDepot(), Options{}, "ALL", "//depot/nope")
	assert.Error(t, err)
}

func TestGrepBadPatternIsFatal(t *testing.T) {
	_, _, err := runEngine(t, makefileDepot(), Options{}, "[unclosed", "Makefile")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pattern")
}

func TestGrepBadRevisionSyntaxIsFatal(t *testing.T) {
	_, _, err := runEngine(t, makefileDepot(), Options{}, "ALL", "Makefile#9,3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reversed")
}

func TestGrepWildcard(t *testing.T) {
	depot := makefileDepot()
	depot.files["//depot/project/notes.txt"] = map[int]string{1: "ALL hands meeting\n"}

	out, _, err := runEngine(t, depot, Options{FilesWithMatches: true}, "ALL", "//depot/project/...")
	require.NoError(t, err)

	assert.Contains(t, out, makefilePath+"#1,3,5\n")
	assert.Contains(t, out, "//depot/project/notes.txt#1\n")
}

func TestGrepPartialLabelResolution(t *testing.T) {
	depot := makefileDepot()
	depot.files["//depot/project/notes.txt"] = map[int]string{1: "TARGETS overview\n"}
	depot.noLabel = map[string]bool{"//depot/project/notes.txt": true}

	out, errOut, err := runEngine(t, depot, Options{}, "TARGETS", "//depot/project/...@release_4")
	require.NoError(t, err)

	// The untagged file warns on its own; the tagged one is still searched.
	assert.Contains(t, errOut, "//depot/project/notes.txt")
	assert.Equal(t, makefilePath+"#4: TARGETS := tools scripts tests\n", out)
}

func TestGrepCanceledContextStopsQuietly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out, errOut bytes.Buffer
	eng := NewEngine(makefileDepot(), Options{}, &out, &errOut)
	err := eng.Run(ctx, "ALL", []string{"Makefile"})

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.String())
	assert.NotContains(t, errOut.String(), "skipped", "cancellation must not warn per revision")
}

func TestGrepBoundedInFlightFetches(t *testing.T) {
	depot := &gatedDepot{fakeDepot: makefileDepot()}

	out, _, err := runEngine(t, depot, Options{MaxParallel: 2}, "ALL", "Makefile")
	require.NoError(t, err)

	assert.LessOrEqual(t, depot.peak(), int32(3), "in-flight fetches must stay near MaxParallel")
	assert.Contains(t, out, "#5: ALL")
}

// gatedDepot counts concurrently running fetches.
type gatedDepot struct {
	*fakeDepot
	inUse   atomic.Int32
	highest atomic.Int32
}

func (g *gatedDepot) FetchRevision(ctx context.Context, path string, rev int) (string, error) {
	cur := g.inUse.Add(1)
	defer g.inUse.Add(-1)
	for {
		high := g.highest.Load()
		if cur <= high || g.highest.CompareAndSwap(high, cur) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	return g.fakeDepot.FetchRevision(ctx, path, rev)
}

func (g *gatedDepot) peak() int32 { return g.highest.Load() }

func TestGrepConcurrentFetchPreservesOrder(t *testing.T) {
	depot := makefileDepot()
	out, _, err := runEngine(t, depot, Options{MaxParallel: 4}, "ALL", "Makefile")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 4)
	for i, rev := range []string{"#1:", "#2:", "#3:", "#5:"} {
		assert.Contains(t, lines[i], rev)
	}
}

func TestSplitContentLines(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitContentLines("a\nb\n"))
	assert.Equal(t, []string{"a", "b"}, splitContentLines("a\r\nb\r\n"))
	assert.Equal(t, []string{"a"}, splitContentLines("a"))
	assert.Empty(t, splitContentLines(""))
}

// Package status implements the r4 status working-copy listing.
package status

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jwiseman/r4/internal/models"
)

// Backend is the slice of the p4 surface the lister needs. p4.Service
// satisfies it.
type Backend interface {
	Have(ctx context.Context, dir string) (map[string]models.DepotFile, error)
	Opened(ctx context.Context, dir string) ([]models.OpenedFile, error)
	OpenedAndDiffering(ctx context.Context, dir string) ([]string, error)
	Where(ctx context.Context, depotPaths []string) (map[string]string, error)
}

// Options control the listing.
type Options struct {
	NoIgnore bool // print ignored entries with an I prefix instead of hiding them
	Color    bool // colorize the status column
}

// Lister walks working-copy directories and prints one status line per
// interesting file.
type Lister struct {
	backend Backend
	ignores *Ignores
	opts    Options
	out     io.Writer
}

// NewLister constructs a Lister writing to out.
func NewLister(backend Backend, ignores *Ignores, opts Options, out io.Writer) *Lister {
	return &Lister{backend: backend, ignores: ignores, opts: opts, out: out}
}

// Run lists the status of every file under the given directories, or the
// current directory when none are given.
func (l *Lister) Run(ctx context.Context, dirs []string) error {
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	for _, dir := range dirs {
		state, err := l.collect(ctx, dir)
		if err != nil {
			return err
		}
		if err := l.walk(dir, state); err != nil {
			return err
		}
	}
	return nil
}

// dirState aggregates the p4 view of one directory tree, keyed by
// absolute local path.
type dirState struct {
	have     map[string]models.DepotFile
	added    map[string]bool
	deleted  map[string]bool
	opened   map[string]bool
	modified map[string]bool
}

func (l *Lister) collect(ctx context.Context, dir string) (*dirState, error) {
	have, err := l.backend.Have(ctx, dir)
	if err != nil {
		return nil, err
	}
	opened, err := l.backend.Opened(ctx, dir)
	if err != nil {
		return nil, err
	}
	differing, err := l.backend.OpenedAndDiffering(ctx, dir)
	if err != nil {
		return nil, err
	}

	// One batched translation covers both the opened files and any
	// depot-syntax lines from diff -sa.
	var depotPaths []string
	for _, f := range opened {
		depotPaths = append(depotPaths, f.DepotPath)
	}
	for _, line := range differing {
		if strings.HasPrefix(line, "//") {
			depotPaths = append(depotPaths, stripRevSuffix(line))
		}
	}

	where := map[string]string{}
	if len(depotPaths) > 0 {
		where, err = l.backend.Where(ctx, depotPaths)
		if err != nil {
			return nil, err
		}
	}

	state := &dirState{
		have:     have,
		added:    map[string]bool{},
		deleted:  map[string]bool{},
		opened:   map[string]bool{},
		modified: map[string]bool{},
	}

	for _, f := range opened {
		local, ok := where[f.DepotPath]
		if !ok {
			continue
		}
		state.opened[local] = true
		switch f.Action {
		case models.ActionAdd:
			state.added[local] = true
		case models.ActionDelete:
			state.deleted[local] = true
		}
	}

	for _, line := range differing {
		line = stripRevSuffix(line)
		if strings.HasPrefix(line, "//") {
			if local, ok := where[line]; ok {
				state.modified[local] = true
			}
		} else {
			state.modified[line] = true
		}
	}

	return state, nil
}

// walk visits dir top-down, pruning ignored directories, and prints the
// status of each file. Files opened for delete that no longer exist on
// disk still get a D line in their directory.
func (l *Lister) walk(dir string, state *dirState) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", dir, err)
	}
	patterns := l.ignores.For(dir)

	var files, subdirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			subdirs = append(subdirs, entry.Name())
		} else {
			files = append(files, entry.Name())
		}
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	for local := range state.deleted {
		if filepath.Dir(local) == absDir {
			name := filepath.Base(local)
			if !slices.Contains(files, name) {
				files = append(files, name)
			}
		}
	}

	sort.Strings(files)
	sort.Strings(subdirs)

	for _, name := range files {
		printPath := filepath.Join(dir, name)
		abs := filepath.Join(absDir, name)
		switch {
		case Matched(patterns, name):
			if l.opts.NoIgnore {
				l.emit(models.StatusIgnored, printPath)
			}
		case state.added[abs]:
			l.emit(models.StatusAdded, printPath)
		case state.deleted[abs]:
			l.emit(models.StatusDeleted, printPath)
		case state.modified[abs]:
			l.emit(models.StatusModified, printPath)
		case state.opened[abs]:
			l.emit(models.StatusOpened, printPath)
		default:
			if _, tracked := state.have[abs]; !tracked {
				l.emit(models.StatusUntracked, printPath)
			}
		}
	}

	for _, name := range subdirs {
		if Matched(patterns, name) {
			// Ignored directories are always pruned from the walk.
			if l.opts.NoIgnore {
				l.emit(models.StatusIgnored, filepath.Join(dir, name))
			}
			continue
		}
		if err := l.walk(filepath.Join(dir, name), state); err != nil {
			return err
		}
	}
	return nil
}

var statusStyles = map[byte]lipgloss.Style{
	models.StatusAdded:     lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	models.StatusDeleted:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	models.StatusModified:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	models.StatusOpened:    lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
	models.StatusUntracked: lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
	models.StatusIgnored:   lipgloss.NewStyle().Faint(true),
}

func (l *Lister) emit(code byte, path string) {
	marker := string(code)
	if l.opts.Color {
		if style, ok := statusStyles[code]; ok {
			marker = style.Render(marker)
		}
	}
	fmt.Fprintf(l.out, "%s %s\n", marker, path)
}

// stripRevSuffix drops a trailing #rev qualifier from a path if present.
func stripRevSuffix(p string) string {
	hash := strings.LastIndex(p, "#")
	if hash < 0 {
		return p
	}
	if _, err := strconv.Atoi(p[hash+1:]); err != nil {
		return p
	}
	return p[:hash]
}

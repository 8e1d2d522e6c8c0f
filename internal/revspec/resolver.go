package revspec

import (
	"context"
	"fmt"
)

// Metadata is the read-only slice of the p4 surface the resolver needs.
// Tests substitute an in-memory history.
type Metadata interface {
	HeadRevision(ctx context.Context, path string) (int, error)
	ListFiles(ctx context.Context, pattern string) ([]string, error)
	ResolveLabel(ctx context.Context, path, label string) (int, error)
}

// Resolved is the concrete revision list for one expanded file.
type Resolved struct {
	Path      string // depot path
	Revisions []int  // ascending, never empty
}

// Resolver expands FileSpecs against the depot's revision history.
type Resolver struct {
	meta Metadata
}

// NewResolver constructs a Resolver over the given metadata source.
func NewResolver(meta Metadata) *Resolver {
	return &Resolver{meta: meta}
}

// Resolve expands a FileSpec into concrete (file, revisions) pairs. The
// path always goes through ListFiles, which both expands wildcards and
// translates workspace paths into depot syntax.
//
// Each expanded path resolves on its own: a qualifier that fails for one
// path (say a label the file was never tagged with) lands in pathErrs
// while the other paths still come back resolved. The error return
// covers the expansion itself.
func (r *Resolver) Resolve(ctx context.Context, spec FileSpec) (resolved []Resolved, pathErrs []error, err error) {
	paths, err := r.meta.ListFiles(ctx, spec.Path)
	if err != nil {
		return nil, nil, err
	}

	resolved = make([]Resolved, 0, len(paths))
	for _, path := range paths {
		revs, err := r.revisionsFor(ctx, path, spec)
		if err != nil {
			pathErrs = append(pathErrs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		resolved = append(resolved, Resolved{Path: path, Revisions: revs})
	}
	return resolved, pathErrs, nil
}

func (r *Resolver) revisionsFor(ctx context.Context, path string, spec FileSpec) ([]int, error) {
	switch spec.Kind {
	case Single:
		return []int{spec.Lo}, nil
	case Range:
		return sequence(spec.Lo, spec.Hi), nil
	case Head:
		head, err := r.meta.HeadRevision(ctx, path)
		if err != nil {
			return nil, err
		}
		return []int{head}, nil
	case Label:
		rev, err := r.meta.ResolveLabel(ctx, path, spec.Label)
		if err != nil {
			return nil, err
		}
		return []int{rev}, nil
	default: // All: every revision from 1 to head, no gaps
		head, err := r.meta.HeadRevision(ctx, path)
		if err != nil {
			return nil, err
		}
		return sequence(1, head), nil
	}
}

func sequence(lo, hi int) []int {
	revs := make([]int, 0, hi-lo+1)
	for rev := lo; rev <= hi; rev++ {
		revs = append(revs, rev)
	}
	return revs
}

// Package p4 wraps the Perforce command-line client used by r4.
package p4

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/jwiseman/r4/internal/log"
	"github.com/jwiseman/r4/internal/models"
)

// LookupPath is used to find the p4 executable in PATH. It's exposed as a
// package variable so tests can mock it and avoid depending on a Perforce
// installation.
var LookupPath = exec.LookPath

// Service runs p4 commands and parses their output.
type Service struct {
	bin       string
	semaphore chan struct{}
}

// NewService constructs a Service for the given p4 binary and sets up the
// revision-fetch concurrency limit. A zero maxFetch picks a limit from the
// CPU count.
func NewService(bin string, maxFetch int) *Service {
	if bin == "" {
		bin = "p4"
	}
	if maxFetch <= 0 {
		maxFetch = runtime.NumCPU() * 2
		if maxFetch < 4 {
			maxFetch = 4
		}
		if maxFetch > 32 {
			maxFetch = 32
		}
	}

	// Counting semaphore: the channel starts full with maxFetch tokens.
	// acquire() takes a token (blocks when none are available), release()
	// returns it. This bounds concurrent p4 print invocations.
	semaphore := make(chan struct{}, maxFetch)
	for i := 0; i < maxFetch; i++ {
		semaphore <- struct{}{}
	}

	return &Service{bin: bin, semaphore: semaphore}
}

// Check verifies the p4 binary can be found. Called once before any work
// so that a missing installation fails fast.
func (s *Service) Check() error {
	if _, err := LookupPath(s.bin); err != nil {
		return fmt.Errorf("%w: %q", ErrBinaryNotFound, s.bin)
	}
	return nil
}

// Bin returns the configured p4 binary name.
func (s *Service) Bin() string { return s.bin }

func (s *Service) acquire() {
	<-s.semaphore
}

func (s *Service) release() {
	s.semaphore <- struct{}{}
}

func (s *Service) run(ctx context.Context, args ...string) (string, error) {
	command := s.bin + " " + strings.Join(args, " ")
	log.Printf("run: %s", command)

	// #nosec G204 -- the binary comes from local config and arguments are built internally
	cmd := exec.CommandContext(ctx, s.bin, args...)
	output, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.Printf("interrupted: %s", command)
			return "", ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr := strings.TrimSpace(string(exitErr.Stderr))
			log.Printf("error: %s: %s", command, stderr)
			return string(output), classifyError(stderr, exitErr)
		}
		log.Printf("error: %s: %v", command, err)
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: %q", ErrBinaryNotFound, s.bin)
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	log.Printf("ok: %s", command)
	return string(output), nil
}

// classifyError maps p4 stderr text onto the sentinel errors. The client
// does not distinguish failure classes in its exit code, so the message is
// all there is to go on.
func classifyError(stderr string, cause error) error {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "connect to server failed"),
		strings.Contains(lower, "password") && strings.Contains(lower, "invalid"),
		strings.Contains(lower, "session has expired"),
		strings.Contains(lower, "please login"):
		return fmt.Errorf("%w: %s", ErrUnavailable, stderr)
	case strings.Contains(lower, "no such revision"),
		strings.Contains(lower, "no file(s) at that"),
		strings.Contains(lower, "no revision(s)"):
		return fmt.Errorf("%w: %s", ErrNoSuchRevision, stderr)
	case strings.Contains(lower, "no such file"),
		strings.Contains(lower, "not in client view"),
		strings.Contains(lower, "file(s) not"):
		return fmt.Errorf("%w: %s", ErrNoSuchFile, stderr)
	case stderr == "":
		return fmt.Errorf("p4: %w", cause)
	default:
		return fmt.Errorf("p4: %s", stderr)
	}
}

// HeadRevision returns the current head revision number of a depot or
// workspace path.
func (s *Service) HeadRevision(ctx context.Context, path string) (int, error) {
	out, err := s.run(ctx, "files", path+"#head")
	if err != nil {
		return 0, err
	}
	files := parseFilesOutput(out)
	if len(files) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoSuchFile, path)
	}
	return files[0].Rev, nil
}

// ListFiles expands a file argument, including p4 wildcards such as "...",
// into concrete depot paths. Plain workspace paths come back translated to
// depot syntax as a side effect.
func (s *Service) ListFiles(ctx context.Context, pattern string) ([]string, error) {
	out, err := s.run(ctx, "files", pattern)
	if err != nil {
		return nil, err
	}
	files := parseFilesOutput(out)
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchFile, pattern)
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.DepotPath)
	}
	return paths, nil
}

// ResolveLabel resolves a label or changelist qualifier to the concrete
// revision number it denotes for the given file.
func (s *Service) ResolveLabel(ctx context.Context, path, label string) (int, error) {
	out, err := s.run(ctx, "files", path+"@"+label)
	if err != nil {
		return 0, err
	}
	files := parseFilesOutput(out)
	if len(files) == 0 {
		return 0, fmt.Errorf("%w: %s@%s", ErrNoSuchFile, path, label)
	}
	return files[0].Rev, nil
}

// FetchRevision returns the full text content of one file revision.
// Fetches are bounded by the service semaphore so callers may issue them
// concurrently.
func (s *Service) FetchRevision(ctx context.Context, path string, rev int) (string, error) {
	s.acquire()
	defer s.release()
	return s.run(ctx, "print", "-q", fmt.Sprintf("%s#%d", path, rev))
}

// Help returns the stock p4 help text for the given topics.
func (s *Service) Help(ctx context.Context, topics []string) (string, error) {
	args := append([]string{"help"}, topics...)
	return s.run(ctx, args...)
}

// Have returns the files the client workspace currently has under dir,
// keyed by absolute local path.
func (s *Service) Have(ctx context.Context, dir string) (map[string]models.DepotFile, error) {
	out, err := s.run(ctx, "have", underDir(dir))
	if err != nil {
		if errors.Is(err, ErrNoSuchFile) {
			return map[string]models.DepotFile{}, nil
		}
		return nil, err
	}

	have := make(map[string]models.DepotFile)
	for _, line := range splitLines(out) {
		df, local, ok := parseHaveLine(line)
		if !ok {
			continue
		}
		have[local] = df
	}
	return have, nil
}

// Opened lists the files opened in the current workspace under dir.
func (s *Service) Opened(ctx context.Context, dir string) ([]models.OpenedFile, error) {
	out, err := s.run(ctx, "opened", underDir(dir))
	if err != nil {
		if errors.Is(err, ErrNoSuchFile) {
			return nil, nil
		}
		return nil, err
	}

	var opened []models.OpenedFile
	for _, line := range splitLines(out) {
		f, ok := parseFileLine(line)
		if !ok {
			continue
		}
		opened = append(opened, f)
	}
	return opened, nil
}

// OpenedAndDiffering lists opened files whose workspace content differs
// from the depot, as reported by p4 diff -sa.
func (s *Service) OpenedAndDiffering(ctx context.Context, dir string) ([]string, error) {
	out, err := s.run(ctx, "diff", "-sa", underDir(dir))
	if err != nil {
		if errors.Is(err, ErrNoSuchFile) {
			return nil, nil
		}
		return nil, err
	}
	return splitLines(out), nil
}

// Where translates depot paths to absolute local paths using the client
// view mapping. Unmapped entries are skipped.
func (s *Service) Where(ctx context.Context, depotPaths []string) (map[string]string, error) {
	translated := make(map[string]string, len(depotPaths))
	if len(depotPaths) == 0 {
		return translated, nil
	}

	args := append([]string{"where"}, depotPaths...)
	out, err := s.run(ctx, args...)
	if err != nil {
		return nil, err
	}

	for _, line := range splitLines(out) {
		depot, local, ok := parseWhereLine(line)
		if !ok {
			continue
		}
		translated[depot] = local
	}
	return translated, nil
}

// underDir builds the recursive wildcard for a directory argument. p4
// paths always use forward slashes, independent of the host OS.
func underDir(dir string) string {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = "."
	}
	return strings.TrimSuffix(dir, "/") + "/..."
}

func splitLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

package p4

import "errors"

// Sentinel errors for the failure classes callers care about. Resolution
// and fetch problems are per-file or per-revision warnings upstream;
// ErrBinaryNotFound and ErrUnavailable abort the whole run.
var (
	ErrBinaryNotFound = errors.New("p4 binary not found")
	ErrUnavailable    = errors.New("p4 unavailable")
	ErrNoSuchFile     = errors.New("no such file")
	ErrNoSuchRevision = errors.New("no such revision")
)

// Fatal reports whether an error makes any further progress meaningless.
func Fatal(err error) bool {
	return errors.Is(err, ErrBinaryNotFound) || errors.Is(err, ErrUnavailable)
}

// Package probe lists directories and stats entries for the scanner. It is
// the only layer that touches the underlying filesystem during a scan.
package probe

import (
	"context"
	"io/fs"
	"time"

	"emperror.dev/errors"

	"github.com/sadopc/duscope/internal/model"
)

// ErrUnsupported is returned by optional probe capabilities a platform or
// transport does not provide.
const ErrUnsupported = errors.Sentinel("operation not supported by probe")

// Metadata is the raw stat information the scanner needs for one entry.
type Metadata struct {
	Kind        model.Kind
	Size        int64 // apparent size in bytes
	Allocated   int64 // bytes in allocated blocks
	Mtime       time.Time
	Identity    model.Identity
	HasIdentity bool
	Nlink       uint64
	// Estimated marks an Allocated value derived from Size rather than the
	// block count reported by the filesystem.
	Estimated bool
}

// Entry is one listed child. Err is set when the entry could not be
// stat'ed; Meta is then only partially filled.
type Entry struct {
	Name string
	Meta Metadata
	Err  error
}

// Probe is the filesystem abstraction used by the scan engine. List fails
// only when the directory itself cannot be read; per-entry failures are
// reported on the entry. Implementations do not cache.
type Probe interface {
	List(ctx context.Context, dir string) ([]Entry, error)
	Stat(ctx context.Context, path string) (Metadata, error)
}

// Capacity describes the filesystem holding a path.
type Capacity struct {
	Total     uint64
	Free      uint64
	Available uint64
}

// Used returns the bytes in use on the filesystem.
func (c Capacity) Used() uint64 {
	if c.Free > c.Total {
		return 0
	}
	return c.Total - c.Free
}

// CapacityProber is implemented by probes that can report filesystem size.
type CapacityProber interface {
	Capacity(ctx context.Context, path string) (Capacity, error)
}

// Error is a failure to read one directory or entry.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Reason returns a short human-readable cause for display next to a node.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, fs.ErrPermission):
		return "permission denied"
	case errors.Is(err, fs.ErrNotExist):
		return "vanished during scan"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Err.Error()
	}
	return err.Error()
}

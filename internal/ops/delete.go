// Package ops carries out user-requested operations on the scanned
// filesystem: deleting entries and exporting a finished scan.
package ops

import (
	"context"
	"path/filepath"
	"strings"

	"emperror.dev/errors"
	"github.com/sirupsen/logrus"
)

// ErrOutsideRoot is returned for targets that are not strictly below the
// scan root.
const ErrOutsideRoot = errors.Sentinel("refusing to delete outside the scan root")

// ErrScanRoot is returned when asked to delete the scan root itself.
const ErrScanRoot = errors.Sentinel("refusing to delete the scan root")

// ErrSymlinkInPath is returned when a directory between the root and the
// target is a symlink.
const ErrSymlinkInPath = errors.Sentinel("path crosses a symlink")

// Deleter removes one filesystem entry, recursively for directories.
type Deleter interface {
	Delete(ctx context.Context, path string) error
}

// DeleteError reports a failed deletion. The tree is left untouched.
type DeleteError struct {
	Path string
	Err  error
}

func (e *DeleteError) Error() string { return "delete " + e.Path + ": " + e.Err.Error() }
func (e *DeleteError) Unwrap() error { return e.Err }

// LocalDeleter deletes entries below Root without following symlinks.
type LocalDeleter struct {
	Root string
	Log  logrus.FieldLogger
}

// NewLocalDeleter creates a deleter constrained to root.
func NewLocalDeleter(root string, log logrus.FieldLogger) *LocalDeleter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LocalDeleter{Root: root, Log: log}
}

// Delete removes path, which must be strictly inside the root.
func (d *LocalDeleter) Delete(ctx context.Context, path string) error {
	absRoot, rel, err := d.resolve(path)
	if err != nil {
		return &DeleteError{Path: path, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return &DeleteError{Path: path, Err: err}
	}

	dir, base := filepath.Split(rel)
	if err := deleteResolvedPath(ctx, absRoot, dir, base); err != nil {
		d.Log.WithError(err).WithField("path", path).Warn("delete failed")
		return &DeleteError{Path: path, Err: err}
	}
	d.Log.WithField("path", path).Info("deleted")
	return nil
}

// resolve returns the absolute root and the target relative to it.
func (d *LocalDeleter) resolve(path string) (string, string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", "", errors.WrapIf(err, "cannot resolve path")
	}
	absRoot, err := filepath.Abs(d.Root)
	if err != nil {
		return "", "", errors.WrapIf(err, "cannot resolve root")
	}

	rel, err := filepath.Rel(absRoot, absPath)
	switch {
	case err != nil:
		return "", "", errors.WithDetails(ErrOutsideRoot, "root", absRoot)
	case rel == ".":
		return "", "", ErrScanRoot
	case rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)):
		return "", "", errors.WithDetails(ErrOutsideRoot, "root", absRoot)
	}
	return absRoot, rel, nil
}

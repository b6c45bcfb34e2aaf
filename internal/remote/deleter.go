package remote

import (
	"context"
	pathpkg "path"

	"emperror.dev/errors"
	"github.com/sirupsen/logrus"

	"github.com/sadopc/duscope/internal/ops"
)

// Deleter removes remote entries below root over SFTP. Symlinks are
// removed, never followed.
type Deleter struct {
	client sftpClient
	root   string
	log    logrus.FieldLogger
}

var _ ops.Deleter = (*Deleter)(nil)

// Delete removes path recursively. It refuses the root and anything outside it.
func (d *Deleter) Delete(ctx context.Context, path string) error {
	target := cleanPath(path)
	switch {
	case target == d.root:
		return &ops.DeleteError{Path: path, Err: ops.ErrScanRoot}
	case !within(d.root, target):
		return &ops.DeleteError{Path: path, Err: errors.WithDetails(ops.ErrOutsideRoot, "root", d.root)}
	}

	if err := d.remove(ctx, target); err != nil {
		d.log.WithError(err).WithField("path", target).Warn("remote delete failed")
		return &ops.DeleteError{Path: path, Err: err}
	}
	d.log.WithField("path", target).Info("deleted")
	return nil
}

func (d *Deleter) remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fi, err := d.client.Lstat(path)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return d.client.Remove(path)
	}

	children, err := d.client.ReadDir(path)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := d.remove(ctx, pathpkg.Join(path, c.Name())); err != nil {
			return err
		}
	}
	return d.client.RemoveDirectory(path)
}

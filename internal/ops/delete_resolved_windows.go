//go:build windows

package ops

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"emperror.dev/errors"
)

// deleteResolvedPath refuses symlinked components between root and the
// target, then removes it. Windows has no openat, so this is best effort.
func deleteResolvedPath(ctx context.Context, root, relDir, base string) error {
	cur := root
	for _, part := range strings.Split(filepath.Clean(relDir), string(filepath.Separator)) {
		if part == "" || part == "." {
			continue
		}
		cur = filepath.Join(cur, part)
		info, err := os.Lstat(cur)
		if err != nil {
			return err
		}
		if info.Mode()&fs.ModeSymlink != 0 || !info.IsDir() {
			return errors.WithDetails(ErrSymlinkInPath, "component", part)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	target := filepath.Join(cur, base)
	info, err := os.Lstat(target)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return os.RemoveAll(target)
	}
	return os.Remove(target)
}

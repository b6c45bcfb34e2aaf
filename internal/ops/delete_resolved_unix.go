//go:build !windows

package ops

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"emperror.dev/errors"
	"golang.org/x/sys/unix"
)

const dirFlags = unix.O_RDONLY | unix.O_DIRECTORY | unix.O_CLOEXEC

// deleteResolvedPath walks from root to the parent directory one component
// at a time with O_NOFOLLOW, then removes base relative to that descriptor.
func deleteResolvedPath(ctx context.Context, root, relDir, base string) error {
	fd, err := unix.Open(root, dirFlags, 0)
	if err != nil {
		return err
	}
	for _, part := range strings.Split(filepath.Clean(relDir), string(filepath.Separator)) {
		if part == "" || part == "." {
			continue
		}
		next, err := unix.Openat(fd, part, dirFlags|unix.O_NOFOLLOW, 0)
		unix.Close(fd)
		if err != nil {
			if errors.Is(err, unix.ELOOP) || errors.Is(err, unix.ENOTDIR) {
				return errors.WithDetails(ErrSymlinkInPath, "component", part)
			}
			return notExist(err)
		}
		fd = next
	}
	defer unix.Close(fd)

	return deleteAt(ctx, fd, base)
}

// deleteAt removes name relative to parentFD without following symlinks.
func deleteAt(ctx context.Context, parentFD int, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := unix.Unlinkat(parentFD, name, 0)
	if err == nil {
		return nil
	}
	// Linux reports EISDIR for directories, darwin EPERM.
	if !errors.Is(err, unix.EISDIR) && !errors.Is(err, unix.EPERM) {
		return notExist(err)
	}

	childFD, err := unix.Openat(parentFD, name, dirFlags|unix.O_NOFOLLOW, 0)
	if err != nil {
		// Replaced by a non-directory since the unlink attempt.
		if errors.Is(err, unix.ENOTDIR) || errors.Is(err, unix.ELOOP) {
			return notExist(unix.Unlinkat(parentFD, name, 0))
		}
		return notExist(err)
	}

	childDir := os.NewFile(uintptr(childFD), name)
	entries, readErr := childDir.ReadDir(-1)
	if readErr != nil {
		_ = childDir.Close()
		return readErr
	}
	for _, entry := range entries {
		if err := deleteAt(ctx, childFD, entry.Name()); err != nil {
			_ = childDir.Close()
			return err
		}
	}
	if err := childDir.Close(); err != nil {
		return err
	}

	return notExist(unix.Unlinkat(parentFD, name, unix.AT_REMOVEDIR))
}

func notExist(err error) error {
	if errors.Is(err, unix.ENOENT) {
		return fs.ErrNotExist
	}
	return err
}

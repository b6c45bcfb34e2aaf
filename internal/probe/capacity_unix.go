//go:build darwin || linux || freebsd

package probe

import (
	"context"

	"golang.org/x/sys/unix"
)

// Capacity reports the size of the filesystem containing path.
func (l *Local) Capacity(_ context.Context, path string) (Capacity, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Capacity{}, &Error{Op: "statfs", Path: path, Err: err}
	}
	bsize := uint64(st.Bsize)
	return Capacity{
		Total:     uint64(st.Blocks) * bsize,
		Free:      uint64(st.Bfree) * bsize,
		Available: uint64(st.Bavail) * bsize,
	}, nil
}

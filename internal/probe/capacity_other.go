//go:build !darwin && !linux && !freebsd

package probe

import "context"

// Capacity is not implemented on this platform.
func (l *Local) Capacity(_ context.Context, path string) (Capacity, error) {
	return Capacity{}, &Error{Op: "statfs", Path: path, Err: ErrUnsupported}
}

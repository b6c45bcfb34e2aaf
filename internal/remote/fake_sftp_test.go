package remote

import (
	"io"
	"os"
	pathpkg "path"
	"sort"
	"strings"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/pkg/sftp"
	"github.com/sirupsen/logrus"
)

// fakeNode is one entry of an in-memory remote filesystem.
type fakeNode struct {
	mode      os.FileMode
	size      int64
	target    string
	errOnRead bool
}

// fakeSFTP implements sftpClient over a path → node map. Children are
// derived from the paths.
type fakeSFTP struct {
	mu    sync.Mutex
	nodes map[string]fakeNode
	vfs   *sftp.StatVFS
}

func newFakeSFTP(nodes map[string]fakeNode) *fakeSFTP {
	cp := make(map[string]fakeNode, len(nodes))
	for k, v := range nodes {
		cp[cleanPath(k)] = v
	}
	return &fakeSFTP{nodes: cp}
}

// fakeVFS adds the statvfs extension.
type fakeVFS struct{ *fakeSFTP }

func (f fakeVFS) StatVFS(string) (*sftp.StatVFS, error) { return f.vfs, nil }

func (f *fakeSFTP) ReadDir(path string) ([]os.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path = cleanPath(path)
	node, ok := f.nodes[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	if !node.mode.IsDir() {
		return nil, errors.New("not a directory")
	}
	if node.errOnRead {
		return nil, os.ErrPermission
	}
	var out []os.FileInfo
	for p, n := range f.nodes {
		if p != path && pathpkg.Dir(p) == path {
			out = append(out, fakeInfo{name: pathpkg.Base(p), size: n.size, mode: n.mode})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

func (f *fakeSFTP) Lstat(path string) (os.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[cleanPath(path)]
	if !ok {
		return nil, os.ErrNotExist
	}
	return fakeInfo{name: pathpkg.Base(path), size: n.size, mode: n.mode}, nil
}

func (f *fakeSFTP) Stat(path string) (os.FileInfo, error) {
	resolved, err := f.RealPath(path)
	if err != nil {
		return nil, err
	}
	return f.Lstat(resolved)
}

func (f *fakeSFTP) RealPath(path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolve(cleanPath(path), map[string]bool{})
}

func (f *fakeSFTP) resolve(path string, seen map[string]bool) (string, error) {
	n, ok := f.nodes[path]
	if !ok {
		return "", os.ErrNotExist
	}
	if n.mode&os.ModeSymlink == 0 {
		return path, nil
	}
	if seen[path] {
		return "", errors.New("symlink cycle")
	}
	seen[path] = true
	target := n.target
	if !pathpkg.IsAbs(target) {
		target = pathpkg.Join(pathpkg.Dir(path), target)
	}
	return f.resolve(cleanPath(target), seen)
}

func (f *fakeSFTP) Remove(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	path = cleanPath(path)
	n, ok := f.nodes[path]
	if !ok {
		return os.ErrNotExist
	}
	if n.mode.IsDir() {
		return errors.New("is a directory")
	}
	delete(f.nodes, path)
	return nil
}

func (f *fakeSFTP) RemoveDirectory(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	path = cleanPath(path)
	if _, ok := f.nodes[path]; !ok {
		return os.ErrNotExist
	}
	for p := range f.nodes {
		if strings.HasPrefix(p, path+"/") {
			return errors.New("directory not empty")
		}
	}
	delete(f.nodes, path)
	return nil
}

func (f *fakeSFTP) exists(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.nodes[cleanPath(path)]
	return ok
}

type fakeInfo struct {
	name string
	size int64
	mode os.FileMode
}

func (fi fakeInfo) Name() string       { return fi.name }
func (fi fakeInfo) Size() int64        { return fi.size }
func (fi fakeInfo) Mode() os.FileMode  { return fi.mode }
func (fi fakeInfo) ModTime() time.Time { return time.Unix(1700000000, 0) }
func (fi fakeInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi fakeInfo) Sys() any           { return nil }

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

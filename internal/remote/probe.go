package remote

import (
	"context"
	"os"
	pathpkg "path"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/sadopc/duscope/internal/model"
	"github.com/sadopc/duscope/internal/probe"
)

const (
	defaultPath      = "."
	defaultBlockSize = int64(4096)
	maxInt64         = int64(^uint64(0) >> 1)
)

// Probe lists remote directories over SFTP. SFTP reports neither inode
// numbers nor allocated blocks, so directory identities are synthesized
// from the canonical path and disk usage is estimated from the size.
type Probe struct {
	client sftpClient
	// dev stands in for the device number of every remote entry.
	dev uint64

	blockOnce sync.Once
	blockSize int64
}

var (
	_ probe.Probe          = (*Probe)(nil)
	_ probe.CapacityProber = (*Probe)(nil)
)

// Resolve canonicalizes a remote path, falling back to a lexical clean when
// the server cannot resolve it.
func (p *Probe) Resolve(path string) string {
	if strings.TrimSpace(path) == "" {
		path = defaultPath
	}
	clean := cleanPath(path)
	if resolved, err := p.client.RealPath(clean); err == nil {
		return cleanPath(resolved)
	}
	return clean
}

// Join uses forward slashes whatever the local OS.
func (p *Probe) Join(dir, name string) string {
	return pathpkg.Join(dir, name)
}

// List reads one remote directory. READDIR attributes describe the entries
// themselves, so symlinks are reported, not followed.
func (p *Probe) List(ctx context.Context, dir string) ([]probe.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, &probe.Error{Op: "readdir", Path: dir, Err: err}
	}
	infos, err := p.readDir(ctx, dir)
	if err != nil {
		return nil, &probe.Error{Op: "readdir", Path: dir, Err: err}
	}
	block := p.block(dir)

	entries := make([]probe.Entry, 0, len(infos))
	for _, fi := range infos {
		if err := ctx.Err(); err != nil {
			return nil, &probe.Error{Op: "readdir", Path: dir, Err: err}
		}
		meta := p.metadata(fi, block)
		if meta.Kind == model.KindDir {
			p.identify(&meta, p.Join(dir, fi.Name()))
		}
		entries = append(entries, probe.Entry{Name: fi.Name(), Meta: meta})
	}
	return entries, nil
}

// Stat follows symlinks so a linked scan root is usable.
func (p *Probe) Stat(_ context.Context, path string) (probe.Metadata, error) {
	fi, err := p.client.Stat(path)
	if err != nil {
		return probe.Metadata{}, &probe.Error{Op: "stat", Path: path, Err: err}
	}
	meta := p.metadata(fi, p.block(path))
	if meta.Kind == model.KindDir {
		p.identify(&meta, path)
	}
	return meta, nil
}

// Capacity uses the statvfs@openssh.com extension when the server has it.
func (p *Probe) Capacity(_ context.Context, path string) (probe.Capacity, error) {
	vfs, ok := p.client.(statVFSClient)
	if !ok {
		return probe.Capacity{}, probe.ErrUnsupported
	}
	st, err := vfs.StatVFS(path)
	if err != nil {
		return probe.Capacity{}, &probe.Error{Op: "statvfs", Path: path, Err: err}
	}
	frsize := st.Frsize
	if frsize == 0 {
		frsize = st.Bsize
	}
	return probe.Capacity{
		Total:     st.Blocks * frsize,
		Free:      st.Bfree * frsize,
		Available: st.Bavail * frsize,
	}, nil
}

func (p *Probe) readDir(ctx context.Context, dir string) ([]os.FileInfo, error) {
	if rc, ok := p.client.(interface {
		ReadDirContext(context.Context, string) ([]os.FileInfo, error)
	}); ok {
		return rc.ReadDirContext(ctx, dir)
	}
	return p.client.ReadDir(dir)
}

func (p *Probe) metadata(fi os.FileInfo, block int64) probe.Metadata {
	kind := model.KindFromMode(fi.Mode())
	m := probe.Metadata{
		Kind:      kind,
		Size:      fi.Size(),
		Mtime:     fi.ModTime(),
		Nlink:     1,
		Estimated: true,
	}
	if kind == model.KindFile || kind == model.KindDir {
		m.Allocated = estimateUsage(fi.Size(), block)
	}
	return m
}

// identify gives a directory a stable identity from its canonical path, so
// two names for the same directory are detected.
func (p *Probe) identify(m *probe.Metadata, path string) {
	canonical := cleanPath(path)
	if resolved, err := p.client.RealPath(canonical); err == nil {
		canonical = cleanPath(resolved)
	}
	m.Identity = model.Identity{Dev: p.dev, Ino: xxhash.Sum64String(canonical)}
	m.HasIdentity = true
}

// block returns the filesystem block size, asked once per probe.
func (p *Probe) block(path string) int64 {
	p.blockOnce.Do(func() {
		p.blockSize = defaultBlockSize
		vfs, ok := p.client.(statVFSClient)
		if !ok {
			return
		}
		st, err := vfs.StatVFS(path)
		if err != nil || st == nil {
			return
		}
		switch {
		case st.Frsize > 0 && st.Frsize <= uint64(maxInt64):
			p.blockSize = int64(st.Frsize)
		case st.Bsize > 0 && st.Bsize <= uint64(maxInt64):
			p.blockSize = int64(st.Bsize)
		}
	})
	return p.blockSize
}

func estimateUsage(size, block int64) int64 {
	if size <= 0 {
		return 0
	}
	if block <= 0 {
		block = defaultBlockSize
	}
	return (size + block - 1) / block * block
}

func cleanPath(p string) string {
	if p == "" {
		return defaultPath
	}
	return pathpkg.Clean(strings.ReplaceAll(p, "\\", "/"))
}

// within reports whether target is root or below it, with POSIX semantics.
func within(root, target string) bool {
	root, target = pathpkg.Clean(root), pathpkg.Clean(target)
	if root == target {
		return true
	}
	if !strings.HasSuffix(root, "/") {
		root += "/"
	}
	return strings.HasPrefix(target, root)
}

package scanner

import (
	"context"
	"io"
	"io/fs"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sadopc/duscope/internal/model"
	"github.com/sadopc/duscope/internal/probe"
)

const blockSize = 4096

// fakeProbe serves scripted listings. A gated path blocks its first List
// call until the gate is closed.
type fakeProbe struct {
	mu      sync.Mutex
	dirs    map[string][]probe.Entry
	meta    map[string]probe.Metadata
	fail    map[string]error
	gates   map[string]chan struct{}
	entered chan string
	calls   map[string]int
}

func newFakeProbe() *fakeProbe {
	return &fakeProbe{
		dirs:    make(map[string][]probe.Entry),
		meta:    make(map[string]probe.Metadata),
		fail:    make(map[string]error),
		gates:   make(map[string]chan struct{}),
		entered: make(chan string, 16),
		calls:   make(map[string]int),
	}
}

func (f *fakeProbe) List(ctx context.Context, dir string) ([]probe.Entry, error) {
	f.mu.Lock()
	f.calls[dir]++
	entries := append([]probe.Entry(nil), f.dirs[dir]...)
	err := f.fail[dir]
	gate := f.gates[dir]
	delete(f.gates, dir)
	f.mu.Unlock()

	if gate != nil {
		f.entered <- dir
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, &probe.Error{Op: "open", Path: dir, Err: err}
	}
	return entries, nil
}

func (f *fakeProbe) Stat(_ context.Context, path string) (probe.Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meta[path]
	if !ok {
		return probe.Metadata{}, &probe.Error{Op: "lstat", Path: path, Err: errNotFound}
	}
	return m, nil
}

func (f *fakeProbe) setDir(path string, entries ...probe.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirs[path] = entries
}

func (f *fakeProbe) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

var errNotFound = fs.ErrNotExist

func dirMeta(ino uint64) probe.Metadata {
	return probe.Metadata{
		Kind:        model.KindDir,
		Size:        blockSize,
		Allocated:   blockSize,
		Identity:    model.Identity{Dev: 1, Ino: ino},
		HasIdentity: true,
		Nlink:       2,
	}
}

func fileMeta(ino uint64, size int64, nlink uint64) probe.Metadata {
	blocks := (size + blockSize - 1) / blockSize
	return probe.Metadata{
		Kind:        model.KindFile,
		Size:        size,
		Allocated:   blocks * blockSize,
		Identity:    model.Identity{Dev: 1, Ino: ino},
		HasIdentity: true,
		Nlink:       nlink,
		Mtime:       time.Unix(1700000000, 0),
	}
}

func dirEntry(name string, ino uint64) probe.Entry {
	return probe.Entry{Name: name, Meta: dirMeta(ino)}
}

func fileEntry(name string, ino uint64, size int64) probe.Entry {
	return probe.Entry{Name: name, Meta: fileMeta(ino, size, 1)}
}

func linkEntry(name string, ino uint64, size int64) probe.Entry {
	return probe.Entry{Name: name, Meta: fileMeta(ino, size, 2)}
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// runScan opens and starts an engine and waits for the root to finish.
func runScan(t *testing.T, p probe.Probe, root string, opts Options) *Engine {
	t.Helper()
	e := startScan(t, p, root, opts)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Wait(ctx); err != nil {
		t.Fatalf("scan did not finish: %v", err)
	}
	return e
}

func startScan(t *testing.T, p probe.Probe, root string, opts Options) *Engine {
	t.Helper()
	e, err := Open(context.Background(), p, root, opts, quietLogger())
	if err != nil {
		t.Fatalf("Open(%s): %v", root, err)
	}
	e.Start(context.Background())
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// lookup resolves a slash-separated path below the root. Caller holds the lock.
func lookup(root *model.Node, rel string) *model.Node {
	n := root
	for _, part := range strings.Split(rel, "/") {
		if n == nil {
			return nil
		}
		n = n.Child(part)
	}
	return n
}

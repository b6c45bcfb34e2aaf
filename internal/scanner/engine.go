package scanner

import (
	"context"
	"path/filepath"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"emperror.dev/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sadopc/duscope/internal/model"
	"github.com/sadopc/duscope/internal/probe"
)

// ErrNotDirectory is returned by Open when the scan root is not a directory.
const ErrNotDirectory = errors.Sentinel("not a directory")

// inboxSize bounds how many results may wait for the aggregator.
const inboxSize = 256

// PathJoiner is implemented by probes whose paths do not use the host
// separator.
type PathJoiner interface {
	Join(dir, name string) string
}

// Engine runs a pool of workers over an unbounded job queue and feeds the
// results to an Aggregator.
type Engine struct {
	probe probe.Probe
	opts  Options
	log   logrus.FieldLogger

	tree  *model.Tree
	agg   *Aggregator
	queue *jobQueue
	inbox chan Result
	// running lets a rescan interrupt listings it supersedes.
	running *listings

	rootPath  string
	rootDev   uint64
	hasDev    bool
	prelisted atomic.Pointer[[]probe.Entry]

	gen     atomic.Uint64
	workers int

	files, dirs, bytes, errs atomic.Int64
	active                   atomic.Int64
	current                  atomic.Pointer[string]
	started                  atomic.Int64

	cancel    context.CancelFunc
	group     *errgroup.Group
	gcOnce    sync.Once
	gcOff     bool
	oldGC     int
	startOnce sync.Once
}

// Open stats and lists the scan root so that a missing, non-directory or
// unreadable path fails before anything else starts.
func Open(ctx context.Context, p probe.Probe, root string, opts Options, log logrus.FieldLogger) (*Engine, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	meta, err := p.Stat(ctx, root)
	if err != nil {
		return nil, errors.WrapIf(err, "cannot access scan root")
	}
	if meta.Kind != model.KindDir {
		return nil, errors.WithDetails(errors.WrapIf(ErrNotDirectory, root), "path", root)
	}
	entries, err := p.List(ctx, root)
	if err != nil {
		return nil, errors.WrapIf(err, "cannot read scan root")
	}

	node := model.NewNode(nil, root, model.KindDir)
	applyMeta(node, meta)
	node.SetGen(1)

	tree := model.NewTree(node)
	e := &Engine{
		probe:    p,
		opts:     opts,
		log:      log,
		tree:     tree,
		agg:      NewAggregator(tree, log),
		queue:    newJobQueue(),
		running:  newListings(),
		inbox:    make(chan Result, inboxSize),
		rootPath: root,
		rootDev:  meta.Identity.Dev,
		hasDev:   meta.HasIdentity,
		workers:  opts.workers(),
	}
	e.gen.Store(1)
	e.prelisted.Store(&entries)
	e.agg.onRootDone = e.restoreGC
	return e, nil
}

// Tree returns the tree the engine writes into.
func (e *Engine) Tree() *model.Tree { return e.tree }

// Aggregator returns the engine's single writer.
func (e *Engine) Aggregator() *Aggregator { return e.agg }

// Start launches the aggregator and the worker pool and submits the root.
func (e *Engine) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		e.cancel = cancel
		g, gctx := errgroup.WithContext(ctx)
		e.group = g

		if e.opts.DisableGC {
			e.oldGC = debug.SetGCPercent(-1)
			e.gcOff = true
		}
		e.started.Store(time.Now().UnixNano())

		g.Go(func() error { return e.agg.Run(gctx, e.inbox) })
		for i := 0; i < e.workers; i++ {
			g.Go(func() error { return e.work(gctx) })
		}

		e.log.WithFields(logrus.Fields{
			"path":         e.rootPath,
			"workers":      e.workers,
			"cross_device": e.opts.CrossDevice,
		}).Info("scan started")
		e.queue.push(Job{Node: e.tree.Root(), Path: e.rootPath, Gen: 1})
	})
}

// Close cancels all workers and waits for them to exit.
func (e *Engine) Close() error {
	e.restoreGC()
	if e.cancel == nil {
		return nil
	}
	e.cancel()
	return e.group.Wait()
}

// Wait blocks until the root reaches a terminal state or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	for {
		if e.agg.RootDone() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.agg.settled:
		}
	}
}

// Rescan discards n's subtree and scans it again under a new generation.
// Listings in flight for the superseded generation are canceled and their
// results dropped. Mount points that were not crossed and repeat sightings
// of a directory are never entered, so they are not rescanned either.
func (e *Engine) Rescan(n *model.Node) bool {
	if n == nil || !n.IsDir() || !n.Live() {
		return false
	}
	var flags model.NodeFlag
	e.tree.View(func(*model.Node) { flags = n.Flags })
	if flags&(model.FlagOtherDevice|model.FlagHardlink) != 0 {
		e.log.WithField("path", e.PathOf(n)).Debug("not rescanning a directory that is not traversed")
		return false
	}

	gen := e.gen.Add(1)
	e.agg.Reset(n, gen)
	if canceled := e.running.cancelSuperseded(); canceled > 0 {
		e.log.WithFields(logrus.Fields{"gen": gen, "listings": canceled}).Debug("canceled superseded listings")
	}
	if n == e.tree.Root() {
		e.files.Store(0)
		e.dirs.Store(0)
		e.bytes.Store(0)
		e.errs.Store(0)
	}
	e.started.Store(time.Now().UnixNano())
	e.log.WithFields(logrus.Fields{"path": e.PathOf(n), "gen": gen}).Info("rescan requested")
	e.queue.push(Job{Node: n, Path: e.PathOf(n), Gen: gen})
	return true
}

// Remove applies a successful deletion of n to the tree.
func (e *Engine) Remove(n *model.Node) error {
	return e.agg.Remove(n)
}

// PathOf returns the probe path of n. Names and parent links never change,
// so this does not need the tree lock.
func (e *Engine) PathOf(n *model.Node) string {
	if n.Parent() == nil {
		return n.Name
	}
	return e.join(e.PathOf(n.Parent()), n.Name)
}

// Progress returns a snapshot of the scan counters. It does not take the
// tree lock and may be called while holding it.
func (e *Engine) Progress() Progress {
	p := Progress{
		FilesScanned: e.files.Load(),
		DirsScanned:  e.dirs.Load(),
		BytesFound:   e.bytes.Load(),
		SharedBytes:  e.agg.SharedBytes(),
		Errors:       e.errs.Load(),
		Workers:      e.workers,
		Active:       int(e.active.Load()),
		Queued:       e.queue.len(),
		Done:         e.agg.RootDone(),
		StartTime:    time.Unix(0, e.started.Load()),
	}
	if cur := e.current.Load(); cur != nil {
		p.CurrentPath = *cur
	}
	end := time.Now()
	if p.Done {
		if f := e.agg.finished.Load(); f > p.StartTime.UnixNano() {
			end = time.Unix(0, f)
		}
	}
	p.Duration = end.Sub(p.StartTime)
	return p
}

func (e *Engine) work(ctx context.Context) error {
	for {
		job, ok := e.queue.pop(ctx)
		if !ok {
			return nil
		}
		e.process(ctx, job)
	}
}

// process lists one directory. The claim and the listing are sent before
// the subdirectory jobs are queued, so a parent's listing is always applied
// before any of its children's.
func (e *Engine) process(ctx context.Context, job Job) {
	// Registered before the staleness check, so a rescan racing with this
	// job either sees it registered or the job sees the new generation.
	listCtx, done := e.running.start(ctx, job)
	defer done()
	if job.stale(ctx) {
		return
	}
	e.active.Add(1)
	defer e.active.Add(-1)
	path := job.Path
	e.current.Store(&path)

	if !e.send(ctx, Result{Job: job, Claimed: true}) {
		return
	}

	entries, err := e.list(listCtx, job)
	if err != nil {
		if job.stale(ctx) {
			return
		}
		e.errs.Add(1)
		e.send(ctx, Result{Job: job, Err: err})
		return
	}
	e.dirs.Add(1)

	children := make([]*model.Node, 0, len(entries))
	var subdirs []Job
	for _, ent := range entries {
		if job.stale(ctx) {
			return
		}
		if e.opts.excluded(ent.Name) {
			continue
		}
		c := e.newChild(job, ent)
		children = append(children, c)
		if c.IsDir() && c.State == model.StatePending {
			subdirs = append(subdirs, Job{Node: c, Path: e.join(job.Path, ent.Name), Gen: job.Gen})
		}
	}

	if !e.send(ctx, Result{Job: job, Children: children}) {
		return
	}
	e.queue.push(subdirs...)
}

func (e *Engine) list(ctx context.Context, job Job) ([]probe.Entry, error) {
	if job.Node == e.tree.Root() && job.Gen == 1 {
		if pre := e.prelisted.Swap(nil); pre != nil {
			return *pre, nil
		}
	}
	return e.probe.List(ctx, job.Path)
}

// newChild builds an unattached node for a listed entry. Only the
// aggregator attaches it.
func (e *Engine) newChild(job Job, ent probe.Entry) *model.Node {
	c := model.NewNode(job.Node, ent.Name, ent.Meta.Kind)
	c.SetGen(job.Gen)
	if ent.Err != nil {
		c.State = model.StateErrored
		c.Err = ent.Err
		c.Errors = 1
		e.errs.Add(1)
		return c
	}
	applyMeta(c, ent.Meta)

	if c.IsDir() {
		if !e.opts.CrossDevice && e.otherDevice(ent.Meta) {
			c.Flags |= model.FlagOtherDevice
			c.State = model.StateDone
			c.Apparent, c.Allocated = c.OwnApparent, c.OwnAllocated
		}
		return c
	}

	c.Apparent, c.Allocated = c.OwnApparent, c.OwnAllocated
	e.files.Add(1)
	e.bytes.Add(c.OwnApparent)
	return c
}

func (e *Engine) otherDevice(m probe.Metadata) bool {
	return e.hasDev && m.HasIdentity && m.Identity.Dev != e.rootDev
}

func (e *Engine) send(ctx context.Context, r Result) bool {
	select {
	case e.inbox <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

func (e *Engine) join(dir, name string) string {
	if j, ok := e.probe.(PathJoiner); ok {
		return j.Join(dir, name)
	}
	return filepath.Join(dir, name)
}

func (e *Engine) restoreGC() {
	if !e.gcOff {
		return
	}
	e.gcOnce.Do(func() {
		debug.SetGCPercent(e.oldGC)
	})
}

func applyMeta(n *model.Node, m probe.Metadata) {
	n.OwnApparent = m.Size
	n.OwnAllocated = m.Allocated
	n.Mtime = m.Mtime
	n.Nlink = m.Nlink
	n.Identity = m.Identity
	n.HasIdentity = m.HasIdentity
	if m.Estimated {
		n.Flags |= model.FlagUsageEstimated
	}
}

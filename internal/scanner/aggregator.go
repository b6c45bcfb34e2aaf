package scanner

import (
	"context"
	"sync/atomic"
	"time"

	"emperror.dev/errors"
	"github.com/sirupsen/logrus"

	"github.com/sadopc/duscope/internal/model"
)

// ErrNotAttached is returned when a removal targets a node that is no
// longer part of the tree.
const ErrNotAttached = errors.Sentinel("node is not attached to the tree")

// ErrRemoveRoot is returned when asked to remove the scan root.
const ErrRemoveRoot = errors.Sentinel("cannot remove the scan root")

// Aggregator is the only writer to the tree. Each call runs as one step
// under the tree's write lock.
type Aggregator struct {
	tree *model.Tree
	log  logrus.FieldLogger

	// owners maps an identity to the node whose size was counted for it.
	owners map[model.Identity]*model.Node

	shared   atomic.Int64
	rootDone atomic.Bool
	finished atomic.Int64
	dropped  atomic.Int64

	settled    chan struct{}
	onRootDone func()
}

// NewAggregator creates an aggregator for tree.
func NewAggregator(tree *model.Tree, log logrus.FieldLogger) *Aggregator {
	a := &Aggregator{
		tree:    tree,
		log:     log,
		owners:  make(map[model.Identity]*model.Node),
		settled: make(chan struct{}, 1),
	}
	root := tree.Root()
	if root.HasIdentity {
		a.owners[root.Identity] = root
	}
	return a
}

// Run applies results from inbox until ctx is done or inbox is closed.
func (a *Aggregator) Run(ctx context.Context, inbox <-chan Result) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case r, ok := <-inbox:
			if !ok {
				return nil
			}
			a.Apply(r)
		}
	}
}

// Apply merges one result into the tree. Results whose generation tag no
// longer matches their node, or whose node is no longer attached, are
// dropped together with the children they carried.
func (a *Aggregator) Apply(r Result) {
	a.tree.Update(func(root *model.Node) {
		n := r.Job.Node
		if n.Gen() != r.Job.Gen || !n.Attached() {
			for _, c := range r.Children {
				c.Discard()
			}
			a.dropped.Add(1)
			a.log.WithFields(logrus.Fields{"path": r.Job.Path, "gen": r.Job.Gen}).Debug("dropping stale scan result")
			return
		}

		switch {
		case r.Claimed:
			a.must(n.Claim())
		case r.Err != nil:
			a.log.WithError(r.Err).WithField("path", r.Job.Path).Debug("directory listing failed")
			done, err := n.Fail(r.Err)
			a.must(err)
			a.finish(root, done)
		default:
			a.attachListing(n, r.Children)
			a.finish(root, n.FinishListing())
		}
	})
}

func (a *Aggregator) attachListing(n *model.Node, children []*model.Node) {
	n.Propagate(model.Delta{Apparent: n.OwnApparent, Allocated: n.OwnAllocated})
	for _, c := range children {
		a.dedup(c)
		n.Attach(c)
	}
}

// dedup decides whether c is the first sighting of its identity. Repeat
// file sightings keep their size for display but contribute nothing; a
// repeat directory (bind mount loop) is not entered.
func (a *Aggregator) dedup(c *model.Node) {
	if !c.HasIdentity || c.State == model.StateErrored {
		return
	}
	if c.Kind != model.KindDir && c.Nlink <= 1 {
		return
	}
	if _, seen := a.owners[c.Identity]; !seen {
		a.owners[c.Identity] = c
		return
	}
	c.Flags |= model.FlagHardlink
	if c.IsDir() {
		c.State = model.StateDone
		c.SetGen(0)
		return
	}
	a.shared.Add(c.Allocated)
}

// Reset discards n's subtree and returns it to Pending under gen. A root
// reset starts a fresh identity set.
func (a *Aggregator) Reset(n *model.Node, gen uint64) {
	a.tree.Update(func(root *model.Node) {
		old := n.Reset(gen)
		if n == root {
			clear(a.owners)
			if root.HasIdentity {
				a.owners[root.Identity] = root
			}
			a.shared.Store(0)
		} else {
			for _, c := range old {
				a.release(c)
			}
		}
		a.rootDone.Store(root.State.Terminal())
	})
}

// Remove detaches n after a successful deletion and subtracts its
// contribution from every ancestor.
func (a *Aggregator) Remove(n *model.Node) error {
	var err error
	a.tree.Update(func(root *model.Node) {
		if n == root {
			err = ErrRemoveRoot
			return
		}
		p := n.Parent()
		if p == nil || p.Child(n.Name) != n || !n.Live() {
			err = errors.WithDetails(ErrNotAttached, "name", n.Name)
			return
		}
		_, done := p.Detach(n.Name)
		a.release(n)
		a.finish(root, done)
	})
	return err
}

// release forgets identities counted inside a discarded subtree so a later
// sighting elsewhere is counted again.
func (a *Aggregator) release(n *model.Node) {
	n.Walk(func(x *model.Node) bool {
		if !x.HasIdentity {
			return true
		}
		if x.Flags&model.FlagHardlink != 0 {
			if !x.IsDir() {
				a.shared.Add(-x.Allocated)
			}
			return true
		}
		if a.owners[x.Identity] == x {
			delete(a.owners, x.Identity)
		}
		return true
	})
}

func (a *Aggregator) finish(root *model.Node, done []*model.Node) {
	for _, n := range done {
		if n != root {
			continue
		}
		a.rootDone.Store(true)
		a.finished.Store(time.Now().UnixNano())
		a.log.WithFields(logrus.Fields{
			"path":  root.Name,
			"state": root.State,
			"items": root.Items,
			"bytes": root.Allocated,
		}).Info("scan finished")
		if a.onRootDone != nil {
			a.onRootDone()
		}
		select {
		case a.settled <- struct{}{}:
		default:
		}
	}
}

// must fails fast on a broken state machine.
func (a *Aggregator) must(err error) {
	if err == nil {
		return
	}
	a.log.WithError(err).Error("tree invariant violated")
	panic(err)
}

// SharedBytes returns the allocated size of repeat hard-link sightings.
func (a *Aggregator) SharedBytes() int64 { return a.shared.Load() }

// Dropped returns how many stale results were discarded.
func (a *Aggregator) Dropped() int64 { return a.dropped.Load() }

// RootDone reports whether the root is terminal, without taking the lock.
func (a *Aggregator) RootDone() bool { return a.rootDone.Load() }

package model

import (
	"io/fs"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"emperror.dev/errors"
)

const (
	maxInt64 = int64(^uint64(0) >> 1)
	minInt64 = -maxInt64 - 1
)

// ErrIllegalTransition is returned when a scan state change is not allowed
// by the directory state machine.
const ErrIllegalTransition = errors.Sentinel("illegal scan state transition")

// Kind classifies a filesystem entry.
type Kind uint8

const (
	KindFile Kind = iota
	KindDir
	KindSymlink
	// KindOther covers devices, sockets, fifos and anything else.
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	default:
		return "other"
	}
}

// KindFromMode maps a file mode to a Kind.
func KindFromMode(mode fs.FileMode) Kind {
	switch {
	case mode&fs.ModeSymlink != 0:
		return KindSymlink
	case mode.IsDir():
		return KindDir
	case mode.IsRegular():
		return KindFile
	default:
		return KindOther
	}
}

// ScanState tracks where a node is in the scan lifecycle.
type ScanState uint8

const (
	StatePending ScanState = iota
	StateInProgress
	StateDone
	StateErrored
)

func (s ScanState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInProgress:
		return "scanning"
	case StateDone:
		return "done"
	default:
		return "error"
	}
}

// Terminal reports whether no further scan work will change the state.
func (s ScanState) Terminal() bool {
	return s == StateDone || s == StateErrored
}

// Identity is the (device, inode) pair of an entry.
type Identity struct {
	Dev uint64
	Ino uint64
}

// NodeFlag represents special entry attributes.
type NodeFlag uint8

const (
	FlagNone NodeFlag = 0
	// FlagHardlink marks a repeat sighting of an identity already counted.
	FlagHardlink NodeFlag = 1 << iota
	// FlagOtherDevice marks a directory on another filesystem that was not entered.
	FlagOtherDevice
	// FlagUsageEstimated marks nodes whose disk usage is estimated (not exact).
	FlagUsageEstimated
)

// Delta is a change to aggregated totals.
type Delta struct {
	Apparent  int64
	Allocated int64
	Items     int64
	Errors    int64
}

// Neg returns the inverse delta.
func (d Delta) Neg() Delta {
	return Delta{Apparent: -d.Apparent, Allocated: -d.Allocated, Items: -d.Items, Errors: -d.Errors}
}

// Add returns the sum of two deltas.
func (d Delta) Add(o Delta) Delta {
	return Delta{
		Apparent:  saturatingAddInt64(d.Apparent, o.Apparent),
		Allocated: saturatingAddInt64(d.Allocated, o.Allocated),
		Items:     d.Items + o.Items,
		Errors:    d.Errors + o.Errors,
	}
}

func (d Delta) IsZero() bool { return d == Delta{} }

// Node is one filesystem entry. All fields except the generation and the
// discarded marker are guarded by the owning Tree's lock.
type Node struct {
	Name        string
	Kind        Kind
	Mtime       time.Time
	Nlink       uint64
	Identity    Identity
	HasIdentity bool
	Flags       NodeFlag

	// OwnApparent and OwnAllocated are the entry's own stat sizes.
	OwnApparent  int64
	OwnAllocated int64

	// Apparent and Allocated are aggregated for directories.
	Apparent  int64
	Allocated int64
	// Items counts descendants, Errors counts errored entries in the subtree.
	Items  int64
	Errors int64

	State ScanState
	Err   error

	parent   *Node
	children map[string]*Node

	gen       atomic.Uint64
	discarded atomic.Bool

	listed  bool
	pending int
}

// NewNode creates an unattached node under parent. Directories start
// Pending; every other kind is a leaf and starts Done. The parent link is
// fixed for the node's lifetime.
func NewNode(parent *Node, name string, kind Kind) *Node {
	n := &Node{Name: name, Kind: kind, parent: parent}
	if kind == KindDir {
		n.State = StatePending
	} else {
		n.State = StateDone
	}
	if parent != nil {
		n.gen.Store(parent.gen.Load())
	}
	return n
}

func (n *Node) IsDir() bool   { return n.Kind == KindDir }
func (n *Node) Parent() *Node { return n.parent }

// Gen returns the scan generation that owns this node. Safe without the lock.
func (n *Node) Gen() uint64 { return n.gen.Load() }

// SetGen tags the node with a scan generation.
func (n *Node) SetGen(g uint64) { n.gen.Store(g) }

// Live reports whether neither the node nor any ancestor was discarded by a
// rescan or a deletion. Safe without the lock: parent links never change.
func (n *Node) Live() bool {
	for p := n; p != nil; p = p.parent {
		if p.discarded.Load() {
			return false
		}
	}
	return true
}

// Attached reports whether n is reachable from the root through child
// links. The caller must hold the tree lock.
func (n *Node) Attached() bool {
	for p := n; p.parent != nil; p = p.parent {
		if p.parent.children[p.Name] != p {
			return false
		}
	}
	return true
}

// Discard marks a node that will never be attached, so pending jobs for it
// and its descendants are skipped.
func (n *Node) Discard() { n.discarded.Store(true) }

// Path reconstructs the full path by walking up the parent chain.
func (n *Node) Path() string {
	depth := 0
	for p := n; p != nil; p = p.parent {
		depth++
	}
	parts := make([]string, depth)
	i := depth - 1
	for p := n; p != nil; p = p.parent {
		parts[i] = p.Name
		i--
	}
	return filepath.Join(parts...)
}

// Child returns the named child, or nil.
func (n *Node) Child(name string) *Node {
	return n.children[name]
}

// Children returns the children in unspecified order.
func (n *Node) Children() []*Node {
	out := make([]*Node, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, c)
	}
	return out
}

// ChildCount returns the number of immediate children.
func (n *Node) ChildCount() int { return len(n.children) }

// Contribution is what this node currently adds to each ancestor's totals.
func (n *Node) Contribution() Delta {
	d := Delta{Apparent: n.Apparent, Allocated: n.Allocated, Items: n.Items + 1, Errors: n.Errors}
	if n.Flags&FlagHardlink != 0 {
		d.Apparent, d.Allocated = 0, 0
	}
	return d
}

// Propagate applies d to n and every ancestor. This is the only place
// aggregated totals change.
func (n *Node) Propagate(d Delta) {
	if d.IsZero() {
		return
	}
	for p := n; p != nil; p = p.parent {
		p.Apparent = saturatingAddInt64(p.Apparent, d.Apparent)
		p.Allocated = saturatingAddInt64(p.Allocated, d.Allocated)
		p.Items += d.Items
		p.Errors += d.Errors
	}
}

// SetState moves a directory through its lifecycle. Rescans go through Reset.
func (n *Node) SetState(s ScanState, reason error) error {
	ok := false
	switch {
	case n.State == StatePending && s == StateInProgress:
		ok = true
	case n.State == StateInProgress && s == StateDone:
		ok = true
	case (n.State == StatePending || n.State == StateInProgress) && s == StateErrored:
		ok = true
	}
	if !ok {
		return errors.WithDetails(ErrIllegalTransition, "path", n.Path(), "from", n.State.String(), "to", s.String())
	}
	n.State = s
	if s == StateErrored {
		n.Err = reason
	}
	return nil
}

// Attach links c under n and adds its contribution to n and the ancestors.
// A non-terminal directory child is counted as outstanding work.
func (n *Node) Attach(c *Node) {
	if c.parent != n {
		panic("model: attaching node to a parent it was not created for")
	}
	if n.children == nil {
		n.children = make(map[string]*Node)
	}
	if old, ok := n.children[c.Name]; ok {
		n.Detach(old.Name)
	}
	n.children[c.Name] = c
	if !c.State.Terminal() {
		n.pending++
	}
	n.Propagate(c.Contribution())
}

// Detach unlinks the named child, subtracts its contribution and marks it
// discarded. It returns the nodes that became Done because the child was the
// last outstanding piece of work.
func (n *Node) Detach(name string) (*Node, []*Node) {
	c, ok := n.children[name]
	if !ok {
		return nil, nil
	}
	delete(n.children, name)
	c.discarded.Store(true)
	n.Propagate(c.Contribution().Neg())
	if c.State.Terminal() {
		return c, nil
	}
	n.pending--
	return c, n.settle()
}

// Claim marks a directory as being listed by a worker.
func (n *Node) Claim() error {
	return n.SetState(StateInProgress, nil)
}

// FinishListing records that the node's own listing has been applied.
// It returns every node that reached Done as a result, bottom-up.
func (n *Node) FinishListing() []*Node {
	n.listed = true
	return n.settle()
}

// Fail marks a directory whose listing failed and resolves the parent. Like
// FinishListing it returns the nodes that settled; a failed root is returned
// itself since it has no parent to settle.
func (n *Node) Fail(reason error) ([]*Node, error) {
	if err := n.SetState(StateErrored, reason); err != nil {
		return nil, err
	}
	n.Propagate(Delta{Errors: 1})
	if n.parent == nil {
		return []*Node{n}, nil
	}
	n.parent.pending--
	return n.parent.settle(), nil
}

// settle marks n Done when its listing is in and nothing under it is
// outstanding, then repeats for the parent.
func (n *Node) settle() []*Node {
	var done []*Node
	for p := n; p != nil; p = p.parent {
		if p.State != StateInProgress || !p.listed || p.pending > 0 {
			break
		}
		p.State = StateDone
		done = append(done, p)
		if p.parent != nil {
			p.parent.pending--
		}
	}
	return done
}

// Reset discards the node's children and returns it to Pending under a new
// generation. Ancestors that were Done are reopened so no ancestor is Done
// while a descendant is not terminal. The discarded children are returned.
func (n *Node) Reset(gen uint64) []*Node {
	wasTerminal := n.State.Terminal()
	old := make([]*Node, 0, len(n.children))
	for _, c := range n.children {
		c.discarded.Store(true)
		old = append(old, c)
	}
	n.children = nil
	n.Propagate(Delta{Apparent: -n.Apparent, Allocated: -n.Allocated, Items: -n.Items, Errors: -n.Errors})
	n.State = StatePending
	n.Err = nil
	n.listed = false
	n.pending = 0
	n.gen.Store(gen)

	if wasTerminal {
		for p := n.parent; p != nil; p = p.parent {
			p.pending++
			if p.State != StateDone {
				break
			}
			// Done -> Pending -> InProgress, settled again by the cascade.
			p.State = StateInProgress
		}
	}
	return old
}

// Walk visits n and its descendants depth-first. Returning false from fn
// skips the children of that node.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.Walk(fn)
	}
}

func saturatingAddInt64(a, b int64) int64 {
	if b > 0 && a > maxInt64-b {
		return maxInt64
	}
	if b < 0 && a < minInt64-b {
		return minInt64
	}
	return a + b
}

// Tree owns the node graph. The aggregator is the only writer; readers take
// the read lock for the duration of one snapshot.
type Tree struct {
	mu   sync.RWMutex
	root *Node
}

// NewTree wraps root.
func NewTree(root *Node) *Tree {
	return &Tree{root: root}
}

// Root returns the scan root. Its identity never changes.
func (t *Tree) Root() *Node { return t.root }

// View runs fn with the read lock held.
func (t *Tree) View(fn func(root *Node)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn(t.root)
}

// Update runs fn with the write lock held, as one atomic mutation step.
func (t *Tree) Update(fn func(root *Node)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t.root)
}

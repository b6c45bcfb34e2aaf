// Package nav holds the browsing state of the interactive view: which
// directory is shown, how it is sorted, and which entry is selected. It reads
// the tree only through model.Tree.View and never mutates it.
package nav

import (
	"strings"

	"github.com/sadopc/duscope/internal/model"
	"github.com/sadopc/duscope/internal/scanner"
)

// Engine is the part of the scan engine the navigator drives.
type Engine interface {
	Tree() *model.Tree
	// Rescan reports false when the directory is not one the scan enters.
	Rescan(n *model.Node) bool
	PathOf(n *model.Node) string
	Progress() scanner.Progress
}

// DeleteIntent describes an entry the user asked to delete. Nothing has
// been removed yet; the caller confirms and hands Path to a deleter.
type DeleteIntent struct {
	Path  string
	Name  string
	Node  *model.Node
	Size  int64
	IsDir bool
	Items int64
}

// Navigator is not safe for concurrent use; it belongs to the UI goroutine.
type Navigator struct {
	engine Engine
	tree   *model.Tree

	cur    *model.Node
	cursor int
	offset int
	height int
	// selName keeps the cursor on the same entry while sizes reorder rows.
	selName string

	sort        model.SortConfig
	useApparent bool
	showHidden  bool
}

// Options sets the initial view state.
type Options struct {
	Sort        model.SortConfig
	UseApparent bool
	ShowHidden  bool
}

// New creates a navigator positioned at the scan root.
func New(e Engine, opts Options) *Navigator {
	n := &Navigator{
		engine:      e,
		tree:        e.Tree(),
		cur:         e.Tree().Root(),
		height:      1,
		sort:        opts.Sort,
		useApparent: opts.UseApparent,
		showHidden:  opts.ShowHidden,
	}
	if n.useApparent && n.sort.Field == model.SortByAllocated {
		n.sort.Field = model.SortByApparent
	}
	return n
}

// Current returns the directory being shown.
func (n *Navigator) Current() *model.Node {
	n.ensureLive()
	return n.cur
}

func (n *Navigator) Sort() model.SortConfig { return n.sort }
func (n *Navigator) UseApparent() bool      { return n.useApparent }
func (n *Navigator) ShowHidden() bool       { return n.showHidden }

// SetHeight sets how many rows the list viewport shows.
func (n *Navigator) SetHeight(rows int) {
	if rows < 1 {
		rows = 1
	}
	n.height = rows
}

// Height returns the viewport height used for paging.
func (n *Navigator) Height() int { return n.height }

// Enter descends into the named child. It is a no-op unless the child
// exists and is a directory.
func (n *Navigator) Enter(name string) bool {
	n.ensureLive()
	var target *model.Node
	n.tree.View(func(*model.Node) {
		if c := n.cur.Child(name); c != nil && c.IsDir() {
			target = c
		}
	})
	if target == nil {
		return false
	}
	n.cur = target
	n.cursor, n.offset, n.selName = 0, 0, ""
	return true
}

// EnterSelected descends into the selected entry.
func (n *Navigator) EnterSelected() bool {
	items := n.items()
	if len(items) == 0 {
		return false
	}
	return n.Enter(items[n.cursor].Name)
}

// Up moves to the parent and puts the cursor back on the directory just
// left. It is a no-op at the scan root.
func (n *Navigator) Up() bool {
	n.ensureLive()
	parent := n.cur.Parent()
	if parent == nil {
		return false
	}
	left := n.cur.Name
	n.cur = parent
	n.selName = left
	n.offset = 0
	n.items()
	return true
}

// AtRoot reports whether the current directory is the scan root.
func (n *Navigator) AtRoot() bool {
	n.ensureLive()
	return n.cur.Parent() == nil
}

// SetSort replaces the sort key and order.
func (n *Navigator) SetSort(field model.SortField, order model.SortOrder) {
	n.sort.Field = field
	n.sort.Order = order
}

// SortBy switches to field, or flips the order when field is already active.
// Names start ascending, everything else largest first.
func (n *Navigator) SortBy(field model.SortField) {
	if n.sort.Field == field {
		n.ToggleOrder()
		return
	}
	order := model.SortDesc
	if field == model.SortByName {
		order = model.SortAsc
	}
	n.SetSort(field, order)
}

// SortBySize sorts by whichever size metric is displayed.
func (n *Navigator) SortBySize() {
	n.SortBy(n.sizeField())
}

// ToggleOrder reverses the sort direction.
func (n *Navigator) ToggleOrder() {
	if n.sort.Order == model.SortDesc {
		n.sort.Order = model.SortAsc
	} else {
		n.sort.Order = model.SortDesc
	}
}

// ToggleDirsFirst groups directories before files.
func (n *Navigator) ToggleDirsFirst() {
	n.sort.DirsFirst = !n.sort.DirsFirst
}

// ToggleApparent switches the displayed metric between allocated and
// apparent size. A size sort follows the metric.
func (n *Navigator) ToggleApparent() {
	wasSize := n.sort.Field == n.sizeField()
	n.useApparent = !n.useApparent
	if wasSize {
		n.sort.Field = n.sizeField()
	}
}

// ToggleHidden shows or hides dot entries.
func (n *Navigator) ToggleHidden() {
	n.showHidden = !n.showHidden
}

// SelectDelta moves the cursor by delta rows, clamped to the list.
func (n *Navigator) SelectDelta(delta int) {
	items := n.items()
	n.moveTo(items, n.cursor+delta)
}

// PageDown and PageUp move by one viewport.
func (n *Navigator) PageDown() { n.SelectDelta(n.height) }
func (n *Navigator) PageUp()   { n.SelectDelta(-n.height) }

// Top selects the first entry.
func (n *Navigator) Top() {
	n.moveTo(n.items(), 0)
}

// Bottom selects the last entry.
func (n *Navigator) Bottom() {
	items := n.items()
	n.moveTo(items, len(items)-1)
}

// Select puts the cursor on the entry at row i of the sorted list.
func (n *Navigator) Select(i int) {
	n.moveTo(n.items(), i)
}

// Scroll moves the viewport by delta rows without leaving the cursor
// outside it.
func (n *Navigator) Scroll(delta int) {
	items := n.items()
	n.offset += delta
	n.clampOffset(len(items))
	switch {
	case n.cursor < n.offset:
		n.moveTo(items, n.offset)
	case n.cursor >= n.offset+n.height:
		n.moveTo(items, n.offset+n.height-1)
	}
}

// RequestDelete describes the selected entry for a confirmation prompt.
// The tree is not touched.
func (n *Navigator) RequestDelete() (DeleteIntent, bool) {
	items := n.items()
	if len(items) == 0 {
		return DeleteIntent{}, false
	}
	name := items[n.cursor].Name
	var intent DeleteIntent
	n.tree.View(func(*model.Node) {
		c := n.cur.Child(name)
		if c == nil {
			return
		}
		intent = DeleteIntent{
			Name:  c.Name,
			Node:  c,
			Size:  n.size(c),
			IsDir: c.IsDir(),
			Items: c.Items,
		}
	})
	if intent.Node == nil {
		return DeleteIntent{}, false
	}
	intent.Path = n.engine.PathOf(intent.Node)
	return intent, true
}

// Rescan discards and rescans the current directory. It reports false when
// the engine refused, as for a mount point that is not crossed.
func (n *Navigator) Rescan() bool {
	n.ensureLive()
	return n.engine.Rescan(n.cur)
}

// RescanRoot discards and rescans everything.
func (n *Navigator) RescanRoot() bool {
	return n.engine.Rescan(n.tree.Root())
}

// ensureLive moves to the nearest ancestor still in the tree when the
// current directory was discarded by a rescan or a deletion.
func (n *Navigator) ensureLive() {
	if n.cur.Live() {
		return
	}
	left := ""
	for !n.cur.Live() {
		left = n.cur.Name
		n.cur = n.cur.Parent()
	}
	n.selName = left
	n.cursor, n.offset = 0, 0
}

// items returns the sorted, filtered rows of the current directory and
// re-anchors the cursor on the selected name.
func (n *Navigator) items() []Item {
	n.ensureLive()
	var items []Item
	n.tree.View(func(*model.Node) {
		items = n.rows(n.sorted(), n.size(n.cur))
	})
	n.anchor(items)
	return items
}

// sorted returns the visible children in display order. Caller holds the
// read lock.
func (n *Navigator) sorted() []*model.Node {
	children := n.cur.Children()
	if !n.showHidden {
		kept := children[:0]
		for _, c := range children {
			if !strings.HasPrefix(c.Name, ".") {
				kept = append(kept, c)
			}
		}
		children = kept
	}
	model.SortNodes(children, n.sort)
	return children
}

// anchor keeps the cursor on selName when it is still listed.
func (n *Navigator) anchor(items []Item) {
	if n.selName != "" {
		for i, it := range items {
			if it.Name == n.selName {
				n.cursor = i
				break
			}
		}
	}
	n.moveTo(items, n.cursor)
}

func (n *Navigator) moveTo(items []Item, i int) {
	n.cursor = i
	n.cursor = n.clampCursor(len(items))
	if len(items) > 0 {
		n.selName = items[n.cursor].Name
	} else {
		n.selName = ""
	}
	if n.cursor < n.offset {
		n.offset = n.cursor
	}
	if n.cursor >= n.offset+n.height {
		n.offset = n.cursor - n.height + 1
	}
	n.clampOffset(len(items))
}

func (n *Navigator) clampCursor(count int) int {
	c := n.cursor
	if c >= count {
		c = count - 1
	}
	if c < 0 {
		c = 0
	}
	return c
}

func (n *Navigator) clampOffset(count int) {
	if last := count - n.height; n.offset > last {
		n.offset = last
	}
	if n.offset < 0 {
		n.offset = 0
	}
}

func (n *Navigator) sizeField() model.SortField {
	if n.useApparent {
		return model.SortByApparent
	}
	return model.SortByAllocated
}

func (n *Navigator) size(c *model.Node) int64 {
	if n.useApparent {
		return c.Apparent
	}
	return c.Allocated
}

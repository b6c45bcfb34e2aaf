package nav

import (
	"time"

	"github.com/sadopc/duscope/internal/model"
	"github.com/sadopc/duscope/internal/probe"
	"github.com/sadopc/duscope/internal/scanner"
)

// Item is a copy of one row, safe to use after the read lock is released.
type Item struct {
	Name      string
	Kind      model.Kind
	Size      int64
	Apparent  int64
	Allocated int64
	// Percent is Size relative to the current directory, capped at 100.
	Percent float64
	State   model.ScanState
	Reason  string
	Items   int64
	Errors  int64
	Flags   model.NodeFlag
	Nlink   uint64
	Mtime   time.Time
}

func (it Item) IsDir() bool       { return it.Kind == model.KindDir }
func (it Item) Hardlink() bool    { return it.Flags&model.FlagHardlink != 0 }
func (it Item) OtherDevice() bool { return it.Flags&model.FlagOtherDevice != 0 }
func (it Item) Estimated() bool   { return it.Flags&model.FlagUsageEstimated != 0 }

// Summary describes a directory's totals.
type Summary struct {
	Name      string
	Path      string
	Size      int64
	Apparent  int64
	Allocated int64
	Items     int64
	Errors    int64
	State     model.ScanState
	Reason    string
}

// Snapshot is everything one frame needs, copied under a single read lock.
type Snapshot struct {
	Breadcrumb []string
	Dir        Summary
	Root       Summary
	Items      []Item
	Cursor     int
	Offset     int
	Height     int
	Selected   Item
	HasSelect  bool
	Sort       model.SortConfig

	UseApparent bool
	ShowHidden  bool
	AtRoot      bool

	Progress scanner.Progress
}

// Visible returns the rows inside the viewport.
func (s Snapshot) Visible() []Item {
	end := s.Offset + s.Height
	if end > len(s.Items) {
		end = len(s.Items)
	}
	if s.Offset >= end {
		return nil
	}
	return s.Items[s.Offset:end]
}

// Snapshot copies the current view. Progress is read without the tree lock.
func (n *Navigator) Snapshot() Snapshot {
	n.ensureLive()
	s := Snapshot{
		Sort:        n.sort,
		UseApparent: n.useApparent,
		ShowHidden:  n.showHidden,
		Height:      n.height,
	}
	n.tree.View(func(root *model.Node) {
		s.Items = n.rows(n.sorted(), n.size(n.cur))
		s.Dir = n.summary(n.cur)
		s.Root = n.summary(root)
		for p := n.cur; p != nil; p = p.Parent() {
			s.Breadcrumb = append([]string{p.Name}, s.Breadcrumb...)
		}
	})
	s.Dir.Path = n.engine.PathOf(n.cur)
	s.Root.Path = n.engine.PathOf(n.tree.Root())
	s.AtRoot = n.cur.Parent() == nil

	n.anchor(s.Items)
	s.Cursor, s.Offset = n.cursor, n.offset
	if len(s.Items) > 0 {
		s.Selected = s.Items[s.Cursor]
		s.HasSelect = true
	}
	s.Progress = n.engine.Progress()
	return s
}

// rows copies nodes into display rows. Caller holds the read lock.
func (n *Navigator) rows(nodes []*model.Node, total int64) []Item {
	items := make([]Item, len(nodes))
	for i, c := range nodes {
		size := n.size(c)
		items[i] = Item{
			Name:      c.Name,
			Kind:      c.Kind,
			Size:      size,
			Apparent:  c.Apparent,
			Allocated: c.Allocated,
			Percent:   percent(size, total),
			State:     c.State,
			Reason:    reason(c),
			Items:     c.Items,
			Errors:    c.Errors,
			Flags:     c.Flags,
			Nlink:     c.Nlink,
			Mtime:     c.Mtime,
		}
	}
	return items
}

func (n *Navigator) summary(d *model.Node) Summary {
	return Summary{
		Name:      d.Name,
		Size:      n.size(d),
		Apparent:  d.Apparent,
		Allocated: d.Allocated,
		Items:     d.Items,
		Errors:    d.Errors,
		State:     d.State,
		Reason:    reason(d),
	}
}

func reason(n *model.Node) string {
	if n.Err == nil {
		return ""
	}
	return probe.Reason(n.Err)
}

func percent(part, total int64) float64 {
	if total <= 0 || part <= 0 {
		return 0
	}
	p := float64(part) / float64(total) * 100
	if p > 100 {
		p = 100
	}
	return p
}

package nav

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sadopc/duscope/internal/model"
	"github.com/sadopc/duscope/internal/probe"
	"github.com/sadopc/duscope/internal/scanner"
)

// fakeEngine serves a hand-built tree. Rescan resets the node the way the
// aggregator would, without scanning anything.
type fakeEngine struct {
	tree     *model.Tree
	rescans  []*model.Node
	progress scanner.Progress
	gen      uint64
}

func (f *fakeEngine) Tree() *model.Tree { return f.tree }

func (f *fakeEngine) Rescan(n *model.Node) bool {
	f.rescans = append(f.rescans, n)
	f.gen++
	f.tree.Update(func(*model.Node) { n.Reset(f.gen) })
	return true
}

func (f *fakeEngine) PathOf(n *model.Node) string { return n.Path() }

func (f *fakeEngine) Progress() scanner.Progress { return f.progress }

// dirs is a directory layout: files map to sizes, nested maps are directories.
type dirs map[string]any

func file(parent *model.Node, name string, size int64) {
	c := model.NewNode(parent, name, model.KindFile)
	c.OwnApparent, c.OwnAllocated = size, size
	c.Apparent, c.Allocated = size, size
	parent.Attach(c)
}

func fill(n *model.Node, layout dirs) {
	for name, v := range layout {
		switch v := v.(type) {
		case int:
			file(n, name, int64(v))
		case dirs:
			d := model.NewNode(n, name, model.KindDir)
			n.Attach(d)
			if err := d.Claim(); err != nil {
				panic(err)
			}
			fill(d, v)
			d.FinishListing()
		}
	}
}

func newFake(layout dirs) *fakeEngine {
	root := model.NewNode(nil, "/r", model.KindDir)
	root.SetGen(1)
	tree := model.NewTree(root)
	tree.Update(func(root *model.Node) {
		if err := root.Claim(); err != nil {
			panic(err)
		}
		fill(root, layout)
		root.FinishListing()
	})
	return &fakeEngine{tree: tree, gen: 1}
}

func names(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNavigator_SortsByAllocatedDescending(t *testing.T) {
	e := newFake(dirs{"a": 500, "b": 2000, "c": 100})
	n := New(e, Options{Sort: model.DefaultSort(), ShowHidden: true})

	s := n.Snapshot()
	if got, want := names(s.Items), []string{"b", "a", "c"}; !equal(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	if s.Dir.Size != 2600 {
		t.Errorf("Dir.Size = %d", s.Dir.Size)
	}
	if p := s.Items[0].Percent; p < 76.9 || p > 77 {
		t.Errorf("percent of b = %.2f", p)
	}
	if !s.AtRoot || len(s.Breadcrumb) != 1 || s.Breadcrumb[0] != "/r" {
		t.Errorf("breadcrumb = %v, atRoot %v", s.Breadcrumb, s.AtRoot)
	}

	n.ToggleOrder()
	if got, want := names(n.Snapshot().Items), []string{"c", "a", "b"}; !equal(got, want) {
		t.Errorf("ascending order = %v, want %v", got, want)
	}
}

func TestNavigator_TiesBreakByName(t *testing.T) {
	e := newFake(dirs{"zeta": 10, "alpha": 10, "mid": 10})
	n := New(e, Options{Sort: model.DefaultSort(), ShowHidden: true})
	if got, want := names(n.Snapshot().Items), []string{"alpha", "mid", "zeta"}; !equal(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	n.ToggleOrder()
	if got, want := names(n.Snapshot().Items), []string{"alpha", "mid", "zeta"}; !equal(got, want) {
		t.Fatalf("ascending order = %v, want %v", got, want)
	}
}

func TestNavigator_EnterAndUp(t *testing.T) {
	e := newFake(dirs{
		"big":   dirs{"x": 5000},
		"small": dirs{"y": 10},
		"file":  700,
	})
	n := New(e, Options{Sort: model.DefaultSort(), ShowHidden: true})

	if n.Enter("file") {
		t.Error("Enter on a file should be a no-op")
	}
	if n.Enter("missing") {
		t.Error("Enter on a missing name should be a no-op")
	}
	if !n.AtRoot() {
		t.Fatal("navigator moved")
	}
	if n.Up() {
		t.Error("Up at the root should be a no-op")
	}

	if !n.Enter("small") {
		t.Fatal("Enter(small) failed")
	}
	s := n.Snapshot()
	if s.Dir.Name != "small" || s.Dir.Path != filepath.Join("/r", "small") {
		t.Errorf("Dir = %+v", s.Dir)
	}
	if got, want := s.Breadcrumb, []string{"/r", "small"}; !equal(got, want) {
		t.Errorf("breadcrumb = %v", got)
	}

	if !n.Up() {
		t.Fatal("Up failed")
	}
	s = n.Snapshot()
	if !s.HasSelect || s.Selected.Name != "small" {
		t.Errorf("cursor should return to the directory just left, got %q", s.Selected.Name)
	}
}

func TestNavigator_SelectDeltaClamps(t *testing.T) {
	e := newFake(dirs{"a": 3, "b": 2, "c": 1})
	n := New(e, Options{Sort: model.DefaultSort(), ShowHidden: true})

	n.SelectDelta(-1)
	if s := n.Snapshot(); s.Cursor != 0 {
		t.Errorf("cursor = %d after moving above the top", s.Cursor)
	}
	n.SelectDelta(10)
	if s := n.Snapshot(); s.Cursor != 2 || s.Selected.Name != "c" {
		t.Errorf("cursor = %d (%s) after moving past the end", s.Cursor, s.Selected.Name)
	}
	n.Top()
	if s := n.Snapshot(); s.Selected.Name != "a" {
		t.Errorf("Top selected %q", s.Selected.Name)
	}
	n.Bottom()
	if s := n.Snapshot(); s.Selected.Name != "c" {
		t.Errorf("Bottom selected %q", s.Selected.Name)
	}
}

func TestNavigator_EmptyDirectory(t *testing.T) {
	e := newFake(dirs{"empty": dirs{}})
	n := New(e, Options{Sort: model.DefaultSort(), ShowHidden: true})
	n.Enter("empty")
	n.SelectDelta(1)
	s := n.Snapshot()
	if s.HasSelect || len(s.Items) != 0 || s.Cursor != 0 {
		t.Errorf("empty snapshot = %+v", s)
	}
	if _, ok := n.RequestDelete(); ok {
		t.Error("RequestDelete in an empty directory should report nothing")
	}
}

func TestNavigator_SelectionFollowsEntryWhenOrderChanges(t *testing.T) {
	e := newFake(dirs{"a": 300, "b": 200, "c": 100})
	n := New(e, Options{Sort: model.DefaultSort(), ShowHidden: true})
	n.SelectDelta(2)
	if n.Snapshot().Selected.Name != "c" {
		t.Fatal("setup: c not selected")
	}

	e.tree.Update(func(root *model.Node) {
		c := root.Child("c")
		c.Allocated = 900
		root.Propagate(model.Delta{Allocated: 800})
	})
	s := n.Snapshot()
	if s.Selected.Name != "c" || s.Cursor != 0 {
		t.Errorf("selected %q at %d, want c at 0", s.Selected.Name, s.Cursor)
	}
}

func TestNavigator_RequestDeleteDoesNotMutate(t *testing.T) {
	e := newFake(dirs{"junk": dirs{"x": 4000, "y": 1000}, "keep": 10})
	n := New(e, Options{Sort: model.DefaultSort(), ShowHidden: true})

	before := n.Snapshot()
	intent, ok := n.RequestDelete()
	if !ok {
		t.Fatal("no intent")
	}
	if intent.Name != "junk" || !intent.IsDir || intent.Size != 5000 || intent.Items != 2 {
		t.Errorf("intent = %+v", intent)
	}
	if intent.Path != filepath.Join("/r", "junk") {
		t.Errorf("intent.Path = %q", intent.Path)
	}
	after := n.Snapshot()
	if after.Dir.Size != before.Dir.Size || len(after.Items) != len(before.Items) {
		t.Error("RequestDelete changed the tree")
	}
}

func TestNavigator_ApparentToggleMovesSizeSort(t *testing.T) {
	e := newFake(dirs{"a": 10})
	n := New(e, Options{Sort: model.DefaultSort(), ShowHidden: true})

	n.ToggleApparent()
	if n.Sort().Field != model.SortByApparent || !n.UseApparent() {
		t.Errorf("sort = %v, apparent %v", n.Sort().Field, n.UseApparent())
	}
	n.SortBy(model.SortByName)
	n.ToggleApparent()
	if n.Sort().Field != model.SortByName {
		t.Errorf("name sort should survive the metric toggle, got %v", n.Sort().Field)
	}

	n.SortBySize()
	if n.Sort().Field != model.SortByAllocated || n.Sort().Order != model.SortDesc {
		t.Errorf("SortBySize = %+v", n.Sort())
	}
	n.SortBySize()
	if n.Sort().Order != model.SortAsc {
		t.Error("repeating a sort key should reverse the order")
	}
}

func TestNavigator_HiddenFilter(t *testing.T) {
	e := newFake(dirs{".cache": 900, "visible": 100})
	n := New(e, Options{Sort: model.DefaultSort(), ShowHidden: true})
	if len(n.Snapshot().Items) != 2 {
		t.Fatal("hidden entry missing")
	}
	n.ToggleHidden()
	s := n.Snapshot()
	if got := names(s.Items); !equal(got, []string{"visible"}) {
		t.Errorf("items = %v", got)
	}
	if s.Dir.Size != 1000 {
		t.Errorf("hiding entries must not change totals, got %d", s.Dir.Size)
	}
}

func TestNavigator_FallsBackAfterRescanDiscardsCurrent(t *testing.T) {
	e := newFake(dirs{"a": dirs{"b": dirs{"f": 10}}})
	n := New(e, Options{Sort: model.DefaultSort(), ShowHidden: true})
	n.Enter("a")
	n.Enter("b")

	e.Rescan(e.tree.Root().Child("a"))
	s := n.Snapshot()
	if s.Dir.Name != "a" {
		t.Fatalf("current = %q, want nearest live ancestor a", s.Dir.Name)
	}
	if s.Dir.State != model.StatePending {
		t.Errorf("a state = %v", s.Dir.State)
	}

	n.RescanRoot()
	if s := n.Snapshot(); !s.AtRoot {
		t.Errorf("current = %q after root rescan", s.Dir.Name)
	}
	if len(e.rescans) != 2 || e.rescans[1] != e.tree.Root() {
		t.Errorf("rescans = %v", e.rescans)
	}
}

func TestNavigator_RescanCurrent(t *testing.T) {
	e := newFake(dirs{"a": dirs{"f": 10}})
	n := New(e, Options{Sort: model.DefaultSort(), ShowHidden: true})
	n.Enter("a")
	n.Rescan()
	if len(e.rescans) != 1 || e.rescans[0].Name != "a" {
		t.Fatalf("rescans = %v", e.rescans)
	}
	if s := n.Snapshot(); s.Dir.Name != "a" || len(s.Items) != 0 {
		t.Errorf("snapshot after rescan = %+v", s)
	}
}

func TestNavigator_ViewportPaging(t *testing.T) {
	layout := dirs{}
	for i := 0; i < 30; i++ {
		layout[string(rune('a'+i%26))+string(rune('a'+i/26))] = 1000 - i
	}
	e := newFake(layout)
	n := New(e, Options{Sort: model.DefaultSort(), ShowHidden: true})
	n.SetHeight(10)

	n.PageDown()
	s := n.Snapshot()
	if s.Cursor != 10 || s.Offset != 1 {
		t.Errorf("after PageDown cursor=%d offset=%d", s.Cursor, s.Offset)
	}
	if len(s.Visible()) != 10 {
		t.Errorf("visible rows = %d", len(s.Visible()))
	}
	n.Bottom()
	s = n.Snapshot()
	if s.Cursor != 29 || s.Offset != 20 {
		t.Errorf("after Bottom cursor=%d offset=%d", s.Cursor, s.Offset)
	}
	n.Scroll(-15)
	s = n.Snapshot()
	if s.Offset != 5 || s.Cursor != 14 {
		t.Errorf("after Scroll cursor=%d offset=%d", s.Cursor, s.Offset)
	}
}

func TestNavigator_RowsCarryStateAndReason(t *testing.T) {
	e := newFake(dirs{"ok": 10})
	e.tree.Update(func(root *model.Node) {
		bad := model.NewNode(root, "locked", model.KindDir)
		bad.State = model.StateErrored
		bad.Err = &probe.Error{Op: "open", Path: "/r/locked", Err: fs.ErrPermission}
		bad.Errors = 1
		root.Attach(bad)
	})
	n := New(e, Options{Sort: model.SortConfig{Field: model.SortByName, Order: model.SortAsc}, ShowHidden: true})
	s := n.Snapshot()
	if s.Items[0].Name != "locked" || s.Items[0].State != model.StateErrored {
		t.Fatalf("items = %+v", s.Items)
	}
	if s.Items[0].Reason != "permission denied" {
		t.Errorf("reason = %q", s.Items[0].Reason)
	}
	if s.Dir.Errors != 1 {
		t.Errorf("Dir.Errors = %d", s.Dir.Errors)
	}
}

// TestNavigator_SnapshotsDuringLiveScan reads snapshots while a real engine
// is still writing.
func TestNavigator_SnapshotsDuringLiveScan(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 20; i++ {
		dir := filepath.Join(root, "d"+string(rune('a'+i)))
		if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "sub", "f"), make([]byte, 8192), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	e, err := scanner.Open(context.Background(), probe.NewLocal(), root, scanner.Options{ShowHidden: true, Workers: 4}, log)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = e.Close() })
	n := New(e, Options{Sort: model.DefaultSort(), ShowHidden: true})
	e.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var last int64
	for !n.Snapshot().Progress.Done {
		s := n.Snapshot()
		if s.Dir.State == model.StateInProgress && s.Dir.Allocated < last {
			t.Fatalf("root total went down: %d -> %d", last, s.Dir.Allocated)
		}
		last = s.Dir.Allocated
		n.SelectDelta(1)
		select {
		case <-ctx.Done():
			t.Fatal("scan did not finish")
		case <-time.After(time.Millisecond):
		}
	}

	s := n.Snapshot()
	if len(s.Items) != 20 || s.Dir.State != model.StateDone {
		t.Fatalf("final snapshot: %d items, state %v", len(s.Items), s.Dir.State)
	}
	for _, it := range s.Items {
		if it.State != model.StateDone || it.Items != 2 {
			t.Errorf("%s: state %v items %d", it.Name, it.State, it.Items)
		}
	}
}

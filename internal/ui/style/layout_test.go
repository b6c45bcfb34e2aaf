package style

import (
	"testing"

	"github.com/sadopc/duscope/internal/model"
)

func TestContentHeight(t *testing.T) {
	tests := []struct {
		w, h int
		want int
	}{
		{80, 24, 19},
		{10, 6, 1},
		{10, 5, 1},
		{10, 0, 1},
		{80, 50, 45},
	}

	for _, tt := range tests {
		l := NewLayout(tt.w, tt.h)
		got := l.ContentHeight()
		if got != tt.want {
			t.Errorf("NewLayout(%d,%d).ContentHeight() = %d, want %d", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestBarWidth(t *testing.T) {
	tests := []struct {
		width int
		want  int
	}{
		{10, 5},
		{32, 7},
		{80, 40},
		{200, 40},
	}

	for _, tt := range tests {
		l := NewLayout(tt.width, 24)
		got := l.BarWidth()
		if got != tt.want {
			t.Errorf("NewLayout(%d,24).BarWidth() = %d, want %d", tt.width, got, tt.want)
		}
	}
}

func TestNameWidth(t *testing.T) {
	for _, w := range []int{10, 30, 80, 200} {
		l := NewLayout(w, 24)
		if got := l.NameWidth(); got < 8 {
			t.Errorf("NewLayout(%d,24).NameWidth() = %d, want >= 8", w, got)
		}
	}

	l := NewLayout(80, 24)
	total := l.NameWidth() + l.BarWidth() + l.rowOverhead()
	if total != l.ContentWidth() {
		t.Errorf("NameWidth(%d) + BarWidth(%d) + overhead(%d) = %d, want ContentWidth %d",
			l.NameWidth(), l.BarWidth(), l.rowOverhead(), total, l.ContentWidth())
	}
}

func TestContentRow(t *testing.T) {
	l := NewLayout(80, 24)
	cases := map[int]int{0: -1, HeaderLines - 1: -1, HeaderLines: 0, HeaderLines + 5: 5, 23: -1}
	for y, want := range cases {
		if got := l.ContentRow(y); got != want {
			t.Errorf("ContentRow(%d) = %d, want %d", y, got, want)
		}
	}
}

func TestFullWidth(t *testing.T) {
	if got := FullWidth("hi", 5); got != "hi   " {
		t.Errorf("FullWidth(\"hi\", 5) = %q", got)
	}
	if got := FullWidth("hello", 5); got != "hello" {
		t.Errorf("FullWidth(\"hello\", 5) = %q", got)
	}
}

func TestStateGlyph(t *testing.T) {
	th := DefaultTheme()
	if g := th.StateGlyph(model.StateDone, 0); g != " " {
		t.Errorf("done glyph = %q", g)
	}
	for _, s := range []model.ScanState{model.StatePending, model.StateInProgress, model.StateErrored} {
		if th.StateGlyph(s, 0) == " " {
			t.Errorf("state %v should have a visible glyph", s)
		}
	}
	if th.StateGlyph(model.StateDone, model.FlagOtherDevice) == " " {
		t.Error("other-device directories should be marked")
	}
}

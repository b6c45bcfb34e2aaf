// Package ui is the bubbletea front end. It re-snapshots the navigator on
// a fixed tick, so the tree is browsable while the scan is still running.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/sadopc/duscope/internal/model"
	"github.com/sadopc/duscope/internal/nav"
	"github.com/sadopc/duscope/internal/ops"
	"github.com/sadopc/duscope/internal/probe"
	"github.com/sadopc/duscope/internal/ui/components"
	"github.com/sadopc/duscope/internal/ui/style"
	"github.com/sadopc/duscope/internal/util"
)

const (
	tickInterval      = 100 * time.Millisecond
	wheelStep         = 3
	defaultExportPath = "duscope-export.json"
)

// ViewMode selects what the content area draws.
type ViewMode int

const (
	ViewTree ViewMode = iota
	ViewTreemap
)

// AppState is the input mode.
type AppState int

const (
	StateBrowsing AppState = iota
	StateConfirmDelete
	StateDeleting
	StateHelp
)

// Engine is the part of the scan engine the UI drives.
type Engine interface {
	nav.Engine
	Remove(n *model.Node) error
}

// Config wires the App to a running scan.
type Config struct {
	Engine Engine
	// Deleter is nil when deletion is not available.
	Deleter ops.Deleter
	// Capacity is optional.
	Capacity   probe.CapacityProber
	Host       string
	Version    string
	ExportPath string
	Nav        nav.Options
	Log        logrus.FieldLogger
}

// DeleteDoneMsg reports the outcome of a confirmed deletion.
type DeleteDoneMsg struct {
	Intent nav.DeleteIntent
	Err    error
}

// ExportDoneMsg reports the outcome of an export.
type ExportDoneMsg struct {
	Path string
	Err  error
}

type capacityMsg struct {
	capacity probe.Capacity
	err      error
}

type tickMsg time.Time

// App is the root bubbletea model.
type App struct {
	cfg Config
	log logrus.FieldLogger
	nav *nav.Navigator

	snap     nav.Snapshot
	state    AppState
	viewMode ViewMode
	width    int
	height   int
	layout   style.Layout

	theme   style.Theme
	keys    KeyMap
	spinner spinner.Model
	help    help.Model
	capBar  progress.Model

	capacity *probe.Capacity
	spinning bool
	pending  nav.DeleteIntent

	statusMsg string
	statusErr bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the model for a scan that has already been started.
func NewApp(cfg Config) *App {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	theme := style.DefaultTheme()

	h := help.New()
	h.Styles.ShortKey = theme.HelpKey
	h.Styles.ShortDesc = theme.HelpDesc
	h.Styles.ShortSeparator = theme.HelpDesc

	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		cfg:     cfg,
		log:     log,
		nav:     nav.New(cfg.Engine, cfg.Nav),
		theme:   theme,
		keys:    DefaultKeyMap(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(theme.CursorIndicator)),
		help:    h,
		capBar: progress.New(
			progress.WithGradient(string(theme.GradientStart), string(theme.GradientEnd)),
			progress.WithoutPercentage(),
			progress.WithWidth(12),
		),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.tickCmd(), a.refresh(), a.capacityCmd())
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.resize(msg.Width, msg.Height)
		return a, a.refresh()

	case tickMsg:
		return a, tea.Batch(a.refresh(), a.tickCmd())

	case spinner.TickMsg:
		if !a.spinning {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case capacityMsg:
		if msg.err != nil {
			if !errors.Is(msg.err, probe.ErrUnsupported) {
				a.log.WithError(msg.err).Debug("filesystem capacity unavailable")
			}
			return a, nil
		}
		c := msg.capacity
		a.capacity = &c
		return a, nil

	case DeleteDoneMsg:
		return a, a.deleteDone(msg)

	case ExportDoneMsg:
		if msg.Err != nil {
			a.setStatus(fmt.Sprintf("Export failed: %v", msg.Err), true)
		} else {
			a.setStatus("Exported to "+msg.Path, false)
		}
		return a, nil

	case tea.MouseMsg:
		return a, a.handleMouse(msg)

	case tea.KeyMsg:
		return a.handleKey(msg)
	}
	return a, nil
}

func (a *App) resize(w, h int) {
	a.width, a.height = w, h
	a.layout = style.NewLayout(w, h)
	a.nav.SetHeight(a.layout.ContentHeight())
	a.help.Width = w
}

// refresh takes a new snapshot and starts or stops the spinner as the scan
// starts or finishes.
func (a *App) refresh() tea.Cmd {
	a.snap = a.nav.Snapshot()
	done := a.snap.Progress.Done
	switch {
	case !done && !a.spinning:
		a.spinning = true
		return a.spinner.Tick
	case done && a.spinning:
		a.spinning = false
		p := a.snap.Progress
		a.log.WithFields(logrus.Fields{
			"files":    p.FilesScanned,
			"dirs":     p.DirsScanned,
			"errors":   p.Errors,
			"duration": p.Duration,
		}).Info("scan finished")
		return a.capacityCmd()
	}
	return nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a, a.quit()
	}

	switch a.state {
	case StateHelp:
		if key.Matches(msg, a.keys.Help, a.keys.Quit) || msg.String() == "esc" {
			a.state = StateBrowsing
		}
		return a, nil

	case StateConfirmDelete:
		switch {
		case key.Matches(msg, a.keys.ConfirmYes):
			a.state = StateDeleting
			return a, a.deleteCmd(a.pending)
		case key.Matches(msg, a.keys.ConfirmNo):
			a.state = StateBrowsing
			a.pending = nav.DeleteIntent{}
		}
		return a, nil

	case StateDeleting:
		return a, nil
	}
	return a, a.handleBrowsingKey(msg)
}

func (a *App) handleBrowsingKey(msg tea.KeyMsg) tea.Cmd {
	a.statusMsg = ""
	n := a.nav

	switch {
	case key.Matches(msg, a.keys.Quit):
		if !n.Up() {
			return a.quit()
		}
	case key.Matches(msg, a.keys.ForceQuit):
		return a.quit()
	case key.Matches(msg, a.keys.Help):
		a.state = StateHelp
		return nil

	case key.Matches(msg, a.keys.Up):
		n.SelectDelta(-1)
	case key.Matches(msg, a.keys.Down):
		n.SelectDelta(1)
	case key.Matches(msg, a.keys.PageUp):
		n.PageUp()
	case key.Matches(msg, a.keys.PageDown):
		n.PageDown()
	case key.Matches(msg, a.keys.Top):
		n.Top()
	case key.Matches(msg, a.keys.Bottom):
		n.Bottom()
	case key.Matches(msg, a.keys.Enter):
		n.EnterSelected()
	case key.Matches(msg, a.keys.Back):
		n.Up()

	case key.Matches(msg, a.keys.SortSize):
		n.SortBySize()
	case key.Matches(msg, a.keys.SortName):
		n.SortBy(model.SortByName)
	case key.Matches(msg, a.keys.SortItems):
		n.SortBy(model.SortByItems)
	case key.Matches(msg, a.keys.SortMtime):
		n.SortBy(model.SortByMtime)
	case key.Matches(msg, a.keys.Reverse):
		n.ToggleOrder()
	case key.Matches(msg, a.keys.DirsFirst):
		n.ToggleDirsFirst()
	case key.Matches(msg, a.keys.Apparent):
		n.ToggleApparent()
	case key.Matches(msg, a.keys.Hidden):
		n.ToggleHidden()
	case key.Matches(msg, a.keys.Treemap):
		if a.viewMode == ViewTree {
			a.viewMode = ViewTreemap
		} else {
			a.viewMode = ViewTree
		}

	case key.Matches(msg, a.keys.Delete):
		a.requestDelete()
	case key.Matches(msg, a.keys.Export):
		return a.exportCmd()
	case key.Matches(msg, a.keys.Rescan):
		if !n.Rescan() {
			a.setStatus("This directory is not scanned (other filesystem or repeat of another directory)", true)
		}
	case key.Matches(msg, a.keys.RescanRoot):
		n.RescanRoot()
	}
	return a.refresh()
}

func (a *App) handleMouse(msg tea.MouseMsg) tea.Cmd {
	if a.state != StateBrowsing {
		return nil
	}
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		a.nav.Scroll(-wheelStep)
	case msg.Button == tea.MouseButtonWheelDown:
		a.nav.Scroll(wheelStep)
	case msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionPress && a.viewMode == ViewTree:
		row := a.layout.ContentRow(msg.Y)
		if row < 0 || a.snap.Offset+row >= len(a.snap.Items) {
			return nil
		}
		a.nav.Select(a.snap.Offset + row)
	default:
		return nil
	}
	return a.refresh()
}

func (a *App) requestDelete() {
	if a.cfg.Deleter == nil {
		a.setStatus("Delete is not available for this scan", true)
		return
	}
	intent, ok := a.nav.RequestDelete()
	if !ok {
		return
	}
	a.pending = intent
	a.state = StateConfirmDelete
}

func (a *App) deleteCmd(intent nav.DeleteIntent) tea.Cmd {
	d, ctx := a.cfg.Deleter, a.ctx
	return func() tea.Msg {
		return DeleteDoneMsg{Intent: intent, Err: d.Delete(ctx, intent.Path)}
	}
}

// deleteDone applies a finished deletion. The tree changes only when the
// deleter succeeded.
func (a *App) deleteDone(msg DeleteDoneMsg) tea.Cmd {
	a.state = StateBrowsing
	a.pending = nav.DeleteIntent{}
	if msg.Err != nil {
		a.setStatus(fmt.Sprintf("Delete failed: %v", msg.Err), true)
		return a.refresh()
	}
	if err := a.cfg.Engine.Remove(msg.Intent.Node); err != nil {
		// A rescan replaced the node; the new listing already lacks it.
		a.log.WithError(err).WithField("path", msg.Intent.Path).Debug("deleted node no longer in tree")
	}
	a.setStatus(fmt.Sprintf("Deleted %s (%s)", msg.Intent.Name, util.FormatSize(msg.Intent.Size)), false)
	return tea.Batch(a.refresh(), a.capacityCmd())
}

func (a *App) exportCmd() tea.Cmd {
	path := a.cfg.ExportPath
	if path == "" || path == "-" {
		path = defaultExportPath
	}
	tree, version := a.cfg.Engine.Tree(), a.cfg.Version
	return func() tea.Msg {
		return ExportDoneMsg{Path: path, Err: ops.ExportJSON(tree, path, version)}
	}
}

func (a *App) capacityCmd() tea.Cmd {
	if a.cfg.Capacity == nil {
		return nil
	}
	prober, ctx := a.cfg.Capacity, a.ctx
	root := a.cfg.Engine.PathOf(a.cfg.Engine.Tree().Root())
	return func() tea.Msg {
		c, err := prober.Capacity(ctx, root)
		return capacityMsg{capacity: c, err: err}
	}
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (a *App) quit() tea.Cmd {
	a.cancel()
	return tea.Quit
}

func (a *App) setStatus(msg string, isErr bool) {
	a.statusMsg, a.statusErr = msg, isErr
}

func (a *App) View() string {
	if a.width == 0 {
		return "Loading..."
	}
	switch a.state {
	case StateHelp:
		return components.RenderHelp(a.theme, "duscope", a.keys.sections(), a.width, a.height)
	case StateConfirmDelete:
		p := a.pending
		return components.RenderConfirmDialog(a.theme, components.ConfirmItem{
			Name:  p.Name,
			Path:  p.Path,
			Size:  p.Size,
			IsDir: p.IsDir,
			Items: p.Items,
			Host:  a.cfg.Host,
		}, a.width, a.height)
	}
	return a.renderBrowsing()
}

func (a *App) renderBrowsing() string {
	s := a.snap
	th := a.theme

	info := components.HeaderInfo{
		Title:       a.title(),
		Root:        s.Root,
		UseApparent: s.UseApparent,
		Capacity:    a.capacity,
	}
	if c := a.capacity; c != nil && c.Total > 0 {
		info.CapacityBar = a.capBar.ViewAs(float64(c.Used()) / float64(c.Total))
	}
	header := components.RenderHeader(th, info, a.width)
	breadcrumb := components.RenderBreadcrumb(th, s.Breadcrumb, a.width)

	var bar string
	if s.Progress.Done {
		bar = components.RenderTabBar(th, int(a.viewMode), s.Sort, util.FormatDuration(s.Progress.Duration), a.width)
	} else {
		bar = components.RenderScanProgress(th, a.spinner.View(), s.Progress, a.width)
	}

	var content string
	if a.viewMode == ViewTreemap {
		content = components.RenderTreemap(th, s.Items, a.layout.ContentWidth(), a.layout.ContentHeight())
	} else {
		tv := &components.TreeView{Theme: th, Layout: a.layout, Snap: s}
		content = tv.Render()
	}

	status := components.StatusInfo{
		Dir:         s.Dir,
		Count:       len(s.Items),
		Selected:    s.Selected,
		HasSelect:   s.HasSelect,
		UseApparent: s.UseApparent,
		ShowHidden:  s.ShowHidden,
		Errors:      s.Root.Errors,
		SharedBytes: s.Progress.SharedBytes,
		Message:     a.statusMsg,
		IsError:     a.statusErr,
		Hints:       a.help.ShortHelpView(a.keys.ShortHelp()),
	}
	if a.state == StateDeleting {
		status.Message, status.IsError = "Deleting "+a.pending.Path+"…", false
	}
	footer := components.RenderStatusBar(th, status, a.width)

	return strings.Join([]string{header, breadcrumb, bar, content, footer}, "\n")
}

func (a *App) title() string {
	if a.cfg.Host != "" {
		return "duscope " + a.cfg.Host
	}
	return "duscope"
}

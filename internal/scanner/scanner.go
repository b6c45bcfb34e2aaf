// Package scanner walks a directory tree with a pool of workers and merges
// their listings into a model.Tree through a single-writer aggregator.
package scanner

import (
	"context"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sadopc/duscope/internal/model"
)

// maxDefaultWorkers caps the default pool so spinning disks are not thrashed.
const maxDefaultWorkers = 8

// Options configures the scanner behavior.
type Options struct {
	// ShowHidden includes hidden files/directories (starting with .)
	ShowHidden bool
	// ExcludePatterns are entry names or glob patterns to skip.
	ExcludePatterns []string
	// CrossDevice allows descending into directories on a different
	// filesystem than the scan root. When false such directories are listed
	// with model.FlagOtherDevice and not entered.
	CrossDevice bool
	// DisableGC disables garbage collection until the first full scan finishes.
	DisableGC bool
	// Workers overrides the pool size (0 = DefaultWorkers).
	Workers int
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		ShowHidden:      true,
		ExcludePatterns: []string{},
	}
}

// DefaultWorkers returns min(cores, 8).
func DefaultWorkers() int {
	n := runtime.NumCPU()
	if n > maxDefaultWorkers {
		n = maxDefaultWorkers
	}
	if n < 1 {
		n = 1
	}
	return n
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return DefaultWorkers()
}

// excluded reports whether an entry name is filtered out.
func (o Options) excluded(name string) bool {
	if !o.ShowHidden && strings.HasPrefix(name, ".") {
		return true
	}
	for _, p := range o.ExcludePatterns {
		if p == name {
			return true
		}
		if ok, err := filepath.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

// Job is one directory to list. Gen is the scan generation the job was
// issued under; a job whose node has moved to another generation is stale.
type Job struct {
	Node *model.Node
	Path string
	Gen  uint64
}

// stale reports whether the job no longer belongs to a live scan. It does
// not take the tree lock.
func (j Job) stale(ctx context.Context) bool {
	return ctx.Err() != nil || j.superseded()
}

// superseded reports whether a rescan replaced the job's generation or
// discarded its node.
func (j Job) superseded() bool {
	return j.Node.Gen() != j.Gen || !j.Node.Live()
}

// Result is a worker's report for one job. A claim is sent before listing
// starts; then either Children (unattached nodes built from the listing) or
// Err (the directory itself could not be read).
type Result struct {
	Job      Job
	Claimed  bool
	Children []*model.Node
	Err      error
}

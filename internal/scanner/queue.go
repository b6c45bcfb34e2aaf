package scanner

import (
	"context"
	"sync"
)

// jobQueue is an unbounded LIFO of jobs. Pushing never blocks, so workers
// can enqueue subdirectories while the aggregator is busy.
type jobQueue struct {
	mu    sync.Mutex
	items []Job
	wake  chan struct{}
}

func newJobQueue() *jobQueue {
	return &jobQueue{wake: make(chan struct{}, 1)}
}

func (q *jobQueue) push(jobs ...Job) {
	if len(jobs) == 0 {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, jobs...)
	q.mu.Unlock()
	q.signal()
}

// pop blocks until a job is available or ctx is done.
func (q *jobQueue) pop(ctx context.Context) (Job, bool) {
	for {
		q.mu.Lock()
		if n := len(q.items); n > 0 {
			j := q.items[n-1]
			q.items[n-1] = Job{}
			q.items = q.items[:n-1]
			more := n > 1
			q.mu.Unlock()
			if more {
				q.signal()
			}
			return j, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Job{}, false
		case <-q.wake:
		}
	}
}

func (q *jobQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *jobQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// listings tracks the jobs workers are currently listing, so a rescan can
// cancel the ones it supersedes instead of waiting for them to finish.
type listings struct {
	mu   sync.Mutex
	next uint64
	jobs map[uint64]listing
}

type listing struct {
	job    Job
	cancel context.CancelFunc
}

func newListings() *listings {
	return &listings{jobs: make(map[uint64]listing)}
}

// start registers job and returns a context that is canceled when the job is
// superseded, plus a func to unregister it.
func (l *listings) start(ctx context.Context, job Job) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	id := l.next
	l.next++
	l.jobs[id] = listing{job: job, cancel: cancel}
	l.mu.Unlock()
	return ctx, func() {
		l.mu.Lock()
		delete(l.jobs, id)
		l.mu.Unlock()
		cancel()
	}
}

// cancelSuperseded interrupts every registered job whose generation is gone.
func (l *listings) cancelSuperseded() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for id, ls := range l.jobs {
		if ls.job.superseded() {
			ls.cancel()
			delete(l.jobs, id)
			n++
		}
	}
	return n
}

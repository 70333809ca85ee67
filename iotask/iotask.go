// Package iotask implements Loader, a background asset-prefetch dispatcher
// built on the teacher's own worker.DynamicWorkerPool. It is the IO
// ServiceKind registrant: a short-lived-background-task follower of the
// non-goal "it does not work-steal" — jobs are fire-and-forget, never fed
// back into the render SystemTask's queue.
package iotask

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"github.com/kestrel-engine/pulsecore/internal/corelog"
)

// Loader dispatches fire-and-forget asset-load jobs to a fixed worker
// pool, off the render thread.
type Loader struct {
	pool   worker.DynamicWorkerPool
	logger corelog.Logger
	domain string
	nextID atomic.Int64
}

// New returns a Loader backed by a pool of workers goroutines, each job
// queue holding up to queueSize pending tasks, with timeout as the pool's
// per-task submission timeout.
func New(workers, queueSize int, timeout time.Duration, logger corelog.Logger, domain string) *Loader {
	return &Loader{
		pool:   worker.NewDynamicWorkerPool(workers, queueSize, timeout),
		logger: logger,
		domain: domain,
	}
}

// Load submits fn to the pool. onDone, if non-nil, is called with fn's
// result once it completes; it runs on a pool goroutine, never the render
// thread.
func (l *Loader) Load(fn func() (any, error), onDone func(any, error)) {
	id := int(l.nextID.Add(1))
	l.pool.SubmitTask(worker.Task{
		ID: id,
		Do: func() (any, error) {
			result, err := fn()
			if err != nil && l.logger != nil {
				l.logger.Error(l.domain, "background load task failed", "task_id", id, "error", err)
			}
			if onDone != nil {
				onDone(result, err)
			}
			return result, err
		},
	})
}

// LoadAll submits fns and blocks until every one has completed, returning
// their results in the same order. Intended for startup-time batch
// prefetch, not per-frame work.
func (l *Loader) LoadAll(fns []func() (any, error)) []any {
	results := make([]any, len(fns))
	var wg sync.WaitGroup
	wg.Add(len(fns))
	for i, fn := range fns {
		i, fn := i, fn
		l.Load(fn, func(result any, _ error) {
			results[i] = result
			wg.Done()
		})
	}
	wg.Wait()
	return results
}

// Package systask implements SystemTask, the thin façade over a
// WorkerThread and a Job queue that every long-lived background task
// (render, IO) is built from.
package systask

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kestrel-engine/pulsecore/corerr"
	"github.com/kestrel-engine/pulsecore/event"
	"github.com/kestrel-engine/pulsecore/internal/corelog"
	"github.com/kestrel-engine/pulsecore/internal/queue"
	"github.com/kestrel-engine/pulsecore/internal/workerthread"
)

// SystemTask owns one WorkerThread and one AsyncQueue<Job>. All exported
// methods are safe to call from any goroutine.
type SystemTask struct {
	name   string
	logger corelog.Logger
	domain string

	mu      sync.Mutex
	started bool
	stopped atomic.Bool
	// dropLogged records that a send after stop has already been logged.
	dropLog atomic.Bool
	q       *queue.Queue[event.Job]
	worker  *workerthread.WorkerThread
	handler event.Handler
}

// New returns a SystemTask named name, logging under domain. The task is
// not started; call Start.
func New(name string, logger corelog.Logger, domain string) *SystemTask {
	return &SystemTask{
		name:   name,
		logger: logger,
		domain: domain,
		q:      queue.New[event.Job](),
	}
}

// AttachHandler sets the event.Handler dispatched to on the worker thread,
// detaching any previously attached handler. Only a call made before Start
// affects dispatch: the worker keeps dispatching to the handler that was
// attached when Start ran.
func (t *SystemTask) AttachHandler(h event.Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.handler != nil {
		t.handler.OnDetached()
	}
	t.handler = h
	if h != nil {
		h.OnAttached()
	}
}

// Start spins up the worker goroutine. Returns corerr.ErrAlreadyRunning if
// called twice.
func (t *SystemTask) Start() error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return fmt.Errorf("%w: systask %q already started", corerr.ErrAlreadyRunning, t.name)
	}
	t.started = true
	t.worker = workerthread.New(t.name, t.q, t.handler, t.logger, t.domain)
	t.mu.Unlock()

	t.worker.Start()
	return nil
}

// SendEvent enqueues a Job, non-blocking. If the task has already been
// stopped, the send fails silently to the caller but is logged once.
func (t *SystemTask) SendEvent(kind event.Kind, data any) {
	if err := t.q.Enqueue(event.Job{Kind: kind, Data: data}); err != nil {
		if t.logger != nil && t.dropLog.CompareAndSwap(false, true) {
			t.logger.Warn(t.domain, "send_event after stop, dropped", "task", t.name, "kind", kind)
		}
	}
}

// UpdateGeneration returns the worker's current update-pulse generation. A
// caller that wants to know its SendEvent calls have drained must sample
// this beforehand and pass the result to AwaitUpdate: sampling afterward
// can race a signal that already happened and deadlock the wait.
func (t *SystemTask) UpdateGeneration() uint64 {
	t.mu.Lock()
	w := t.worker
	t.mu.Unlock()
	if w == nil {
		return 0
	}
	return w.UpdateGeneration()
}

// AwaitUpdate blocks the caller until the worker's update pulse has
// advanced past since, the value returned by a prior UpdateGeneration call.
func (t *SystemTask) AwaitUpdate(since uint64) {
	t.mu.Lock()
	w := t.worker
	t.mu.Unlock()
	if w == nil {
		return
	}
	w.AwaitUpdate(since)
}

// Stop enqueues the stop job, then blocks until the worker has fully
// exited. Safe to call more than once.
func (t *SystemTask) Stop() {
	if !t.stopped.CompareAndSwap(false, true) {
		t.mu.Lock()
		w := t.worker
		t.mu.Unlock()
		if w != nil {
			w.AwaitStop()
		}
		return
	}
	t.q.Enqueue(event.Job{Kind: event.KindStopTask}) //nolint:errcheck // stop is best-effort once
	t.q.Cancel()

	t.mu.Lock()
	w := t.worker
	t.mu.Unlock()
	if w != nil {
		w.AwaitStop()
	}
}

// QueueSize is an advisory count of jobs currently pending.
func (t *SystemTask) QueueSize() int {
	return t.q.Size()
}

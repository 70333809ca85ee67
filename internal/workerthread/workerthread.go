// Package workerthread implements the single-consumer goroutine that drains
// a queue of event.Job values and pulses two signals: a repeating,
// generation-counted one each time the queue empties, and a one-shot signal
// once after the drain loop exits.
package workerthread

import (
	"sync"

	"github.com/kestrel-engine/pulsecore/event"
	"github.com/kestrel-engine/pulsecore/internal/corelog"
	"github.com/kestrel-engine/pulsecore/internal/queue"
)

// State is the WorkerThread lifecycle stage.
type State int

const (
	// StateNew is the initial state before Start is called.
	StateNew State = iota
	// StateRunning is entered on Start and held until the stop job drains.
	StateRunning
	// StateTerminated is entered once the drain loop has exited; the
	// instance may not be restarted.
	StateTerminated
)

// pulse is a one-shot, multi-waiter broadcast signal. It is closed exactly
// once; Wait blocks until closed. Used for stopSignal, which never resets.
type pulse struct {
	mu sync.Mutex
	ch chan struct{}
}

func newPulse() *pulse {
	return &pulse{ch: make(chan struct{})}
}

func (p *pulse) signal() {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.ch:
		// already signalled
	default:
		close(p.ch)
	}
}

func (p *pulse) wait() {
	p.mu.Lock()
	ch := p.ch
	p.mu.Unlock()
	<-ch
}

// genSignal is a repeating broadcast signal identified by a monotonically
// increasing generation counter rather than a channel reference. A caller
// samples Current before doing whatever might provoke the next signal, then
// calls AwaitSince with that value; a signal delivered at any point after
// the sample — including before AwaitSince is even called — still advances
// the generation past the sampled value, so the wait returns instead of
// blocking on a generation that already happened. A plain channel-and-reset
// pulse cannot make this guarantee: reset() can run between the signalling
// close and the waiter capturing the new channel, which drops the wakeup.
type genSignal struct {
	mu   sync.Mutex
	cond *sync.Cond
	gen  uint64
}

func newGenSignal() *genSignal {
	g := &genSignal{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

func (g *genSignal) signal() {
	g.mu.Lock()
	g.gen++
	g.cond.Broadcast()
	g.mu.Unlock()
}

// current returns the generation counter's present value, to be sampled by
// a caller before it does whatever should provoke the next signal.
func (g *genSignal) current() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen
}

// awaitSince blocks until the generation counter has advanced past since.
func (g *genSignal) awaitSince(since uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for g.gen == since {
		g.cond.Wait()
	}
}

// WorkerThread owns the goroutine running the drain loop described in the
// run-loop table: await_nonempty, drain, signal update, repeat; signal stop
// once after the final drain.
type WorkerThread struct {
	name    string
	queue   *queue.Queue[event.Job]
	logger  corelog.Logger
	domain  string
	handler event.Handler

	mu    sync.Mutex
	state State

	updateSignal *genSignal
	stopSignal   *pulse
}

// New returns a WorkerThread in StateNew, driven by q and dispatching to
// handler (which may be nil; nil handlers simply drop Jobs after the stop
// check). domain tags log lines emitted by this worker.
func New(name string, q *queue.Queue[event.Job], handler event.Handler, logger corelog.Logger, domain string) *WorkerThread {
	return &WorkerThread{
		name:         name,
		queue:        q,
		handler:      handler,
		logger:       logger,
		domain:       domain,
		state:        StateNew,
		updateSignal: newGenSignal(),
		stopSignal:   newPulse(),
	}
}

// State returns the current lifecycle stage.
func (w *WorkerThread) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Start launches the drain-loop goroutine. Returns false if the worker was
// already started or has already terminated.
func (w *WorkerThread) Start() bool {
	w.mu.Lock()
	if w.state != StateNew {
		w.mu.Unlock()
		return false
	}
	w.state = StateRunning
	w.mu.Unlock()

	go w.run()
	return true
}

func (w *WorkerThread) run() {
	running := true
	for running {
		if !w.queue.AwaitNonEmpty() {
			// Cancelled with nothing pending; treat like a drained queue.
			break
		}
		for {
			job, ok := w.queue.TryDequeue()
			if !ok {
				break
			}
			if job.Kind == event.KindStopTask {
				running = false
			}
			if w.handler != nil {
				if err := w.handler.OnEvent(job.Kind, job.Data); err != nil && w.logger != nil {
					w.logger.Error(w.domain, "event handler returned error", "kind", job.Kind, "error", err)
				}
			}
			if !running {
				break
			}
		}
		w.updateSignal.signal()
		if !running {
			break
		}
	}

	if w.handler != nil {
		w.handler.OnDetached()
	}

	w.mu.Lock()
	w.state = StateTerminated
	w.mu.Unlock()
	w.stopSignal.signal()
}

// UpdateGeneration returns the current update-pulse generation. A caller
// that needs to know its submitted jobs have drained must sample this
// before submitting them, then pass the value to AwaitUpdate — sampling
// after submission risks missing a signal that already fired.
func (w *WorkerThread) UpdateGeneration() uint64 {
	return w.updateSignal.current()
}

// AwaitUpdate blocks the caller until the worker's update pulse has
// advanced past since, i.e. until at least one empty-queue transition has
// occurred after since was sampled from UpdateGeneration.
func (w *WorkerThread) AwaitUpdate(since uint64) {
	w.updateSignal.awaitSince(since)
}

// AwaitStop blocks the caller until the drain loop has fully exited.
func (w *WorkerThread) AwaitStop() {
	w.stopSignal.wait()
}

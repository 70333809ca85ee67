package systask

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-engine/pulsecore/corerr"
	"github.com/kestrel-engine/pulsecore/event"
)

type countingHandler struct {
	mu      sync.Mutex
	n       int
	attach  int
	detach  int
	failOn  event.Kind
}

func (h *countingHandler) OnAttached() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attach++
}

func (h *countingHandler) OnDetached() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detach++
}

func (h *countingHandler) OnEvent(kind event.Kind, _ any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.n++
	if kind == h.failOn {
		return errors.New("boom")
	}
	return nil
}

func (h *countingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.n
}

func TestSystemTaskStartTwiceReturnsAlreadyRunning(t *testing.T) {
	task := New("t", nil, "test")
	require.NoError(t, task.Start())
	err := task.Start()
	assert.ErrorIs(t, err, corerr.ErrAlreadyRunning)
	task.Stop()
}

func TestSystemTaskSendEventDispatchesToHandler(t *testing.T) {
	h := &countingHandler{}
	task := New("t", nil, "test")
	task.AttachHandler(h)
	require.NoError(t, task.Start())

	gen := task.UpdateGeneration()
	task.SendEvent("x", nil)
	task.SendEvent("y", nil)
	task.AwaitUpdate(gen)

	assert.Equal(t, 2, h.count())
	assert.Equal(t, 1, h.attach)

	task.Stop()
	assert.Equal(t, 1, h.detach)
}

func TestSystemTaskStopIsIdempotent(t *testing.T) {
	task := New("t", nil, "test")
	require.NoError(t, task.Start())
	task.Stop()
	task.Stop()
}

func TestSystemTaskSendEventAfterStopDropsSilently(t *testing.T) {
	task := New("t", nil, "test")
	require.NoError(t, task.Start())
	task.Stop()

	task.SendEvent("late", nil)
}

func TestSystemTaskHandlerErrorDoesNotStopDrainLoop(t *testing.T) {
	h := &countingHandler{failOn: "bad"}
	task := New("t", nil, "test")
	task.AttachHandler(h)
	require.NoError(t, task.Start())

	gen := task.UpdateGeneration()
	task.SendEvent("bad", nil)
	task.SendEvent("good", nil)
	task.AwaitUpdate(gen)

	assert.Equal(t, 2, h.count())
	task.Stop()
}

func TestSystemTaskQueueSizeAdvisory(t *testing.T) {
	task := New("t", nil, "test")
	assert.Equal(t, 0, task.QueueSize())
}

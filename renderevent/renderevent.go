// Package renderevent implements RenderEventHandler, the event.Handler
// that wires CommitFrame/RenderFrame/etc. Jobs arriving on the render
// SystemTask's queue into a rendercmd.CommandBuffer.
package renderevent

import (
	"fmt"
	"sync"

	"github.com/kestrel-engine/pulsecore/event"
	"github.com/kestrel-engine/pulsecore/frame"
	"github.com/kestrel-engine/pulsecore/gpuapi"
	"github.com/kestrel-engine/pulsecore/internal/corelog"
	"github.com/kestrel-engine/pulsecore/rendercmd"
)

// Kind enumerates the render subsystem's event variants, per the core's
// EventHandler contract.
const (
	KindAttach          event.Kind = "render.attach"
	KindDetach          event.Kind = "render.detach"
	KindCreateRenderer  event.Kind = "render.create-renderer"
	KindDestroyRenderer event.Kind = "render.destroy-renderer"
	KindAttachView      event.Kind = "render.attach-view"
	KindDetachView      event.Kind = "render.detach-view"
	KindClearScene      event.Kind = "render.clear-scene"
	KindRenderFrame     event.Kind = "render.render-frame"
	KindInitPasses      event.Kind = "render.init-passes"
	KindCommitFrame     event.Kind = "render.commit-frame"
	KindResize          event.Kind = "render.resize"
	KindShutdownRequest event.Kind = "render.shutdown-request"
)

// CreateRendererPayload carries the Window a CreateRenderer event binds
// the GPU context to.
type CreateRendererPayload struct {
	Window gpuapi.Window
}

// CommitFramePayload carries the Submit frame being handed to the render
// thread.
type CommitFramePayload struct {
	Frame *frame.Frame
}

// InitPassesPayload carries the frame whose passes should get GPU mirrors
// allocated, lazily and idempotently.
type InitPassesPayload struct {
	Frame *frame.Frame
}

// ResizePayload carries a pending swap-chain resize, applied only between
// RenderFrame events.
type ResizePayload struct {
	Target        frame.PassID
	X, Y, W, H int
}

// AttachViewPayload/DetachViewPayload identify a named viewport attaching
// or detaching from the renderer.
type AttachViewPayload struct{ ViewID string }
type DetachViewPayload struct{ ViewID string }

// Handler implements event.Handler for the render subsystem. It owns the
// single rendercmd.CommandBuffer the render thread mutates, and records
// the last render-thread error so the application thread can observe it on
// its next await_update.
type Handler struct {
	cmdBuf *rendercmd.CommandBuffer
	logger corelog.Logger
	domain string

	mu            sync.Mutex
	running       bool
	lastErr       error
	pendingResize *ResizePayload
}

var _ event.Handler = (*Handler)(nil)

// New returns a Handler driving cmdBuf.
func New(cmdBuf *rendercmd.CommandBuffer, logger corelog.Logger, domain string) *Handler {
	return &Handler{cmdBuf: cmdBuf, logger: logger, domain: domain}
}

// OnAttached initialises the command buffer's GPU-backend mirror.
func (h *Handler) OnAttached() {
	h.mu.Lock()
	h.running = true
	h.mu.Unlock()
	h.cmdBuf.Attach()
}

// OnDetached marks the handler not-running; subsequent OnEvent calls are
// discarded.
func (h *Handler) OnDetached() {
	h.mu.Lock()
	h.running = false
	h.mu.Unlock()
}

// LastError returns and clears the persistent render-thread error, if any.
// renderservice calls this immediately after AwaitUpdate so a failed frame
// surfaces as a boolean failure to the application thread, per the core's
// error propagation policy.
func (h *Handler) LastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	err := h.lastErr
	h.lastErr = nil
	return err
}

func (h *Handler) recordError(err error) {
	h.mu.Lock()
	h.lastErr = err
	h.mu.Unlock()
}

// OnEvent dispatches one Job to the command buffer. It runs on the render
// worker thread.
func (h *Handler) OnEvent(kind event.Kind, data any) error {
	h.mu.Lock()
	running := h.running
	h.mu.Unlock()
	if !running {
		return nil
	}

	switch kind {
	case KindCreateRenderer:
		payload, ok := data.(CreateRendererPayload)
		if !ok {
			return fmt.Errorf("render.create-renderer: unexpected payload type %T", data)
		}
		if err := h.cmdBuf.CreateRenderer(payload.Window); err != nil {
			h.recordError(err)
			return err
		}
		return nil

	case KindDestroyRenderer:
		h.cmdBuf.Shutdown()
		return nil

	case KindAttachView, KindDetachView:
		return nil

	case KindClearScene:
		return nil

	case KindInitPasses:
		payload, ok := data.(InitPassesPayload)
		if !ok {
			return fmt.Errorf("render.init-passes: unexpected payload type %T", data)
		}
		h.cmdBuf.InitPasses(payload.Frame)
		return nil

	case KindCommitFrame:
		payload, ok := data.(CommitFramePayload)
		if !ok {
			return fmt.Errorf("render.commit-frame: unexpected payload type %T", data)
		}
		h.cmdBuf.InitPasses(payload.Frame)
		if err := h.cmdBuf.CommitFrame(payload.Frame); err != nil {
			h.recordError(err)
			return err
		}
		return nil

	case KindRenderFrame:
		h.applyPendingResize()
		if err := h.cmdBuf.RenderFrame(); err != nil {
			h.recordError(err)
			return err
		}
		return nil

	case KindResize:
		payload, ok := data.(ResizePayload)
		if !ok {
			return fmt.Errorf("render.resize: unexpected payload type %T", data)
		}
		h.mu.Lock()
		h.pendingResize = &payload
		h.mu.Unlock()
		return nil

	case KindShutdownRequest:
		h.cmdBuf.Shutdown()
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
		return nil

	default:
		if h.logger != nil {
			h.logger.Warn(h.domain, "unhandled render event kind", "kind", kind)
		}
		return nil
	}
}

// applyPendingResize applies a queued resize at the top of a RenderFrame
// dispatch, never mid-frame, per the core's resolved ambiguity around
// swap-chain resize ordering.
func (h *Handler) applyPendingResize() {
	h.mu.Lock()
	resize := h.pendingResize
	h.pendingResize = nil
	h.mu.Unlock()
	if resize == nil {
		return
	}
	h.cmdBuf.Resize(resize.Target, resize.X, resize.Y, resize.W, resize.H)
}

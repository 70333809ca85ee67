// Package rendercmd implements the render-thread interpreter of a Frame:
// it owns the GPU mirrors keyed by stable pass/batch/mesh ids and turns a
// Frame's diffed submit_cmds into calls against a gpuapi.GpuBackend.
package rendercmd

import (
	"fmt"

	"github.com/kestrel-engine/pulsecore/corerr"
	"github.com/kestrel-engine/pulsecore/frame"
	"github.com/kestrel-engine/pulsecore/gpuapi"
	"github.com/kestrel-engine/pulsecore/internal/corelog"
	"github.com/kestrel-engine/pulsecore/rescache"
)

// passMirror is the render thread's record of a Pass's GPU-side state.
type passMirror struct {
	framebuffer *uint64
	viewport    gpuapi.Rect
	cullEnabled bool
}

// batchMirror is the render thread's cached draw-call sequence for one
// batch: its shader, the uniform names already bound, and the mesh/prim
// group list to issue draw calls from.
type batchMirror struct {
	shader           gpuapi.ShaderHandle
	uniformBound     map[string]bool
	meshes           []gpuapi.MeshID
	primGroups       map[gpuapi.MeshID][]gpuapi.PrimitiveGroup
	lastMatrixBuffer frame.MatrixBuffer
}

// CommandBuffer is the render-thread side of the core: the single mutable
// GPU-mirror state machine, driven exclusively by renderevent.Handler on
// the worker thread.
type CommandBuffer struct {
	backend   gpuapi.GpuBackend
	meshStore gpuapi.MeshStore
	logger    corelog.Logger
	domain    string

	materials *rescache.Cache[string, gpuapi.ShaderHandle]

	passes      map[frame.PassID]*passMirror
	batches     map[frame.BatchID]*batchMirror
	clearState  gpuapi.ClearState
	activeFrame *frame.Frame

	// viewport is the window/surface rect captured by CreateRenderer. Every
	// passMirror is seeded from it at construction time so the first
	// RenderFrame after CreateRenderer draws into the surface's actual
	// bounds rather than a zero-value Rect; Resize overrides it per pass.
	viewport gpuapi.Rect

	disabled bool
}

// New returns a CommandBuffer driving backend, resolving meshes through
// meshStore.
func New(backend gpuapi.GpuBackend, meshStore gpuapi.MeshStore, logger corelog.Logger, domain string) *CommandBuffer {
	return &CommandBuffer{
		backend:   backend,
		meshStore: meshStore,
		logger:    logger,
		domain:    domain,
		passes:    make(map[frame.PassID]*passMirror),
		batches:   make(map[frame.BatchID]*batchMirror),
		materials: rescache.New(func(string) gpuapi.ShaderHandle { return 0 }),
	}
}

// Attach initialises the GPU-backend mirror state and creates the default
// materials table. Called once by renderevent.Handler.OnAttached.
func (c *CommandBuffer) Attach() {
	c.materials.Create("default")
}

// CreateRenderer establishes the GPU context bound to w, sets the initial
// viewport from w's rect, and compiles a trivial pass-through shader to
// prove the pipeline links. Returns corerr.ErrContextCreationFailed or
// corerr.ErrShaderLinkFailed on failure, in which case the command buffer
// is left disabled.
func (c *CommandBuffer) CreateRenderer(w gpuapi.Window) error {
	if err := c.backend.CreateContext(w); err != nil {
		c.disabled = true
		return fmt.Errorf("%w: %v", corerr.ErrContextCreationFailed, err)
	}
	x, y, width, height := w.Rect()
	c.viewport = gpuapi.Rect{X: x, Y: y, W: width, H: height}
	c.backend.SetViewport(c.viewport)

	if _, err := c.backend.CompileShader(defaultPassthroughShader); err != nil {
		c.disabled = true
		return fmt.Errorf("%w: %v", corerr.ErrShaderLinkFailed, err)
	}
	c.disabled = false
	return nil
}

// defaultPassthroughShader is compiled once during CreateRenderer purely
// to validate that the backend's shader pipeline links successfully.
const defaultPassthroughShader = "// default pass-through shader\n"

// Disabled reports whether a fatal error has put the command buffer into
// the disabled state, where all draw events are no-ops until a new
// CreateRenderer succeeds.
func (c *CommandBuffer) Disabled() bool {
	return c.disabled
}

// InitPasses walks f.Passes and allocates a GPU mirror for any pass not
// already known. Idempotent: a pass already mirrored is left untouched.
func (c *CommandBuffer) InitPasses(f *frame.Frame) {
	if c.disabled {
		return
	}
	for _, p := range f.Passes {
		if _, ok := c.passes[p.ID]; ok {
			continue
		}
		c.passes[p.ID] = &passMirror{
			framebuffer: p.Framebuffer,
			cullEnabled: p.CullEnabled,
			viewport:    c.viewport,
		}
	}
}

// CommitFrame consumes f.SubmitCmds and applies each to the GPU mirror
// state. It keeps a reference to f as the frame RenderFrame will later
// draw from.
func (c *CommandBuffer) CommitFrame(f *frame.Frame) error {
	if c.disabled {
		return nil
	}
	c.activeFrame = f
	for _, cmd := range f.SubmitCmds {
		if err := c.applyCmd(cmd); err != nil {
			if c.logger != nil {
				c.logger.Error(c.domain, "commit frame cmd failed", "pass", cmd.PassID, "batch", cmd.BatchID, "flags", cmd.Flags, "error", err)
			}
			return err
		}
	}
	return nil
}

func (c *CommandBuffer) applyCmd(cmd frame.FrameSubmitCmd) error {
	switch cmd.Flags {
	case frame.UpdateMatrices:
		mb, err := frame.DecodeMatrices(cmd.Payload)
		if err != nil {
			return err
		}
		bm := c.batchMirror(cmd.BatchID)
		bm.lastMatrixBuffer = mb
		return nil

	case frame.UpdateUniforms:
		name, _, err := frame.DecodeUniform(cmd.Payload)
		if err != nil {
			return err
		}
		bm := c.batchMirror(cmd.BatchID)
		if bm.uniformBound == nil {
			bm.uniformBound = make(map[string]bool)
		}
		bm.uniformBound[name] = true
		return nil

	case frame.UpdateBuffer:
		if cmd.MeshID == nil {
			return fmt.Errorf("%w: UpdateBuffer cmd missing mesh id", corerr.ErrMeshNotFound)
		}
		if _, ok := c.meshStore.Resolve(*cmd.MeshID); !ok {
			return fmt.Errorf("%w: %s", corerr.ErrMeshNotFound, *cmd.MeshID)
		}
		return c.backend.UploadVertexBuffer(*cmd.MeshID, cmd.Payload)

	case frame.AddRenderData:
		snap, err := frame.DecodeBatchSnapshot(cmd.Payload)
		if err != nil {
			return err
		}
		return c.addRenderData(snap)

	default:
		return fmt.Errorf("unknown submit cmd flag %v", cmd.Flags)
	}
}

func (c *CommandBuffer) addRenderData(snap frame.BatchSnapshot) error {
	bm := c.batchMirror(snap.Batch.ID)
	bm.lastMatrixBuffer = snap.Batch.Matrices
	bm.meshes = bm.meshes[:0]
	if bm.primGroups == nil {
		bm.primGroups = make(map[gpuapi.MeshID][]gpuapi.PrimitiveGroup)
	}
	for _, entry := range snap.Batch.Meshes {
		handles, ok := c.meshStore.Resolve(entry.Mesh)
		if !ok {
			return fmt.Errorf("%w: %s", corerr.ErrMeshNotFound, entry.Mesh)
		}
		bm.meshes = append(bm.meshes, entry.Mesh)
		groups := make([]gpuapi.PrimitiveGroup, len(handles.PrimGroups))
		copy(groups, handles.PrimGroups)
		for i := range groups {
			if entry.Instances > 0 {
				groups[i].Instances = entry.Instances
			}
		}
		bm.primGroups[entry.Mesh] = groups
	}
	if _, ok := c.passes[snap.PassID]; !ok {
		c.passes[snap.PassID] = &passMirror{framebuffer: snap.Framebuffer, viewport: c.viewport}
	}
	return nil
}

func (c *CommandBuffer) batchMirror(id frame.BatchID) *batchMirror {
	bm, ok := c.batches[id]
	if !ok {
		bm = &batchMirror{uniformBound: make(map[string]bool), primGroups: make(map[gpuapi.MeshID][]gpuapi.PrimitiveGroup)}
		c.batches[id] = bm
	}
	return bm
}

// SetClearState sets the clear performed at the start of the next
// RenderFrame.
func (c *CommandBuffer) SetClearState(state gpuapi.ClearState) {
	c.clearState = state
}

// RenderFrame clears, then walks the active frame's passes and batches in
// insertion order issuing draw calls, then presents. It is a no-op while
// the command buffer is disabled.
func (c *CommandBuffer) RenderFrame() error {
	if c.disabled {
		return nil
	}
	c.backend.Clear(c.clearState)
	if c.activeFrame == nil {
		c.backend.Present()
		return nil
	}

	for _, pass := range c.activeFrame.Passes {
		pm, ok := c.passes[pass.ID]
		if !ok {
			pm = &passMirror{framebuffer: pass.Framebuffer, viewport: c.viewport}
			c.passes[pass.ID] = pm
		}
		c.backend.SetViewport(pm.viewport)

		for _, batch := range pass.Batches {
			bm := c.batchMirror(batch.ID)
			for _, meshID := range bm.meshes {
				for _, group := range bm.primGroups[meshID] {
					c.backend.Draw(group)
				}
			}
		}
	}
	c.backend.Present()
	return nil
}

// Resize resizes the framebuffer mirror identified by target and
// reassigns its viewport. It does not invalidate any other cached mirror
// state.
func (c *CommandBuffer) Resize(target frame.PassID, x, y, w, h int) {
	pm, ok := c.passes[target]
	if !ok {
		pm = &passMirror{}
		c.passes[target] = pm
	}
	pm.viewport = gpuapi.Rect{X: x, Y: y, W: w, H: h}
	c.backend.SetViewport(pm.viewport)
}

// Shutdown marks the command buffer disabled; subsequent draw/commit
// events become no-ops.
func (c *CommandBuffer) Shutdown() {
	c.disabled = true
}

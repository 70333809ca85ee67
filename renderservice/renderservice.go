// Package renderservice implements RenderBackendService, the
// application-side façade applications call to describe a frame. It owns
// the persistent pass/batch list across frames, diffs it into
// FrameSubmitCmds on RequestNextFrame, and hands the result to the render
// SystemTask.
package renderservice

import (
	"fmt"

	"github.com/kestrel-engine/pulsecore/corerr"
	"github.com/kestrel-engine/pulsecore/frame"
	"github.com/kestrel-engine/pulsecore/gpuapi"
	"github.com/kestrel-engine/pulsecore/internal/corelog"
	"github.com/kestrel-engine/pulsecore/renderevent"
	"github.com/kestrel-engine/pulsecore/systask"
)

// Service is the application-side frame-building API. Exactly one
// goroutine — the application thread that called BeginPass — may mutate
// its recording state at a time; the core does not itself enforce this
// with locks, matching the single-writer invariant the spec assigns to
// the caller.
type Service struct {
	task    *systask.SystemTask
	handler *renderevent.Handler
	logger  corelog.Logger
	domain  string

	resizeOnFocus bool

	// passes is the persistent, service-owned pass list. It survives the
	// Submit/Render frame pointer swap; the Frame structs below exist only
	// to carry each commit's diffed cmds and a snapshot for InitPasses.
	passes []*frame.PassData

	currentPass  *frame.PassData
	passActive   bool
	currentBatch *frame.RenderBatchData
	batchActive  bool

	frameA, frameB *frame.Frame
	submit, render *frame.Frame

	firstUpdate bool
}

// Option configures a Service at construction time.
type Option func(*Service)

// WithResizeOnFocus enables sending ResizeEvent on Resize calls.
func WithResizeOnFocus(enabled bool) Option {
	return func(s *Service) { s.resizeOnFocus = enabled }
}

// New returns a Service driving task through handler. The SystemTask must
// already have handler attached (via task.AttachHandler) before Start.
func New(task *systask.SystemTask, handler *renderevent.Handler, logger corelog.Logger, domain string, opts ...Option) *Service {
	s := &Service{
		task:        task,
		handler:     handler,
		logger:      logger,
		domain:      domain,
		frameA:      frame.New(),
		frameB:      frame.New(),
		firstUpdate: true,
	}
	s.submit, s.render = s.frameA, s.frameB
	for _, o := range opts {
		o(s)
	}
	return s
}

// findPass returns the persistent pass with id, if present.
func (s *Service) findPass(id frame.PassID) (*frame.PassData, bool) {
	for _, p := range s.passes {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// BeginPass returns the pass with the given id if it already exists in the
// persistent pass list, else creates a new, not-yet-appended one. Fails
// with corerr.ErrPassAlreadyActive if a prior BeginPass was not closed
// with EndPass.
func (s *Service) BeginPass(id frame.PassID) (*frame.PassData, error) {
	if s.passActive {
		err := fmt.Errorf("%w: pass %q", corerr.ErrPassAlreadyActive, id)
		s.logError("begin_pass", err)
		return nil, err
	}
	p, ok := s.findPass(id)
	if !ok {
		p = &frame.PassData{ID: id}
	}
	s.currentPass = p
	s.passActive = true
	return p, nil
}

// EndPass closes the current pass recording, appending it to the
// persistent pass list if this was its first close.
func (s *Service) EndPass() error {
	if !s.passActive {
		err := fmt.Errorf("%w: end_pass with no active pass", corerr.ErrNoActivePass)
		s.logError("end_pass", err)
		return err
	}
	if _, ok := s.findPass(s.currentPass.ID); !ok {
		s.passes = append(s.passes, s.currentPass)
	}
	s.currentPass = nil
	s.passActive = false
	return nil
}

// BeginRenderBatch returns the batch with the given id within the current
// pass, creating one if absent. Fails with corerr.ErrNoActivePass if no
// pass is being recorded.
func (s *Service) BeginRenderBatch(id frame.BatchID) (*frame.RenderBatchData, error) {
	if !s.passActive {
		err := fmt.Errorf("%w: begin_render_batch %q with no active pass", corerr.ErrNoActivePass, id)
		s.logError("begin_render_batch", err)
		return nil, err
	}
	b, ok := s.currentPass.FindBatch(id)
	if !ok {
		b = &frame.RenderBatchData{ID: id}
	}
	s.currentBatch = b
	s.batchActive = true
	return b, nil
}

// EndRenderBatch closes the current batch recording, appending it to the
// owning pass if this was its first close.
func (s *Service) EndRenderBatch() error {
	if !s.batchActive {
		err := fmt.Errorf("%w: end_render_batch with no active batch", corerr.ErrNoActiveBatch)
		s.logError("end_render_batch", err)
		return err
	}
	if _, ok := s.currentPass.FindBatch(s.currentBatch.ID); !ok {
		s.currentPass.Batches = append(s.currentPass.Batches, s.currentBatch)
	}
	s.currentBatch = nil
	s.batchActive = false
	return nil
}

// SetRenderTarget sets the current pass's framebuffer.
func (s *Service) SetRenderTarget(fb *uint64) error {
	if !s.passActive {
		err := fmt.Errorf("%w: set_render_target with no active pass", corerr.ErrNoActivePass)
		s.logError("set_render_target", err)
		return err
	}
	s.currentPass.Framebuffer = fb
	return nil
}

// SetMatrix writes the Model, View or Projection matrix of the current
// batch. View and Projection also update the owning pass's cached copy.
func (s *Service) SetMatrix(kind frame.MatrixKind, m gpuapi.Mat4) error {
	if !s.batchActive {
		err := fmt.Errorf("%w: set_matrix with no active batch", corerr.ErrNoActiveBatch)
		s.logError("set_matrix", err)
		return err
	}
	switch kind {
	case frame.Model:
		s.currentBatch.Matrices.Model = m
	case frame.View:
		s.currentBatch.Matrices.View = m
		s.currentPass.ViewMat = m
	case frame.Projection:
		s.currentBatch.Matrices.Proj = m
		s.currentPass.ProjMat = m
	}
	s.currentBatch.Dirty |= frame.MatrixBufferDirty
	return nil
}

// SetMatrixNamed adds or updates a uniform-valued matrix by name.
func (s *Service) SetMatrixNamed(name string, m gpuapi.Mat4) error {
	if !s.batchActive {
		err := fmt.Errorf("%w: set_matrix(%q) with no active batch", corerr.ErrNoActiveBatch, name)
		s.logError("set_matrix", err)
		return err
	}
	s.upsertUniform(name, frame.EncodeMat4(m))
	return nil
}

// SetMatrixArray adds or updates a uniform holding n concatenated
// matrices.
func (s *Service) SetMatrixArray(name string, ms []gpuapi.Mat4) error {
	if !s.batchActive {
		err := fmt.Errorf("%w: set_matrix_array(%q) with no active batch", corerr.ErrNoActiveBatch, name)
		s.logError("set_matrix_array", err)
		return err
	}
	value := make([]byte, 0, 64*len(ms))
	for _, m := range ms {
		value = append(value, frame.EncodeMat4(m)...)
	}
	s.upsertUniform(name, value)
	return nil
}

func (s *Service) upsertUniform(name string, value []byte) {
	if idx := s.currentBatch.FindUniformIndex(name); idx >= 0 {
		s.currentBatch.Uniforms[idx].Value = value
	} else {
		s.currentBatch.Uniforms = append(s.currentBatch.Uniforms, frame.UniformVar{Name: name, Value: value})
	}
	s.currentBatch.Dirty |= frame.UniformBufferDirty
}

// AddUniform appends a uniform to the current batch.
func (s *Service) AddUniform(v frame.UniformVar) error {
	if !s.batchActive {
		err := fmt.Errorf("%w: add_uniform(%q) with no active batch", corerr.ErrNoActiveBatch, v.Name)
		s.logError("add_uniform", err)
		return err
	}
	s.currentBatch.Uniforms = append(s.currentBatch.Uniforms, v)
	s.currentBatch.Dirty |= frame.UniformBufferDirty
	return nil
}

// AddMesh appends a single mesh reference to the current batch.
func (s *Service) AddMesh(mesh gpuapi.MeshID, instances int) error {
	if !s.batchActive {
		err := fmt.Errorf("%w: add_mesh(%q) with no active batch", corerr.ErrNoActiveBatch, mesh)
		s.logError("add_mesh", err)
		return err
	}
	s.currentBatch.Meshes = append(s.currentBatch.Meshes, frame.MeshEntry{Mesh: mesh, Instances: instances})
	s.currentBatch.Dirty |= frame.MeshDirty
	return nil
}

// AddMeshes appends an array of mesh references to the current batch, all
// sharing the same instance count. Fails with corerr.ErrEmptyMeshArray and
// makes no state change if meshes is empty.
func (s *Service) AddMeshes(meshes []gpuapi.MeshID, instances int) error {
	if len(meshes) == 0 {
		err := fmt.Errorf("%w: add_mesh called with empty array", corerr.ErrEmptyMeshArray)
		s.logError("add_mesh", err)
		return err
	}
	if !s.batchActive {
		err := fmt.Errorf("%w: add_mesh with no active batch", corerr.ErrNoActiveBatch)
		s.logError("add_mesh", err)
		return err
	}
	for _, mesh := range meshes {
		s.currentBatch.Meshes = append(s.currentBatch.Meshes, frame.MeshEntry{Mesh: mesh, Instances: instances})
	}
	s.currentBatch.Dirty |= frame.MeshDirty
	return nil
}

// UpdateMesh records new vertex-buffer contents for an already-registered
// mesh in the current batch.
func (s *Service) UpdateMesh(mesh gpuapi.MeshID, data []byte) error {
	if !s.batchActive {
		err := fmt.Errorf("%w: update_mesh(%q) with no active batch", corerr.ErrNoActiveBatch, mesh)
		s.logError("update_mesh", err)
		return err
	}
	s.currentBatch.MeshUpdates = append(s.currentBatch.MeshUpdates, frame.MeshUpdate{Mesh: mesh, Data: data})
	s.currentBatch.Dirty |= frame.MeshUpdateDirty
	return nil
}

// RequestNextFrame is the commit barrier: it diffs every batch's dirty
// mask into FrameSubmitCmds, hands the Submit frame to the render thread,
// swaps Submit and Render, requests a render pass, and blocks until the
// worker signals its next empty-queue transition. A persistent
// render-thread error from the prior frame surfaces here as a returned
// error.
func (s *Service) RequestNextFrame() error {
	gen := s.task.UpdateGeneration()

	if s.firstUpdate {
		s.submit.Passes = s.passes
		s.task.SendEvent(renderevent.KindInitPasses, renderevent.InitPassesPayload{Frame: s.submit})
		s.firstUpdate = false
	}

	s.submit.SubmitCmds = nil
	for _, pass := range s.passes {
		for _, batch := range pass.Batches {
			s.emitCmds(pass, batch)
		}
	}
	s.submit.Passes = s.passes

	s.task.SendEvent(renderevent.KindCommitFrame, renderevent.CommitFramePayload{Frame: s.submit})
	s.submit, s.render = s.render, s.submit
	s.task.SendEvent(renderevent.KindRenderFrame, nil)
	s.task.AwaitUpdate(gen)

	if err := s.handler.LastError(); err != nil {
		return err
	}
	return nil
}

// emitCmds walks batch's dirty mask, appends the corresponding
// FrameSubmitCmds to s.submit, and clears each bit atomically with the
// cmd(s) it produced.
func (s *Service) emitCmds(pass *frame.PassData, batch *frame.RenderBatchData) {
	if batch.Dirty&frame.MeshDirty != 0 {
		snap := frame.BatchSnapshot{
			PassID:      pass.ID,
			Framebuffer: pass.Framebuffer,
			ViewMat:     pass.ViewMat,
			ProjMat:     pass.ProjMat,
			Batch:       *batch,
		}
		if payload, err := frame.EncodeBatchSnapshot(snap); err == nil {
			s.submit.SubmitCmds = append(s.submit.SubmitCmds, frame.FrameSubmitCmd{
				PassID:  pass.ID,
				BatchID: batch.ID,
				Flags:   frame.AddRenderData,
				Payload: payload,
			})
		} else if s.logger != nil {
			s.logger.Error(s.domain, "encode batch snapshot failed", "pass", pass.ID, "batch", batch.ID, "error", err)
		}
		batch.Dirty &^= frame.MeshDirty
	}

	if batch.Dirty&frame.MeshUpdateDirty != 0 {
		for _, upd := range batch.MeshUpdates {
			mesh := upd.Mesh
			s.submit.SubmitCmds = append(s.submit.SubmitCmds, frame.FrameSubmitCmd{
				PassID:  pass.ID,
				BatchID: batch.ID,
				MeshID:  &mesh,
				Flags:   frame.UpdateBuffer,
				Payload: upd.Data,
			})
		}
		batch.MeshUpdates = nil
		batch.Dirty &^= frame.MeshUpdateDirty
	}

	if batch.Dirty&frame.MatrixBufferDirty != 0 {
		s.submit.SubmitCmds = append(s.submit.SubmitCmds, frame.FrameSubmitCmd{
			PassID:  pass.ID,
			BatchID: batch.ID,
			Flags:   frame.UpdateMatrices,
			Payload: frame.EncodeMatrices(batch.Matrices),
		})
		batch.Dirty &^= frame.MatrixBufferDirty
	}

	if batch.Dirty&frame.UniformBufferDirty != 0 {
		for _, uv := range batch.Uniforms {
			s.submit.SubmitCmds = append(s.submit.SubmitCmds, frame.FrameSubmitCmd{
				PassID:  pass.ID,
				BatchID: batch.ID,
				Flags:   frame.UpdateUniforms,
				Payload: frame.EncodeUniform(uv.Name, uv.Value),
			})
		}
		batch.Dirty &^= frame.UniformBufferDirty
	}
}

// Resize requests a swap-chain resize for target if resize-on-focus is
// enabled; the render thread applies it only between RenderFrame events.
func (s *Service) Resize(target frame.PassID, x, y, w, h int) {
	if !s.resizeOnFocus {
		return
	}
	s.task.SendEvent(renderevent.KindResize, renderevent.ResizePayload{Target: target, X: x, Y: y, W: w, H: h})
}

// ClearPasses drops all passes, used on scene reload.
func (s *Service) ClearPasses() {
	s.passes = nil
	s.currentPass = nil
	s.passActive = false
	s.currentBatch = nil
	s.batchActive = false
	s.frameA.Reset()
	s.frameB.Reset()
}

func (s *Service) logError(op string, err error) {
	if s.logger != nil {
		s.logger.Error(s.domain, "render-backend building-side error", "op", op, "error", err)
	}
}

// Command pulsedemo wires the core packages together into a minimal,
// runnable application: a window, a wgpu backend, a render SystemTask, and
// a single spinning-triangle scene driven by an app-thread tick loop.
package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/kestrel-engine/pulsecore/adapter/glfwwindow"
	"github.com/kestrel-engine/pulsecore/adapter/wgpuadapter"
	"github.com/kestrel-engine/pulsecore/common"
	"github.com/kestrel-engine/pulsecore/config"
	"github.com/kestrel-engine/pulsecore/event"
	"github.com/kestrel-engine/pulsecore/frame"
	"github.com/kestrel-engine/pulsecore/gpuapi"
	"github.com/kestrel-engine/pulsecore/internal/corelog"
	"github.com/kestrel-engine/pulsecore/iotask"
	"github.com/kestrel-engine/pulsecore/registry"
	"github.com/kestrel-engine/pulsecore/rendercmd"
	"github.com/kestrel-engine/pulsecore/renderevent"
	"github.com/kestrel-engine/pulsecore/renderservice"
	"github.com/kestrel-engine/pulsecore/systask"
)

// toMat4 flattens a column-major []float32 (as produced by the common
// matrix helpers) into gpuapi's fixed-size Mat4.
func toMat4(m []float32) gpuapi.Mat4 {
	var out gpuapi.Mat4
	copy(out[:], m)
	return out
}

// memMeshStore is a minimal in-process gpuapi.MeshStore: the demo registers
// one triangle mesh with a single, full-range primitive group.
type memMeshStore struct {
	meshes map[gpuapi.MeshID]gpuapi.MeshHandles
}

func (m *memMeshStore) Resolve(id gpuapi.MeshID) (gpuapi.MeshHandles, bool) {
	h, ok := m.meshes[id]
	return h, ok
}

func main() {
	logger := corelog.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stdout, nil)), nil)

	settings := config.Default()

	win, err := glfwwindow.New(settings.WindowsTitle, settings.WinWidth, settings.WinHeight)
	if err != nil {
		logger.Fatal("pulsedemo", "failed to create window", "error", err)
		return
	}
	defer win.Close()

	backend := wgpuadapter.New()
	meshStore := &memMeshStore{meshes: map[gpuapi.MeshID]gpuapi.MeshHandles{
		"triangle": {PrimGroups: []gpuapi.PrimitiveGroup{{StartIndex: 0, NumIndices: 3, Instances: 1}}},
	}}

	reg := registry.Create()
	defer registry.Destroy()

	cmdBuf := rendercmd.New(backend, meshStore, logger, "render")
	handler := renderevent.New(cmdBuf, logger, "render")

	renderTask := systask.New("render", logger, "render")
	renderTask.AttachHandler(handler)
	if err := renderTask.Start(); err != nil {
		logger.Fatal("pulsedemo", "failed to start render task", "error", err)
		return
	}
	defer renderTask.Stop()

	svc := renderservice.New(renderTask, handler, logger, "render", renderservice.WithResizeOnFocus(true))
	reg.SetService(registry.Render, svc)

	loader := iotask.New(4, 64, 2*time.Second, logger, "io")
	reg.SetService(registry.IO, loader)

	createGen := renderTask.UpdateGeneration()
	renderTask.SendEvent(renderevent.KindCreateRenderer, renderevent.CreateRendererPayload{Window: win})
	renderTask.AwaitUpdate(createGen)

	win.SetResizeCallback(func(width, height int) {
		svc.Resize("main", 0, 0, width, height)
	})

	view := make([]float32, 16)
	common.LookAt(view, 0, 0, 3, 0, 0, 0, 0, 1, 0)

	proj := make([]float32, 16)
	aspect := float32(settings.WinWidth) / float32(settings.WinHeight)
	common.Perspective(proj, 1.0, aspect, 0.1, 100.0)

	model := make([]float32, 16)
	start := time.Now()

	for win.IsRunning() {
		win.PollEvents()

		angle := float32(time.Since(start).Seconds())
		common.BuildModelMatrix(model, 0, 0, 0, 0, angle, 0, 1, 1, 1)

		if _, err := svc.BeginPass("main"); err != nil {
			logger.Error("pulsedemo", "begin_pass failed", "error", err)
			continue
		}
		if _, err := svc.BeginRenderBatch("triangle-batch"); err != nil {
			logger.Error("pulsedemo", "begin_render_batch failed", "error", err)
			continue
		}
		_ = svc.SetMatrix(frame.Model, toMat4(model))
		_ = svc.SetMatrix(frame.View, toMat4(view))
		_ = svc.SetMatrix(frame.Projection, toMat4(proj))
		_ = svc.AddMesh("triangle", 1)
		_ = svc.EndRenderBatch()
		_ = svc.EndPass()

		if err := svc.RequestNextFrame(); err != nil {
			logger.Warn("pulsedemo", "frame failed", "error", err)
		}

		time.Sleep(16 * time.Millisecond)
	}

	renderTask.SendEvent(renderevent.KindShutdownRequest, nil)
	renderTask.SendEvent(event.KindStopTask, nil)
}

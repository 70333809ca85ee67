// Package wgpuadapter adapts cogentcore/webgpu to the core's
// gpuapi.GpuBackend surface. It is an adapter, not core: only cmd/pulsedemo
// and other application entry points import this package.
package wgpuadapter

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/kestrel-engine/pulsecore/gpuapi"
)

// surfaceDescriptorProvider is implemented by concrete gpuapi.Window
// adapters (e.g. glfwwindow.Window) that can hand back a platform-specific
// wgpu.SurfaceDescriptor. The core's own Window interface says nothing
// about it, since surface creation is explicitly out of the core's scope.
type surfaceDescriptorProvider interface {
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
}

// Backend implements gpuapi.GpuBackend over a single wgpu device/queue
// pair bound to one surface.
type Backend struct {
	mu sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface
	format   wgpu.TextureFormat

	vertexBuffers map[gpuapi.MeshID]*wgpu.Buffer

	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameTexture *wgpu.Texture
	frameView    *wgpu.TextureView
}

// New returns an unbound Backend; call CreateContext before any other
// method.
func New() *Backend {
	return &Backend{vertexBuffers: make(map[gpuapi.MeshID]*wgpu.Buffer)}
}

// CreateContext establishes the wgpu instance, surface, adapter and device
// bound to w, and configures the surface at w's current size.
func (b *Backend) CreateContext(w gpuapi.Window) error {
	provider, ok := w.(surfaceDescriptorProvider)
	if !ok {
		return fmt.Errorf("window %T does not support wgpu surface descriptors", w)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.instance = wgpu.CreateInstance(nil)
	b.surface = b.instance.CreateSurface(provider.SurfaceDescriptor())

	adapter, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: b.surface,
	})
	if err != nil {
		return fmt.Errorf("request wgpu adapter: %w", err)
	}
	b.adapter = adapter

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{Label: "pulsecore device"})
	if err != nil {
		return fmt.Errorf("request wgpu device: %w", err)
	}
	b.device = device
	b.queue = device.GetQueue()

	caps := b.surface.GetCapabilities(b.adapter)
	b.format = caps.Formats[0]

	_, _, width, height := w.Rect()
	if width <= 0 {
		width = 1
	}
	if height <= 0 {
		height = 1
	}
	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.format,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeImmediate,
		AlphaMode:   caps.AlphaModes[0],
	})
	return nil
}

// UploadVertexBuffer creates (or recreates) the GPU buffer mirroring id
// and uploads data into it.
func (b *Backend) UploadVertexBuffer(id gpuapi.MeshID, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if old, ok := b.vertexBuffers[id]; ok {
		old.Release()
	}
	buf, err := b.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    string(id),
		Contents: data,
		Usage:    wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("upload vertex buffer %s: %w", id, err)
	}
	b.vertexBuffers[id] = buf
	return nil
}

// Clear begins a frame: acquires the swap-chain texture and opens a render
// pass cleared to state.Color if requested.
func (b *Backend) Clear(state gpuapi.ClearState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return
	}
	b.frameTexture = surfaceTexture.Texture
	view, err := b.frameTexture.CreateView(nil)
	if err != nil {
		return
	}
	b.frameView = view

	loadOp := wgpu.LoadOpLoad
	if state.ClearColor {
		loadOp = wgpu.LoadOpClear
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return
	}
	b.frameEncoder = encoder

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    b.frameView,
			LoadOp:  loadOp,
			StoreOp: wgpu.StoreOpStore,
			ClearValue: wgpu.Color{
				R: float64(state.Color[0]),
				G: float64(state.Color[1]),
				B: float64(state.Color[2]),
				A: float64(state.Color[3]),
			},
		}},
	})
	b.framePass = pass
}

// SetViewport sets the active render pass's viewport.
func (b *Backend) SetViewport(r gpuapi.Rect) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.framePass == nil {
		return
	}
	b.framePass.SetViewport(float32(r.X), float32(r.Y), float32(r.W), float32(r.H), 0, 1)
}

// Draw issues one draw call for group against the currently open render
// pass.
func (b *Backend) Draw(group gpuapi.PrimitiveGroup) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.framePass == nil {
		return
	}
	instances := uint32(group.Instances)
	if instances == 0 {
		instances = 1
	}
	b.framePass.Draw(uint32(group.NumIndices), instances, uint32(group.StartIndex), 0)
}

// CompileShader compiles a WGSL shader module from source, reporting any
// compilation error. The module is released immediately after compiling;
// the returned handle is the source length and does not refer to a live
// module.
func (b *Backend) CompileShader(src string) (gpuapi.ShaderHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "pulsecore shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src},
	})
	if err != nil {
		return 0, fmt.Errorf("compile shader: %w", err)
	}
	module.Release()
	return gpuapi.ShaderHandle(len(src)), nil
}

// Present ends the open render pass, submits the command buffer and
// presents the swap-chain texture.
func (b *Backend) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.framePass == nil || b.frameEncoder == nil {
		return
	}
	b.framePass.End()
	cmdBuf, err := b.frameEncoder.Finish(nil)
	if err == nil {
		b.queue.Submit(cmdBuf)
		b.surface.Present()
	}
	b.framePass = nil
	b.frameEncoder = nil
	b.frameView = nil
	b.frameTexture = nil
}

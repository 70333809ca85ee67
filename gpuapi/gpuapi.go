// Package gpuapi declares the narrow external-collaborator surface the core
// depends on: Window, GpuBackend, MeshStore, plus the small value types
// those interfaces are expressed in. Concrete implementations live in
// adapter/glfwwindow and adapter/wgpuadapter; the core packages (frame,
// renderservice, rendercmd, renderevent) import only this package, never an
// adapter.
package gpuapi

// Mat4 is a column-major 4x4 matrix of 32-bit floats, the wire shape
// RenderCommandBuffer copies into GPU uniform blocks. Full matrix math is
// out of scope for the core; callers construct values with whatever math
// library the application uses and hand over the raw 16 floats.
type Mat4 [16]float32

// MeshID identifies a mesh both in application-side batch state and in the
// render thread's GPU mirror table.
type MeshID string

// ShaderHandle identifies a compiled, linked shader program in the GPU
// backend's own namespace.
type ShaderHandle uint64

// Rect is a pixel-space rectangle, used for viewports and window bounds.
type Rect struct {
	X, Y, W, H int
}

// ClearState describes the clear performed at the start of RenderFrame.
type ClearState struct {
	Color      [4]float32
	ClearColor bool
	ClearDepth bool
}

// PrimitiveGroup is one instanced or non-instanced draw call's worth of
// index range within a mesh's buffers.
type PrimitiveGroup struct {
	StartIndex int
	NumIndices int
	Instances  int
}

// MeshHandles is what a MeshStore resolves a MeshID to: the render-thread
// buffer handles and the primitive groups drawn from them.
type MeshHandles struct {
	VertexBufferHandle uint64
	IndexBufferHandle  uint64
	PrimGroups         []PrimitiveGroup
}

// Window is the platform windowing surface the core reads from on
// CreateRenderer and writes to on resize.
type Window interface {
	// Rect returns the current window bounds in pixels.
	Rect() (x, y, w, h int)
	// SetTitle changes the window's title bar text.
	SetTitle(title string)
	// Resize requests a new window position and size.
	Resize(x, y, w, h int)
}

// GpuBackend is the only GPU-facing surface the core depends on.
// CreateContext, CompileShader and the upload/draw calls are all the core
// needs to drive any GPU API.
type GpuBackend interface {
	CreateContext(w Window) error
	Present()
	UploadVertexBuffer(id MeshID, data []byte) error
	Draw(group PrimitiveGroup)
	Clear(state ClearState)
	SetViewport(r Rect)
	CompileShader(src string) (ShaderHandle, error)
}

// MeshStore resolves a stable MeshID to the render thread's buffer handles
// and primitive groups.
type MeshStore interface {
	Resolve(id MeshID) (MeshHandles, bool)
}

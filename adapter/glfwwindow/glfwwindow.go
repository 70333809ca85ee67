// Package glfwwindow adapts a go-gl/glfw window to the core's gpuapi.Window
// surface. It is an adapter, not core: only cmd/pulsedemo and other
// application entry points import this package.
package glfwwindow

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/kestrel-engine/pulsecore/gpuapi"
)

// Window wraps a *glfw.Window, tracking position/size locally since GLFW
// itself only reports size changes via callback.
type Window struct {
	win      *glfw.Window
	x, y     int
	w, h     int
	title    string
	running  bool
	onResize func(width, height int)
}

var _ gpuapi.Window = (*Window)(nil)

// New creates a GLFW window sized w x h titled title. Must be called from
// the goroutine that will subsequently call PollEvents, per GLFW's
// single-threaded requirement.
func New(title string, w, h int) (*Window, error) {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("initialize GLFW: %w", err)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	win, err := glfw.CreateWindow(w, h, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("create GLFW window: %w", err)
	}

	adapter := &Window{win: win, w: w, h: h, title: title, running: true}

	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		adapter.w = width
		adapter.h = height
		if adapter.onResize != nil {
			adapter.onResize(width, height)
		}
	})
	win.SetPosCallback(func(_ *glfw.Window, x, y int) {
		adapter.x = x
		adapter.y = y
	})

	fbWidth, fbHeight := win.GetFramebufferSize()
	adapter.w, adapter.h = fbWidth, fbHeight

	return adapter, nil
}

// Rect returns the current window bounds in pixels.
func (a *Window) Rect() (x, y, w, h int) {
	return a.x, a.y, a.w, a.h
}

// SetTitle changes the window's title bar text.
func (a *Window) SetTitle(title string) {
	a.title = title
	a.win.SetTitle(title)
}

// Resize moves and resizes the underlying GLFW window.
func (a *Window) Resize(x, y, w, h int) {
	a.x, a.y, a.w, a.h = x, y, w, h
	a.win.SetPos(x, y)
	a.win.SetSize(w, h)
}

// SetResizeCallback sets the function called when the framebuffer size
// changes.
func (a *Window) SetResizeCallback(callback func(width, height int)) {
	a.onResize = callback
}

// IsRunning reports whether the window is still open.
func (a *Window) IsRunning() bool {
	return a.running && !a.win.ShouldClose()
}

// PollEvents polls GLFW for pending input and window events without
// blocking. Must be called from the same goroutine as New.
func (a *Window) PollEvents() {
	glfw.PollEvents()
	if a.win.ShouldClose() {
		a.running = false
	}
}

// Close destroys the underlying GLFW window and terminates GLFW.
func (a *Window) Close() error {
	a.running = false
	a.win.Destroy()
	glfw.Terminate()
	return nil
}

// GLFWWindow exposes the underlying *glfw.Window for adapters (such as
// wgpuadapter) that need the raw handle to build a surface descriptor.
func (a *Window) GLFWWindow() *glfw.Window {
	return a.win
}

// SurfaceDescriptor builds a platform-appropriate wgpu.SurfaceDescriptor
// from the underlying GLFW window via the wgpuglfw bridge. wgpuadapter
// type-asserts for this method since gpuapi.Window's narrow surface
// deliberately says nothing about any one GPU API.
func (a *Window) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return wgpuglfw.GetSurfaceDescriptor(a.win)
}

// Package corerr defines the sentinel error kinds shared across the core
// packages. Call sites wrap a sentinel with fmt.Errorf("%w: ...", sentinel)
// and callers branch on kind with errors.Is.
package corerr

import "errors"

var (
	// ErrAlreadyRunning is returned when starting a SystemTask that has
	// already been started.
	ErrAlreadyRunning = errors.New("already running")

	// ErrNotRunning is returned when an operation requires a running task.
	ErrNotRunning = errors.New("not running")

	// ErrNoActiveBatch is returned by render-batch mutators called without a
	// preceding BeginRenderBatch.
	ErrNoActiveBatch = errors.New("no active batch")

	// ErrNoActivePass is returned by pass-scoped calls made without a
	// preceding BeginPass, or when EndPass/BeginRenderBatch is called
	// without one.
	ErrNoActivePass = errors.New("no active pass")

	// ErrPassAlreadyActive is returned by BeginPass when a pass recording is
	// already in progress and EndPass was not called.
	ErrPassAlreadyActive = errors.New("pass already active")

	// ErrEmptyMeshArray is returned by AddMeshes when given an empty slice.
	ErrEmptyMeshArray = errors.New("empty mesh array")

	// ErrMeshNotFound is returned when a render command references a mesh
	// that has no GPU mirror.
	ErrMeshNotFound = errors.New("mesh not found")

	// ErrQueueClosed is returned by Enqueue after the queue has been
	// cancelled.
	ErrQueueClosed = errors.New("queue closed")

	// ErrContextCreationFailed is returned when the GPU backend fails to
	// create a rendering context for a surface.
	ErrContextCreationFailed = errors.New("context creation failed")

	// ErrShaderLinkFailed is returned when a backend shader fails to link.
	ErrShaderLinkFailed = errors.New("shader link failed")

	// ErrInvalidHandle is returned when a stable id does not resolve to a
	// live GPU mirror.
	ErrInvalidHandle = errors.New("invalid handle")

	// ErrServiceMissing is returned by registry lookups against an unset
	// slot, where the caller requires presence.
	ErrServiceMissing = errors.New("service missing")
)

package renderservice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-engine/pulsecore/frame"
	"github.com/kestrel-engine/pulsecore/gpuapi"
	"github.com/kestrel-engine/pulsecore/rendercmd"
	"github.com/kestrel-engine/pulsecore/renderevent"
	"github.com/kestrel-engine/pulsecore/systask"
)

type fakeWindow struct{ w, h int }

func (w *fakeWindow) Rect() (int, int, int, int) { return 0, 0, w.w, w.h }
func (w *fakeWindow) SetTitle(string)             {}
func (w *fakeWindow) Resize(int, int, int, int)   {}

type fakeBackend struct {
	draws     []gpuapi.PrimitiveGroup
	clears    int
	presents  int
	uploads   [][]byte
}

func (b *fakeBackend) CreateContext(gpuapi.Window) error { return nil }
func (b *fakeBackend) Present()                          { b.presents++ }
func (b *fakeBackend) UploadVertexBuffer(gpuapi.MeshID, data []byte) error {
	b.uploads = append(b.uploads, data)
	return nil
}
func (b *fakeBackend) Draw(g gpuapi.PrimitiveGroup) { b.draws = append(b.draws, g) }
func (b *fakeBackend) Clear(gpuapi.ClearState)      { b.clears++ }
func (b *fakeBackend) SetViewport(gpuapi.Rect)      {}
func (b *fakeBackend) CompileShader(string) (gpuapi.ShaderHandle, error) {
	return 1, nil
}

type fakeMeshStore struct {
	meshes map[gpuapi.MeshID]gpuapi.MeshHandles
}

func (m *fakeMeshStore) Resolve(id gpuapi.MeshID) (gpuapi.MeshHandles, bool) {
	h, ok := m.meshes[id]
	return h, ok
}

func newTestService(t *testing.T) (*Service, *systask.SystemTask, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{}
	store := &fakeMeshStore{meshes: map[gpuapi.MeshID]gpuapi.MeshHandles{
		"tri": {PrimGroups: []gpuapi.PrimitiveGroup{{NumIndices: 3, Instances: 1}}},
	}}
	cmdBuf := rendercmd.New(backend, store, nil, "test")
	handler := renderevent.New(cmdBuf, nil, "test")

	task := systask.New("render", nil, "test")
	task.AttachHandler(handler)
	require.NoError(t, task.Start())
	t.Cleanup(task.Stop)

	gen := task.UpdateGeneration()
	task.SendEvent(renderevent.KindCreateRenderer, renderevent.CreateRendererPayload{Window: &fakeWindow{w: 100, h: 100}})
	task.AwaitUpdate(gen)

	svc := New(task, handler, nil, "test")
	return svc, task, backend
}

func TestBeginPassIdempotentAcrossFrames(t *testing.T) {
	svc, _, _ := newTestService(t)

	p1, err := svc.BeginPass("main")
	require.NoError(t, err)
	require.NoError(t, svc.EndPass())
	require.NoError(t, svc.RequestNextFrame())

	p2, err := svc.BeginPass("main")
	require.NoError(t, err)
	assert.Same(t, p1, p2)
	require.NoError(t, svc.EndPass())
}

func TestBeginPassTwiceWithoutEndFails(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.BeginPass("main")
	require.NoError(t, err)

	_, err = svc.BeginPass("other")
	assert.Error(t, err)
	require.NoError(t, svc.EndPass())
}

func TestSetMatrixWithoutActiveBatchFails(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := svc.SetMatrix(frame.Model, gpuapi.Mat4{})
	assert.Error(t, err)
}

func TestAddMeshesRejectsEmptyArray(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.BeginPass("main")
	require.NoError(t, err)
	_, err = svc.BeginRenderBatch("b1")
	require.NoError(t, err)

	err = svc.AddMeshes(nil, 1)
	assert.Error(t, err)
}

func TestRequestNextFrameDrawsCommittedBatch(t *testing.T) {
	svc, _, backend := newTestService(t)

	_, err := svc.BeginPass("main")
	require.NoError(t, err)
	_, err = svc.BeginRenderBatch("triangle-batch")
	require.NoError(t, err)

	require.NoError(t, svc.SetMatrix(frame.Model, gpuapi.Mat4{1}))
	require.NoError(t, svc.SetMatrix(frame.View, gpuapi.Mat4{2}))
	require.NoError(t, svc.SetMatrix(frame.Projection, gpuapi.Mat4{3}))
	require.NoError(t, svc.AddMesh("tri", 1))
	require.NoError(t, svc.EndRenderBatch())
	require.NoError(t, svc.EndPass())

	require.NoError(t, svc.RequestNextFrame())

	assert.Equal(t, 1, backend.clears)
	assert.Equal(t, 1, backend.presents)
	require.Len(t, backend.draws, 1)
}

func TestSetMatrixDirtyMaskClearedAfterCommit(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.BeginPass("main")
	require.NoError(t, err)
	batch, err := svc.BeginRenderBatch("b1")
	require.NoError(t, err)

	require.NoError(t, svc.SetMatrix(frame.Model, gpuapi.Mat4{1}))
	assert.NotZero(t, batch.Dirty&frame.MatrixBufferDirty)
	require.NoError(t, svc.EndRenderBatch())
	require.NoError(t, svc.EndPass())

	require.NoError(t, svc.RequestNextFrame())
	assert.Zero(t, batch.Dirty&frame.MatrixBufferDirty)
}

func TestRepeatedSetMatrixEmitsSingleUpdateMatricesCmd(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.BeginPass("main")
	require.NoError(t, err)
	_, err = svc.BeginRenderBatch("b1")
	require.NoError(t, err)

	require.NoError(t, svc.SetMatrix(frame.Model, gpuapi.Mat4{1}))
	require.NoError(t, svc.SetMatrix(frame.Model, gpuapi.Mat4{2}))
	require.NoError(t, svc.SetMatrix(frame.Model, gpuapi.Mat4{3}))
	require.NoError(t, svc.EndRenderBatch())
	require.NoError(t, svc.EndPass())

	require.NoError(t, svc.RequestNextFrame())

	count := 0
	for _, cmd := range svc.render.SubmitCmds {
		if cmd.Flags == frame.UpdateMatrices {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestEmptyFrameStillClearsAndPresents(t *testing.T) {
	svc, _, backend := newTestService(t)

	require.NoError(t, svc.RequestNextFrame())

	assert.Equal(t, 1, backend.clears)
	assert.Equal(t, 1, backend.presents)
	assert.Empty(t, backend.draws)
}

func TestClearPassesDropsRecordingState(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.BeginPass("main")
	require.NoError(t, err)
	require.NoError(t, svc.EndPass())

	svc.ClearPasses()
	assert.Empty(t, svc.passes)

	_, err = svc.BeginPass("main")
	require.NoError(t, err)
	require.NoError(t, svc.EndPass())
}

package rendercmd

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-engine/pulsecore/frame"
	"github.com/kestrel-engine/pulsecore/gpuapi"
)

type fakeWindow struct {
	x, y, w, h int
}

func (w *fakeWindow) Rect() (int, int, int, int) { return w.x, w.y, w.w, w.h }
func (w *fakeWindow) SetTitle(string)             {}
func (w *fakeWindow) Resize(x, y, w2, h int)      { w.x, w.y, w.w, w.h = x, y, w2, h }

type fakeBackend struct {
	failContext    bool
	failShader     bool
	draws          []gpuapi.PrimitiveGroup
	clears         int
	presents       int
	uploaded       map[gpuapi.MeshID][]byte
	viewports      []gpuapi.Rect
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{uploaded: make(map[gpuapi.MeshID][]byte)}
}

func (b *fakeBackend) CreateContext(gpuapi.Window) error {
	if b.failContext {
		return errors.New("boom")
	}
	return nil
}
func (b *fakeBackend) Present()                   { b.presents++ }
func (b *fakeBackend) UploadVertexBuffer(id gpuapi.MeshID, data []byte) error {
	b.uploaded[id] = data
	return nil
}
func (b *fakeBackend) Draw(g gpuapi.PrimitiveGroup) { b.draws = append(b.draws, g) }
func (b *fakeBackend) Clear(gpuapi.ClearState)       { b.clears++ }
func (b *fakeBackend) SetViewport(r gpuapi.Rect)     { b.viewports = append(b.viewports, r) }
func (b *fakeBackend) CompileShader(string) (gpuapi.ShaderHandle, error) {
	if b.failShader {
		return 0, errors.New("link failed")
	}
	return 1, nil
}

type fakeMeshStore struct {
	meshes map[gpuapi.MeshID]gpuapi.MeshHandles
}

func (m *fakeMeshStore) Resolve(id gpuapi.MeshID) (gpuapi.MeshHandles, bool) {
	h, ok := m.meshes[id]
	return h, ok
}

func TestCreateRendererSucceeds(t *testing.T) {
	backend := newFakeBackend()
	store := &fakeMeshStore{meshes: map[gpuapi.MeshID]gpuapi.MeshHandles{}}
	c := New(backend, store, nil, "test")
	c.Attach()

	err := c.CreateRenderer(&fakeWindow{w: 800, h: 600})
	require.NoError(t, err)
	assert.False(t, c.Disabled())
}

func TestCreateRendererContextFailureDisables(t *testing.T) {
	backend := newFakeBackend()
	backend.failContext = true
	store := &fakeMeshStore{}
	c := New(backend, store, nil, "test")

	err := c.CreateRenderer(&fakeWindow{})
	assert.Error(t, err)
	assert.True(t, c.Disabled())
}

func TestCreateRendererShaderFailureDisables(t *testing.T) {
	backend := newFakeBackend()
	backend.failShader = true
	store := &fakeMeshStore{}
	c := New(backend, store, nil, "test")

	err := c.CreateRenderer(&fakeWindow{})
	assert.Error(t, err)
	assert.True(t, c.Disabled())
}

func TestCommitFrameAndRenderFrameDrawsWithBatchInstanceCount(t *testing.T) {
	backend := newFakeBackend()
	store := &fakeMeshStore{meshes: map[gpuapi.MeshID]gpuapi.MeshHandles{
		"tri": {PrimGroups: []gpuapi.PrimitiveGroup{{NumIndices: 3, Instances: 1}}},
	}}
	c := New(backend, store, nil, "test")
	c.Attach()
	require.NoError(t, c.CreateRenderer(&fakeWindow{w: 1, h: 1}))

	batch := frame.RenderBatchData{
		ID:     "batch-1",
		Meshes: []frame.MeshEntry{{Mesh: "tri", Instances: 2}},
	}
	snap := frame.BatchSnapshot{PassID: "main", Batch: batch}
	payload, err := frame.EncodeBatchSnapshot(snap)
	require.NoError(t, err)

	f := frame.New()
	f.Passes = []*frame.PassData{{ID: "main", Batches: []*frame.RenderBatchData{&batch}}}
	f.SubmitCmds = []frame.FrameSubmitCmd{
		{PassID: "main", BatchID: "batch-1", Flags: frame.AddRenderData, Payload: payload},
	}

	c.InitPasses(f)
	require.NoError(t, c.CommitFrame(f))
	require.NoError(t, c.RenderFrame())

	assert.Equal(t, 1, backend.clears)
	assert.Equal(t, 1, backend.presents)
	require.Len(t, backend.draws, 1)
	assert.Equal(t, 2, backend.draws[0].Instances)
}

func TestRenderFrameSeedsViewportFromCreateRendererBeforeAnyResize(t *testing.T) {
	backend := newFakeBackend()
	store := &fakeMeshStore{meshes: map[gpuapi.MeshID]gpuapi.MeshHandles{}}
	c := New(backend, store, nil, "test")
	c.Attach()
	require.NoError(t, c.CreateRenderer(&fakeWindow{w: 800, h: 600}))

	f := frame.New()
	f.Passes = []*frame.PassData{{ID: "main"}}
	c.InitPasses(f)
	require.NoError(t, c.CommitFrame(f))
	require.NoError(t, c.RenderFrame())

	require.NotEmpty(t, backend.viewports)
	assert.Equal(t, gpuapi.Rect{X: 0, Y: 0, W: 800, H: 600}, backend.viewports[len(backend.viewports)-1])
}

func TestCommitFrameUnknownMeshFails(t *testing.T) {
	backend := newFakeBackend()
	store := &fakeMeshStore{meshes: map[gpuapi.MeshID]gpuapi.MeshHandles{}}
	c := New(backend, store, nil, "test")
	c.Attach()
	require.NoError(t, c.CreateRenderer(&fakeWindow{w: 1, h: 1}))

	batch := frame.RenderBatchData{ID: "batch-1", Meshes: []frame.MeshEntry{{Mesh: "missing"}}}
	snap := frame.BatchSnapshot{PassID: "main", Batch: batch}
	payload, err := frame.EncodeBatchSnapshot(snap)
	require.NoError(t, err)

	f := frame.New()
	f.SubmitCmds = []frame.FrameSubmitCmd{{PassID: "main", BatchID: "batch-1", Flags: frame.AddRenderData, Payload: payload}}

	err = c.CommitFrame(f)
	assert.Error(t, err)
}

func TestEmptyFrameClearsAndPresentsWithNoDraws(t *testing.T) {
	backend := newFakeBackend()
	store := &fakeMeshStore{}
	c := New(backend, store, nil, "test")
	c.Attach()
	require.NoError(t, c.CreateRenderer(&fakeWindow{w: 1, h: 1}))

	f := frame.New()
	require.NoError(t, c.CommitFrame(f))
	require.NoError(t, c.RenderFrame())

	assert.Equal(t, 1, backend.clears)
	assert.Equal(t, 1, backend.presents)
	assert.Empty(t, backend.draws)
}

func TestShutdownDisablesFurtherCommits(t *testing.T) {
	backend := newFakeBackend()
	store := &fakeMeshStore{}
	c := New(backend, store, nil, "test")
	c.Shutdown()
	assert.True(t, c.Disabled())

	f := frame.New()
	assert.NoError(t, c.CommitFrame(f))
}

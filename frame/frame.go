// Package frame defines Frame, the double-buffered, linearised description
// of one render frame, and the diffed FrameSubmitCmd stream the render
// thread actually consumes.
package frame

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"math"

	"github.com/kestrel-engine/pulsecore/gpuapi"
)

// PassID identifies a Pass within a Frame.
type PassID string

// BatchID identifies a RenderBatch within a Pass.
type BatchID string

// MatrixKind selects which matrix a SetMatrix call targets.
type MatrixKind int

const (
	Model MatrixKind = iota
	View
	Projection
)

// DirtyBit is one bit of a batch's dirty mask.
type DirtyBit uint8

const (
	MatrixBufferDirty DirtyBit = 1 << iota
	UniformBufferDirty
	MeshDirty
	MeshUpdateDirty
)

// CmdFlag is the kind of a FrameSubmitCmd; a cmd carries exactly one.
type CmdFlag int

const (
	AddRenderData CmdFlag = iota
	UpdateBuffer
	UpdateMatrices
	UpdateUniforms
)

func (f CmdFlag) String() string {
	switch f {
	case AddRenderData:
		return "AddRenderData"
	case UpdateBuffer:
		return "UpdateBuffer"
	case UpdateMatrices:
		return "UpdateMatrices"
	case UpdateUniforms:
		return "UpdateUniforms"
	default:
		return "Unknown"
	}
}

// MatrixBuffer holds the three matrices a batch carries.
type MatrixBuffer struct {
	Model gpuapi.Mat4
	View  gpuapi.Mat4
	Proj  gpuapi.Mat4
}

// UniformVar is one named uniform value recorded on a batch.
type UniformVar struct {
	Name  string
	Value []byte
}

// MeshEntry is one mesh reference drawn by a batch, with its instance
// count.
type MeshEntry struct {
	Mesh      gpuapi.MeshID
	Instances int
}

// MeshUpdate is a pending vertex-buffer upload for an already-registered
// mesh.
type MeshUpdate struct {
	Mesh gpuapi.MeshID
	Data []byte
}

// RenderBatchData is a shader- and material-scoped group of meshes drawn
// together within a Pass.
type RenderBatchData struct {
	ID          BatchID
	Matrices    MatrixBuffer
	Uniforms    []UniformVar
	Meshes      []MeshEntry
	MeshUpdates []MeshUpdate
	Dirty       DirtyBit
}

// FindUniformIndex returns the slice index of the uniform named name, or -1.
func (b *RenderBatchData) FindUniformIndex(name string) int {
	for i := range b.Uniforms {
		if b.Uniforms[i].Name == name {
			return i
		}
	}
	return -1
}

// PassData is a framebuffer-scoped group of batches sharing a view and
// projection matrix.
type PassData struct {
	ID          PassID
	Framebuffer *uint64
	ViewMat     gpuapi.Mat4
	ProjMat     gpuapi.Mat4
	CullEnabled bool
	Batches     []*RenderBatchData
}

// FindBatch returns the batch with the given id, if present.
func (p *PassData) FindBatch(id BatchID) (*RenderBatchData, bool) {
	for _, b := range p.Batches {
		if b.ID == id {
			return b, true
		}
	}
	return nil, false
}

// FrameSubmitCmd is the diffed, flattened form consumed by the render
// thread: one mutation to apply to one batch's GPU mirror.
type FrameSubmitCmd struct {
	PassID  PassID
	BatchID BatchID
	MeshID  *gpuapi.MeshID
	Flags   CmdFlag
	Payload []byte
}

// uniformEntry is one append-only write recorded in a UniformBuffer.
type uniformEntry struct {
	name  string
	value []byte
}

// UniformBuffer is a write-append log of named uniform values for one
// pass. Later writes of the same name supersede earlier ones at read time;
// storage itself is never mutated in place.
type UniformBuffer struct {
	entries []uniformEntry
}

// Write appends v to the log.
func (u *UniformBuffer) Write(v UniformVar) {
	u.entries = append(u.entries, uniformEntry{name: v.Name, value: v.Value})
}

// Read returns the most recently written value for name, if any.
func (u *UniformBuffer) Read(name string) ([]byte, bool) {
	for i := len(u.entries) - 1; i >= 0; i-- {
		if u.entries[i].name == name {
			return u.entries[i].value, true
		}
	}
	return nil, false
}

// BatchSnapshot is the serialised form of AddRenderData's payload: enough
// of the owning pass plus a deep copy of the affected batch for the render
// thread to create GPU mirrors from, without sharing memory with the
// application thread.
type BatchSnapshot struct {
	PassID      PassID
	Framebuffer *uint64
	ViewMat     gpuapi.Mat4
	ProjMat     gpuapi.Mat4
	Batch       RenderBatchData
}

func init() {
	gob.Register(BatchSnapshot{})
}

// Frame is a snapshot of what to draw: an ordered set of Passes, one
// UniformBuffer per pass, and the diffed command stream produced by the
// most recent commit.
type Frame struct {
	Passes         []*PassData
	UniformBuffers map[PassID]*UniformBuffer
	SubmitCmds     []FrameSubmitCmd
}

// New returns an empty Frame.
func New() *Frame {
	return &Frame{UniformBuffers: make(map[PassID]*UniformBuffer)}
}

// FindPass returns the pass with the given id, if present.
func (f *Frame) FindPass(id PassID) (*PassData, bool) {
	for _, p := range f.Passes {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// UniformBufferFor returns (creating if necessary) the per-pass uniform
// log.
func (f *Frame) UniformBufferFor(id PassID) *UniformBuffer {
	ub, ok := f.UniformBuffers[id]
	if !ok {
		ub = &UniformBuffer{}
		f.UniformBuffers[id] = ub
	}
	return ub
}

// Reset drops all passes, uniform buffers and pending submit cmds, used by
// ClearPasses on scene reload.
func (f *Frame) Reset() {
	f.Passes = nil
	f.UniformBuffers = make(map[PassID]*UniformBuffer)
	f.SubmitCmds = nil
}

// EncodeMatrices serialises the 3-matrix block (model, view, proj) into
// the 192-byte payload shape UpdateMatrices expects.
func EncodeMatrices(m MatrixBuffer) []byte {
	buf := make([]byte, 0, 192)
	for _, mat := range [...]gpuapi.Mat4{m.Model, m.View, m.Proj} {
		for _, f := range mat {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		}
	}
	return buf
}

// DecodeMatrices is the inverse of EncodeMatrices.
func DecodeMatrices(payload []byte) (MatrixBuffer, error) {
	if len(payload) != 192 {
		return MatrixBuffer{}, fmt.Errorf("matrix payload must be 192 bytes, got %d", len(payload))
	}
	var out [3]gpuapi.Mat4
	for m := 0; m < 3; m++ {
		for i := 0; i < 16; i++ {
			off := m*64 + i*4
			out[m][i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[off : off+4]))
		}
	}
	return MatrixBuffer{Model: out[0], View: out[1], Proj: out[2]}, nil
}

// EncodeMat4 serialises a single matrix to 64 bytes, used when a matrix is
// supplied as a named uniform rather than the model/view/proj kind.
func EncodeMat4(m gpuapi.Mat4) []byte {
	buf := make([]byte, 0, 64)
	for _, f := range m {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	return buf
}

// DecodeMat4 is the inverse of EncodeMat4.
func DecodeMat4(payload []byte) (gpuapi.Mat4, error) {
	if len(payload) != 64 {
		return gpuapi.Mat4{}, fmt.Errorf("matrix payload must be 64 bytes, got %d", len(payload))
	}
	var m gpuapi.Mat4
	for i := 0; i < 16; i++ {
		off := i * 4
		m[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[off : off+4]))
	}
	return m, nil
}

// maxUniformNameLen is the truncation point for uniform names per the
// UpdateUniforms wire shape ({name_len:u8}{name}{value}).
const maxUniformNameLen = 255

// EncodeUniform serialises name and value as
// {name_len:u8}{name:bytes}{value:bytes}, truncating name at 255 bytes.
func EncodeUniform(name string, value []byte) []byte {
	if len(name) > maxUniformNameLen {
		name = name[:maxUniformNameLen]
	}
	buf := make([]byte, 0, 1+len(name)+len(value))
	buf = append(buf, byte(len(name)))
	buf = append(buf, name...)
	buf = append(buf, value...)
	return buf
}

// DecodeUniform is the inverse of EncodeUniform.
func DecodeUniform(payload []byte) (name string, value []byte, err error) {
	if len(payload) < 1 {
		return "", nil, fmt.Errorf("uniform payload too short")
	}
	nameLen := int(payload[0])
	if len(payload) < 1+nameLen {
		return "", nil, fmt.Errorf("uniform payload truncated: want %d name bytes, have %d", nameLen, len(payload)-1)
	}
	name = string(payload[1 : 1+nameLen])
	value = payload[1+nameLen:]
	return name, value, nil
}

// EncodeBatchSnapshot gob-encodes a BatchSnapshot for the AddRenderData
// payload.
func EncodeBatchSnapshot(snap BatchSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, fmt.Errorf("encode batch snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeBatchSnapshot is the inverse of EncodeBatchSnapshot.
func DecodeBatchSnapshot(payload []byte) (BatchSnapshot, error) {
	var snap BatchSnapshot
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&snap); err != nil {
		return BatchSnapshot{}, fmt.Errorf("decode batch snapshot: %w", err)
	}
	return snap, nil
}

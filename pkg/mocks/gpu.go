package mocks

import (
	"fmt"
	"sync"

	"github.com/user/camlab/pkg/pipeline"
	"github.com/user/camlab/pkg/ports"
)

// GPUDevice is a mock implementation of ports.GPUDevice.
// Committed command buffers execute synchronously inside Commit.
type GPUDevice struct {
	// MissingFunctions lists function names MakeFunction fails for.
	MissingFunctions map[string]bool

	MakeRenderPipelineStateFunc func(desc ports.RenderPipelineDescriptor) (ports.RenderPipelineState, error)
	MakeCommandQueueFunc        func() (ports.CommandQueue, error)

	// CommitFunc, when set, decides the outcome of each commit.
	CommitFunc func() error

	mu sync.Mutex
	// Recorded calls for verification
	Pipelines []ports.RenderPipelineDescriptor
	Draws     []DrawCall
	Commits   int
}

// DrawCall records one executed draw.
type DrawCall struct {
	Pipeline     string
	Primitive    ports.PrimitiveType
	VertexCount  int
	TextureValid bool
	Cleared      bool
}

func (m *GPUDevice) Name() string { return "mock-gpu" }

func (m *GPUDevice) MakeFunction(name string) (ports.Function, error) {
	if m.MissingFunctions[name] {
		return nil, fmt.Errorf("function %q not found", name)
	}
	stage := ports.StageFragment
	if name == "mapTexture" {
		stage = ports.StageVertex
	}
	return &Function{name: name, stage: stage}, nil
}

func (m *GPUDevice) MakeRenderPipelineState(desc ports.RenderPipelineDescriptor) (ports.RenderPipelineState, error) {
	m.mu.Lock()
	m.Pipelines = append(m.Pipelines, desc)
	m.mu.Unlock()
	if m.MakeRenderPipelineStateFunc != nil {
		return m.MakeRenderPipelineStateFunc(desc)
	}
	return &PipelineState{label: desc.Label, format: desc.PixelFormat}, nil
}

func (m *GPUDevice) MakeCommandQueue() (ports.CommandQueue, error) {
	if m.MakeCommandQueueFunc != nil {
		return m.MakeCommandQueueFunc()
	}
	return &commandQueue{device: m}, nil
}

// DrawnPipelines returns the pipeline label of every executed draw, in order.
func (m *GPUDevice) DrawnPipelines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	labels := make([]string, len(m.Draws))
	for i, d := range m.Draws {
		labels[i] = d.Pipeline
	}
	return labels
}

// DrawCalls returns a copy of the executed draws.
func (m *GPUDevice) DrawCalls() []DrawCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DrawCall(nil), m.Draws...)
}

var _ ports.GPUDevice = (*GPUDevice)(nil)

// Function is a mock ports.Function.
type Function struct {
	name  string
	stage ports.FunctionStage
}

func (f *Function) Name() string               { return f.name }
func (f *Function) Stage() ports.FunctionStage { return f.stage }

// PipelineState is a mock ports.RenderPipelineState.
type PipelineState struct {
	label  string
	format pipeline.PixelFormat
}

func (p *PipelineState) Label() string                      { return p.label }
func (p *PipelineState) PixelFormat() pipeline.PixelFormat { return p.format }

type commandQueue struct {
	device *GPUDevice
}

func (q *commandQueue) CommandBuffer() (ports.CommandBuffer, error) {
	return &commandBuffer{device: q.device}, nil
}

func (q *commandQueue) Close() {}

type commandBuffer struct {
	device   *GPUDevice
	passes   []*renderEncoder
	presents []ports.Drawable
	handlers []func(error)
}

func (b *commandBuffer) RenderCommandEncoder(pass ports.RenderPassDescriptor) (ports.RenderCommandEncoder, error) {
	e := &renderEncoder{cleared: pass.LoadAction == ports.LoadActionClear}
	b.passes = append(b.passes, e)
	return e, nil
}

func (b *commandBuffer) Present(d ports.Drawable) { b.presents = append(b.presents, d) }

func (b *commandBuffer) AddCompletedHandler(fn func(error)) { b.handlers = append(b.handlers, fn) }

func (b *commandBuffer) Commit() error {
	var err error
	if b.device.CommitFunc != nil {
		err = b.device.CommitFunc()
	}

	b.device.mu.Lock()
	b.device.Commits++
	if err == nil {
		for _, p := range b.passes {
			b.device.Draws = append(b.device.Draws, p.draws...)
		}
	}
	b.device.mu.Unlock()

	for _, p := range b.passes {
		for _, t := range p.textures {
			t.Release()
		}
	}
	for _, h := range b.handlers {
		h(err)
	}
	for _, d := range b.presents {
		if err != nil {
			d.Discard()
		} else {
			d.Present()
		}
	}
	return err
}

type renderEncoder struct {
	cleared  bool
	state    ports.RenderPipelineState
	textures []*pipeline.Texture
	draws    []DrawCall
}

func (e *renderEncoder) SetRenderPipelineState(state ports.RenderPipelineState) { e.state = state }

func (e *renderEncoder) SetFragmentTexture(tex *pipeline.Texture, index int) {
	e.textures = append(e.textures, tex)
}

func (e *renderEncoder) DrawPrimitives(primitive ports.PrimitiveType, vertexStart, vertexCount int) {
	call := DrawCall{Primitive: primitive, VertexCount: vertexCount, Cleared: e.cleared}
	if e.state != nil {
		call.Pipeline = e.state.Label()
	}
	if len(e.textures) > 0 {
		call.TextureValid = e.textures[len(e.textures)-1].Valid()
	}
	e.draws = append(e.draws, call)
}

func (e *renderEncoder) EndEncoding() {}

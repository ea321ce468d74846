package ports

import (
	"image/color"
	"image/draw"

	"github.com/user/camlab/pkg/pipeline"
)

// FunctionStage is the programmable stage a GPU function runs in.
type FunctionStage int

const (
	StageVertex FunctionStage = iota
	StageFragment
)

// Function is a named GPU program from the device library.
type Function interface {
	Name() string
	Stage() FunctionStage
}

// RenderPipelineDescriptor describes a render pipeline to compile.
type RenderPipelineDescriptor struct {
	Label            string
	VertexFunction   Function
	FragmentFunction Function
	PixelFormat      pipeline.PixelFormat // Color attachment format
	SampleCount      int
	BlendingEnabled  bool
}

// RenderPipelineState is a compiled, immutable render pipeline.
type RenderPipelineState interface {
	Label() string
	PixelFormat() pipeline.PixelFormat
}

// GPUDevice compiles pipelines and creates command queues.
type GPUDevice interface {
	// Name returns a description of the device.
	Name() string

	// MakeFunction looks up a function in the device library.
	MakeFunction(name string) (Function, error)

	// MakeRenderPipelineState compiles a render pipeline.
	MakeRenderPipelineState(desc RenderPipelineDescriptor) (RenderPipelineState, error)

	// MakeCommandQueue creates a queue that executes command buffers in commit order.
	MakeCommandQueue() (CommandQueue, error)
}

// CommandQueue executes committed command buffers asynchronously.
type CommandQueue interface {
	// CommandBuffer returns a fresh command buffer.
	CommandBuffer() (CommandBuffer, error)

	// Close waits for committed work to finish and releases the queue.
	Close()
}

// LoadAction is what a render pass does with the target before drawing.
type LoadAction int

const (
	LoadActionDontCare LoadAction = iota
	LoadActionLoad
	LoadActionClear
)

// RenderPassDescriptor describes the color attachment of a render pass.
type RenderPassDescriptor struct {
	Target     draw.Image
	LoadAction LoadAction
	ClearColor color.Color
}

// CommandBuffer records GPU work for one frame.
//
// Nothing executes before Commit. Commit never blocks: when the queue is full
// it fails, the completed handlers run with the error and presented drawables
// are discarded. Textures bound to the buffer stay retained until completion.
type CommandBuffer interface {
	RenderCommandEncoder(pass RenderPassDescriptor) (RenderCommandEncoder, error)

	// Present schedules d for presentation after the buffer's work completes.
	Present(d Drawable)

	// AddCompletedHandler registers fn to run when the buffer finished executing.
	// fn receives the execution error, if any.
	AddCompletedHandler(fn func(err error))

	Commit() error
}

// PrimitiveType is the topology of a draw call.
type PrimitiveType int

const (
	PrimitiveTriangle PrimitiveType = iota
	PrimitiveTriangleStrip
)

// RenderCommandEncoder encodes draw calls of one render pass.
type RenderCommandEncoder interface {
	SetRenderPipelineState(state RenderPipelineState)

	// SetFragmentTexture binds tex to the fragment stage. The command buffer
	// releases the texture once it completed.
	SetFragmentTexture(tex *pipeline.Texture, index int)

	DrawPrimitives(primitive PrimitiveType, vertexStart, vertexCount int)

	EndEncoding()
}

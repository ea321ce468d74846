// Package softgpu is a CPU implementation of the GPU device port.
//
// Its function library holds the full-screen quad vertex function and the
// display and VHS fragment functions. Committed command buffers run in commit
// order on one goroutine per queue.
package softgpu

import (
	"fmt"

	"github.com/user/camlab/pkg/pipeline"
	"github.com/user/camlab/pkg/ports"
)

// Library function names.
const (
	MapTexture     = "mapTexture"
	DisplayTexture = "displayTexture"
	VHSEffect      = "vhsEffect"
)

// DefaultMaxInFlight is the number of committed buffers a queue holds.
const DefaultMaxInFlight = 3

// Options configures the device.
type Options struct {
	// MaxInFlight bounds the committed, not yet executed buffers per queue.
	MaxInFlight int
}

// Device implements ports.GPUDevice.
type Device struct {
	renderer ports.Renderer
	logger   ports.Logger
	opts     Options
	library  map[string]*Function
}

// New creates a device. renderer draws effect overlays.
func New(renderer ports.Renderer, logger ports.Logger, opts Options) *Device {
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = DefaultMaxInFlight
	}
	d := &Device{
		renderer: renderer,
		logger:   logger.WithComponent("softgpu"),
		opts:     opts,
	}
	d.library = map[string]*Function{
		MapTexture:     {name: MapTexture, stage: ports.StageVertex},
		DisplayTexture: {name: DisplayTexture, stage: ports.StageFragment, shade: d.display},
		VHSEffect:      {name: VHSEffect, stage: ports.StageFragment, shade: d.vhs},
	}
	return d
}

// Name returns the device description.
func (d *Device) Name() string { return "softgpu" }

// MakeFunction looks name up in the library.
func (d *Device) MakeFunction(name string) (ports.Function, error) {
	fn, ok := d.library[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFunctionNotFound, name)
	}
	return fn, nil
}

// MakeRenderPipelineState compiles desc. Both functions must come from this
// device, the color format must be renderable and the sample count 1.
func (d *Device) MakeRenderPipelineState(desc ports.RenderPipelineDescriptor) (ports.RenderPipelineState, error) {
	vertex, ok := desc.VertexFunction.(*Function)
	if !ok || d.library[vertex.name] != vertex || vertex.stage != ports.StageVertex {
		return nil, fmt.Errorf("%w: %s: bad vertex function", ErrInvalidPipeline, desc.Label)
	}
	frag, ok := desc.FragmentFunction.(*Function)
	if !ok || d.library[frag.name] != frag || frag.stage != ports.StageFragment {
		return nil, fmt.Errorf("%w: %s: bad fragment function", ErrInvalidPipeline, desc.Label)
	}

	switch desc.PixelFormat {
	case pipeline.PixelFormatRGBA32, pipeline.PixelFormatBGRA32:
	default:
		return nil, fmt.Errorf("%w: %s: %s is not renderable", ErrInvalidPipeline, desc.Label, desc.PixelFormat)
	}
	if desc.SampleCount > 1 {
		return nil, fmt.Errorf("%w: %s: sample count %d", ErrInvalidPipeline, desc.Label, desc.SampleCount)
	}

	return &PipelineState{
		label:    desc.Label,
		format:   desc.PixelFormat,
		fragment: frag,
		blend:    desc.BlendingEnabled,
	}, nil
}

// MakeCommandQueue starts a command queue.
func (d *Device) MakeCommandQueue() (ports.CommandQueue, error) {
	q := &CommandQueue{
		device: d,
		work:   make(chan *CommandBuffer, d.opts.MaxInFlight),
		done:   make(chan struct{}),
	}
	go q.run()
	return q, nil
}

var _ ports.GPUDevice = (*Device)(nil)

// Function is a library function.
type Function struct {
	name  string
	stage ports.FunctionStage
	shade shader
}

func (f *Function) Name() string               { return f.name }
func (f *Function) Stage() ports.FunctionStage { return f.stage }

// PipelineState is a compiled render pipeline.
type PipelineState struct {
	label    string
	format   pipeline.PixelFormat
	fragment *Function
	blend    bool
}

func (p *PipelineState) Label() string                      { return p.label }
func (p *PipelineState) PixelFormat() pipeline.PixelFormat { return p.format }

// Package render implements the compositor: it draws each captured frame to
// the bound presentation surface, optionally through an effect pass, and
// forwards the untouched frame downstream.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"sync"
	"sync/atomic"

	"github.com/user/camlab/pkg/pipeline"
	"github.com/user/camlab/pkg/ports"
)

// ErrInitialization is returned when the GPU resources cannot be created.
var ErrInitialization = errors.New("render: initialization failed")

// GPU library function names.
const (
	VertexFunction  = "mapTexture"
	DisplayFunction = "displayTexture"
	VHSFunction     = "vhsEffect"
)

// quadVertexCount is the vertex count of a full-screen triangle-strip quad.
const quadVertexCount = 4

// TextureSource converts frames into textures.
type TextureSource interface {
	ToTexture(frame pipeline.Frame) (*pipeline.Texture, error)
}

// Options configures a Compositor.
type Options struct {
	PixelFormat pipeline.PixelFormat // Drawable format; default RGBA32
	ClearColor  color.Color          // Default transparent
}

// Stats are the compositor frame counters.
type Stats struct {
	Received      uint64 // Frames passed to ConsumeFrame
	Forwarded     uint64 // Frames handed to the downstream consumer
	Submitted     uint64 // Command buffers committed
	Completed     uint64 // Command buffers that finished without error
	TextureDrops  uint64 // Renders skipped because texture conversion failed
	DrawableDrops uint64 // Renders skipped because no drawable was available
	GPUErrors     uint64 // Command buffer failures
}

// pass is a compiled pipeline state for one effect.
type pass struct {
	name  string
	frag  string
	state ports.RenderPipelineState
}

// Compositor renders frames and forwards them.
type Compositor struct {
	device   ports.GPUDevice
	textures TextureSource
	queue    ports.CommandQueue
	logger   ports.Logger
	opts     Options

	passes map[pipeline.Effect]*pass
	effect pipeline.EffectCell

	bindMu   sync.Mutex
	surface  atomic.Pointer[surfaceRef]
	consumer atomic.Pointer[consumerRef]

	received      atomic.Uint64
	forwarded     atomic.Uint64
	submitted     atomic.Uint64
	completed     atomic.Uint64
	textureDrops  atomic.Uint64
	drawableDrops atomic.Uint64
	gpuErrors     atomic.Uint64
}

type surfaceRef struct {
	s ports.Surface
}

type consumerRef struct {
	c pipeline.FrameConsumer
}

// New creates the command queue and compiles one pipeline state per effect.
// Any failure is reported as ErrInitialization.
func New(device ports.GPUDevice, textures TextureSource, logger ports.Logger, opts Options) (*Compositor, error) {
	if device == nil || textures == nil {
		return nil, fmt.Errorf("%w: missing GPU device or texture source", ErrInitialization)
	}
	if opts.PixelFormat == pipeline.PixelFormatUnknown {
		opts.PixelFormat = pipeline.PixelFormatRGBA32
	}
	if opts.ClearColor == nil {
		opts.ClearColor = color.Transparent
	}

	c := &Compositor{
		device:   device,
		textures: textures,
		logger:   logger.WithComponent("render"),
		opts:     opts,
		passes: map[pipeline.Effect]*pass{
			pipeline.EffectNone: {name: "display", frag: DisplayFunction},
			pipeline.EffectVHS:  {name: "vhs", frag: VHSFunction},
		},
	}

	vertex, err := device.MakeFunction(VertexFunction)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}

	for _, e := range pipeline.Effects {
		p := c.passes[e]
		frag, err := device.MakeFunction(p.frag)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
		}
		state, err := device.MakeRenderPipelineState(ports.RenderPipelineDescriptor{
			Label:            p.name,
			VertexFunction:   vertex,
			FragmentFunction: frag,
			PixelFormat:      opts.PixelFormat,
			SampleCount:      1,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: compile %s pipeline: %w", ErrInitialization, p.name, err)
		}
		p.state = state
	}

	queue, err := device.MakeCommandQueue()
	if err != nil {
		return nil, fmt.Errorf("%w: command queue: %w", ErrInitialization, err)
	}
	c.queue = queue

	c.logger.Debug("Compiled %d render pipelines on %s", len(c.passes), device.Name())
	return c, nil
}

// BindSurface sets the presentation surface. Binding the surface that is
// already bound is a no-op; a new surface is configured once for this
// device. Passing nil unbinds the current surface.
func (c *Compositor) BindSurface(s ports.Surface) error {
	c.bindMu.Lock()
	defer c.bindMu.Unlock()

	if s == nil {
		c.surface.Store(nil)
		return nil
	}
	if cur := c.surface.Load(); cur != nil && cur.s == s {
		return nil
	}

	if err := s.Configure(ports.SurfaceConfig{
		DeviceName:  c.device.Name(),
		PixelFormat: c.opts.PixelFormat,
	}); err != nil {
		return fmt.Errorf("configure surface: %w", err)
	}
	c.surface.Store(&surfaceRef{s: s})
	c.logger.Debug("Surface bound")
	return nil
}

// SetEffect selects the effect used from the next rendered frame on.
func (c *Compositor) SetEffect(e pipeline.Effect) {
	if _, ok := c.passes[e]; !ok {
		c.logger.Warn("Unknown effect %s ignored", e.String())
		return
	}
	c.effect.Store(e)
}

// Effect returns the current effect.
func (c *Compositor) Effect() pipeline.Effect {
	return c.effect.Load()
}

// SetConsumer registers the downstream consumer. Passing nil detaches it.
func (c *Compositor) SetConsumer(consumer pipeline.FrameConsumer) {
	if consumer == nil {
		c.consumer.Store(nil)
		return
	}
	c.consumer.Store(&consumerRef{c: consumer})
}

// ConsumeFrame draws the frame and forwards it downstream. Rendering problems
// are counted and logged; the frame is forwarded regardless.
func (c *Compositor) ConsumeFrame(frame pipeline.Frame) {
	c.received.Add(1)
	c.render(frame)

	if ref := c.consumer.Load(); ref != nil {
		ref.c.ConsumeFrame(frame)
		c.forwarded.Add(1)
	}
}

func (c *Compositor) render(frame pipeline.Frame) {
	defer func() {
		if r := recover(); r != nil {
			c.gpuErrors.Add(1)
			c.logger.Warn("Render of frame %d panicked: %v", frame.Sequence, r)
		}
	}()

	tex, err := c.textures.ToTexture(frame)
	if err != nil {
		c.textureDrops.Add(1)
		c.logger.Debug("Frame %d not rendered: %v", frame.Sequence, err)
		return
	}

	var drawable ports.Drawable
	if ref := c.surface.Load(); ref != nil {
		if d, ok := ref.s.NextDrawable(); ok {
			drawable = d
		}
	}
	if drawable == nil {
		tex.Release()
		c.drawableDrops.Add(1)
		return
	}

	// Read at draw time so a change lands on the very next frame.
	p := c.passes[c.effect.Load()]
	if p == nil {
		p = c.passes[pipeline.EffectNone]
	}

	cb, err := c.queue.CommandBuffer()
	if err != nil {
		c.abandon(frame, tex, drawable, err)
		return
	}
	enc, err := cb.RenderCommandEncoder(ports.RenderPassDescriptor{
		Target:     drawable.Target(),
		LoadAction: ports.LoadActionClear,
		ClearColor: c.opts.ClearColor,
	})
	if err != nil {
		c.abandon(frame, tex, drawable, err)
		return
	}

	enc.SetRenderPipelineState(p.state)
	enc.SetFragmentTexture(tex, 0)
	enc.DrawPrimitives(ports.PrimitiveTriangleStrip, 0, quadVertexCount)
	enc.EndEncoding()

	cb.Present(drawable)

	seq := frame.Sequence
	cb.AddCompletedHandler(func(err error) {
		if err != nil {
			c.gpuErrors.Add(1)
			c.logger.Debug("GPU work for frame %d failed: %v", seq, err)
			return
		}
		c.completed.Add(1)
	})

	if err := cb.Commit(); err != nil {
		return
	}
	c.submitted.Add(1)
}

func (c *Compositor) abandon(frame pipeline.Frame, tex *pipeline.Texture, drawable ports.Drawable, err error) {
	tex.Release()
	drawable.Discard()
	c.gpuErrors.Add(1)
	c.logger.Debug("Frame %d not rendered: %v", frame.Sequence, err)
}

// Stats returns a snapshot of the frame counters.
func (c *Compositor) Stats() Stats {
	return Stats{
		Received:      c.received.Load(),
		Forwarded:     c.forwarded.Load(),
		Submitted:     c.submitted.Load(),
		Completed:     c.completed.Load(),
		TextureDrops:  c.textureDrops.Load(),
		DrawableDrops: c.drawableDrops.Load(),
		GPUErrors:     c.gpuErrors.Load(),
	}
}

// Close waits for submitted GPU work and releases the command queue.
func (c *Compositor) Close() {
	c.queue.Close()
}

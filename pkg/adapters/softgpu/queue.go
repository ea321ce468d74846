package softgpu

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/user/camlab/pkg/pipeline"
	"github.com/user/camlab/pkg/ports"
)

// CommandQueue executes committed buffers in order on its own goroutine.
type CommandQueue struct {
	device *Device

	mu     sync.RWMutex
	closed bool
	work   chan *CommandBuffer
	done   chan struct{}

	// Draws executed so far; only touched by run.
	frames uint64
}

// CommandBuffer returns an empty command buffer.
func (q *CommandQueue) CommandBuffer() (ports.CommandBuffer, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return nil, ErrQueueClosed
	}
	return &CommandBuffer{queue: q}, nil
}

func (q *CommandQueue) submit(b *CommandBuffer) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.work <- b:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *CommandQueue) run() {
	defer close(q.done)
	for b := range q.work {
		b.complete(q.execute(b))
	}
}

// Close executes the committed buffers and stops the queue goroutine.
func (q *CommandQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.work)
	q.mu.Unlock()
	<-q.done
}

func (q *CommandQueue) execute(b *CommandBuffer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("softgpu: command buffer panicked: %v", r)
		}
	}()

	for _, p := range b.passes {
		if p.err != nil {
			return p.err
		}
		target := p.desc.Target
		if p.desc.LoadAction == ports.LoadActionClear {
			c := p.desc.ClearColor
			if c == nil {
				c = color.Transparent
			}
			draw.Draw(target, target.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
		}
		for _, call := range p.draws {
			if err := q.draw(target, call); err != nil {
				return err
			}
		}
	}
	return nil
}

func (q *CommandQueue) draw(target draw.Image, call drawCall) error {
	if call.state == nil {
		return fmt.Errorf("%w: no pipeline state", ErrInvalidDraw)
	}
	// Only full-screen quads are rasterized.
	switch {
	case call.primitive == ports.PrimitiveTriangleStrip && call.count == 4:
	case call.primitive == ports.PrimitiveTriangle && call.count == 6:
	default:
		return fmt.Errorf("%w: %d vertices", ErrInvalidDraw, call.count)
	}
	if call.tex == nil {
		return fmt.Errorf("%w: no fragment texture", ErrInvalidDraw)
	}
	src := call.tex.Image()
	if src == nil {
		return fmt.Errorf("%w: texture %s released", ErrInvalidDraw, call.tex.Key())
	}

	op := draw.Src
	if call.state.blend {
		op = draw.Over
	}
	call.state.fragment.shade(target, src, q.frames, op)
	q.frames++
	return nil
}

// CommandBuffer implements ports.CommandBuffer. It is not safe for concurrent use.
type CommandBuffer struct {
	queue     *CommandQueue
	passes    []*renderPass
	presents  []ports.Drawable
	handlers  []func(error)
	committed bool
}

type renderPass struct {
	desc     ports.RenderPassDescriptor
	draws    []drawCall
	textures []*pipeline.Texture
	err      error
}

type drawCall struct {
	state     *PipelineState
	tex       *pipeline.Texture
	primitive ports.PrimitiveType
	start     int
	count     int
}

// RenderCommandEncoder starts a render pass into pass.Target.
func (b *CommandBuffer) RenderCommandEncoder(pass ports.RenderPassDescriptor) (ports.RenderCommandEncoder, error) {
	if b.committed {
		return nil, ErrAlreadyCommitted
	}
	if pass.Target == nil {
		return nil, fmt.Errorf("%w: render pass without target", ErrInvalidDraw)
	}
	p := &renderPass{desc: pass}
	b.passes = append(b.passes, p)
	return &RenderEncoder{pass: p}, nil
}

// Present schedules d for presentation after execution.
func (b *CommandBuffer) Present(d ports.Drawable) {
	b.presents = append(b.presents, d)
}

// AddCompletedHandler registers fn to run after execution.
func (b *CommandBuffer) AddCompletedHandler(fn func(error)) {
	b.handlers = append(b.handlers, fn)
}

// Commit hands the buffer to the queue without blocking. When the queue is
// full or closed the buffer completes at once with that error.
func (b *CommandBuffer) Commit() error {
	if b.committed {
		return ErrAlreadyCommitted
	}
	b.committed = true
	if err := b.queue.submit(b); err != nil {
		b.complete(err)
		return err
	}
	return nil
}

func (b *CommandBuffer) complete(err error) {
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
}

// RenderEncoder implements ports.RenderCommandEncoder. Encoding errors are
// reported when the buffer executes.
type RenderEncoder struct {
	pass  *renderPass
	state *PipelineState
	tex   *pipeline.Texture
	ended bool
}

func (e *RenderEncoder) fail(err error) {
	if e.pass.err == nil {
		e.pass.err = err
	}
}

func (e *RenderEncoder) SetRenderPipelineState(state ports.RenderPipelineState) {
	ps, ok := state.(*PipelineState)
	if !ok {
		e.fail(fmt.Errorf("%w: foreign pipeline state", ErrInvalidDraw))
		return
	}
	e.state = ps
}

// SetFragmentTexture binds tex to slot 0. The buffer releases it on completion.
func (e *RenderEncoder) SetFragmentTexture(tex *pipeline.Texture, index int) {
	if tex != nil {
		e.pass.textures = append(e.pass.textures, tex)
	}
	if index != 0 {
		e.fail(fmt.Errorf("%w: texture slot %d", ErrInvalidDraw, index))
		return
	}
	e.tex = tex
}

func (e *RenderEncoder) DrawPrimitives(primitive ports.PrimitiveType, vertexStart, vertexCount int) {
	if e.ended {
		e.fail(fmt.Errorf("%w: draw after end of encoding", ErrInvalidDraw))
		return
	}
	e.pass.draws = append(e.pass.draws, drawCall{
		state:     e.state,
		tex:       e.tex,
		primitive: primitive,
		start:     vertexStart,
		count:     vertexCount,
	})
}

func (e *RenderEncoder) EndEncoding() { e.ended = true }

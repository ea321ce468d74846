package pipeline

import (
	"errors"
	"sync/atomic"
)

var (
	// ErrPoolExhausted is returned when every buffer of a pool is in flight.
	ErrPoolExhausted = errors.New("pipeline: buffer pool exhausted")

	// ErrInvalidDimensions is returned for non-positive buffer dimensions.
	ErrInvalidDimensions = errors.New("pipeline: invalid buffer dimensions")
)

// PixelBuffer is reference-counted pixel memory.
//
// A buffer starts with one reference held by whoever obtained it. Retain adds a
// reference, Release drops one; when the count reaches zero the buffer returns
// to its pool and must no longer be read.
type PixelBuffer struct {
	format PixelFormat
	width  int
	height int
	planes []Plane

	refs atomic.Int32
	pool *BufferPool
}

// NewPixelBuffer allocates an unpooled buffer holding one reference.
func NewPixelBuffer(format PixelFormat, width, height int) (*PixelBuffer, error) {
	b, err := allocBuffer(format, width, height)
	if err != nil {
		return nil, err
	}
	b.refs.Store(1)
	return b, nil
}

func allocBuffer(format PixelFormat, width, height int) (*PixelBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}

	b := &PixelBuffer{format: format, width: width, height: height}

	switch format {
	case PixelFormatBGRA32, PixelFormatRGBA32:
		stride := width * 4
		b.planes = []Plane{{
			Data:   make([]byte, stride*height),
			Width:  width,
			Height: height,
			Stride: stride,
		}}
	case PixelFormatNV12:
		cw := (width + 1) / 2
		ch := (height + 1) / 2
		b.planes = []Plane{
			{Data: make([]byte, width*height), Width: width, Height: height, Stride: width},
			{Data: make([]byte, cw*2*ch), Width: cw, Height: ch, Stride: cw * 2},
		}
	default:
		return nil, errors.New("pipeline: cannot allocate buffer of format " + format.String())
	}

	return b, nil
}

// Format returns the pixel format.
func (b *PixelBuffer) Format() PixelFormat { return b.format }

// Width returns the buffer width in pixels.
func (b *PixelBuffer) Width() int { return b.width }

// Height returns the buffer height in pixels.
func (b *PixelBuffer) Height() int { return b.height }

// IsPlanar reports whether the buffer has more than one plane.
func (b *PixelBuffer) IsPlanar() bool { return len(b.planes) > 1 }

// PlaneCount returns the number of planes.
func (b *PixelBuffer) PlaneCount() int { return len(b.planes) }

// Plane returns plane i. It panics if i is out of range.
func (b *PixelBuffer) Plane(i int) Plane { return b.planes[i] }

// Valid reports whether the buffer still holds at least one reference.
func (b *PixelBuffer) Valid() bool { return b.refs.Load() > 0 }

// Retain adds a reference and returns the buffer.
func (b *PixelBuffer) Retain() *PixelBuffer {
	if b.refs.Add(1) <= 1 {
		panic("pipeline: retain of released pixel buffer")
	}
	return b
}

// Release drops a reference, returning the buffer to its pool on the last one.
func (b *PixelBuffer) Release() {
	n := b.refs.Add(-1)
	switch {
	case n == 0:
		if b.pool != nil {
			b.pool.put(b)
		}
	case n < 0:
		panic("pipeline: release of released pixel buffer")
	}
}

// BufferPool is a bounded pool of identically shaped pixel buffers.
type BufferPool struct {
	format   PixelFormat
	width    int
	height   int
	capacity int32

	free      chan *PixelBuffer
	allocated atomic.Int32
	inFlight  atomic.Int32
}

// NewBufferPool creates a pool that hands out at most capacity buffers at a time.
func NewBufferPool(format PixelFormat, width, height, capacity int) (*BufferPool, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}
	if capacity <= 0 {
		capacity = 1
	}
	if format.PlaneCount() == 0 {
		return nil, errors.New("pipeline: unsupported pool format " + format.String())
	}
	return &BufferPool{
		format:   format,
		width:    width,
		height:   height,
		capacity: int32(capacity),
		free:     make(chan *PixelBuffer, capacity),
	}, nil
}

// Get returns a buffer holding one reference, or ErrPoolExhausted.
func (p *BufferPool) Get() (*PixelBuffer, error) {
	select {
	case b := <-p.free:
		b.refs.Store(1)
		p.inFlight.Add(1)
		return b, nil
	default:
	}

	for {
		n := p.allocated.Load()
		if n >= p.capacity {
			return nil, ErrPoolExhausted
		}
		if p.allocated.CompareAndSwap(n, n+1) {
			break
		}
	}

	b, err := allocBuffer(p.format, p.width, p.height)
	if err != nil {
		p.allocated.Add(-1)
		return nil, err
	}
	b.pool = p
	b.refs.Store(1)
	p.inFlight.Add(1)
	return b, nil
}

// InFlight returns the number of buffers currently handed out.
func (p *BufferPool) InFlight() int { return int(p.inFlight.Load()) }

// Capacity returns the maximum number of buffers the pool hands out.
func (p *BufferPool) Capacity() int { return int(p.capacity) }

func (p *BufferPool) put(b *PixelBuffer) {
	p.inFlight.Add(-1)
	select {
	case p.free <- b:
	default:
		p.allocated.Add(-1)
	}
}

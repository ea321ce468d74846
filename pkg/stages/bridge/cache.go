// Package bridge turns captured frames into sampleable textures through a
// bounded cache keyed by pixel format and dimensions.
package bridge

import (
	"errors"
	"fmt"
	"sync"

	"github.com/user/camlab/pkg/pipeline"
)

var (
	// ErrUnsupportedFormat is returned for frames the renderer cannot sample.
	ErrUnsupportedFormat = errors.New("bridge: unsupported frame format")

	// ErrCacheExhausted is returned when every texture of a key is in use.
	ErrCacheExhausted = errors.New("bridge: texture cache exhausted")

	// ErrInvalidFrame is returned for frames without a live buffer.
	ErrInvalidFrame = errors.New("bridge: frame buffer is not valid")
)

// DefaultMaxTextures bounds the live textures per key. It covers the
// command buffers a GPU queue keeps in flight plus the frame being encoded.
const DefaultMaxTextures = 4

// Options configures a TextureCache.
type Options struct {
	MaxTextures int // Live textures per key; 0 means DefaultMaxTextures
}

// CacheStats describes the cache contents.
type CacheStats struct {
	Keys    int
	Live    int
	Idle    int
	Created int
}

// TextureCache hands out textures wrapping frame buffers without copying.
// A texture retains its frame buffer until released; releasing returns the
// texture shell to the cache for reuse.
type TextureCache struct {
	maxPerKey int

	mu      sync.Mutex
	buckets map[pipeline.TextureKey]*bucket
	created int
}

type bucket struct {
	idle []*pipeline.Texture
	live int
}

// New creates a texture cache.
func New(opts Options) *TextureCache {
	if opts.MaxTextures <= 0 {
		opts.MaxTextures = DefaultMaxTextures
	}
	return &TextureCache{
		maxPerKey: opts.MaxTextures,
		buckets:   make(map[pipeline.TextureKey]*bucket),
	}
}

// ToTexture returns a texture over the frame's pixels. Planar frames use the
// dimensions of plane 0.
func (c *TextureCache) ToTexture(frame pipeline.Frame) (*pipeline.Texture, error) {
	buf := frame.Buffer
	if buf == nil || !buf.Valid() {
		return nil, ErrInvalidFrame
	}

	switch buf.Format() {
	case pipeline.PixelFormatBGRA32, pipeline.PixelFormatNV12, pipeline.PixelFormatRGBA32:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, buf.Format())
	}

	plane := buf.Plane(0)
	key := pipeline.TextureKey{Format: buf.Format(), Width: plane.Width, Height: plane.Height}

	tex, err := c.acquire(key)
	if err != nil {
		return nil, err
	}
	tex.Attach(buf, buf.Image())
	return tex, nil
}

func (c *TextureCache) acquire(key pipeline.TextureKey) (*pipeline.Texture, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.buckets[key]
	if !ok {
		b = &bucket{}
		c.buckets[key] = b
	}

	if n := len(b.idle); n > 0 {
		tex := b.idle[n-1]
		b.idle[n-1] = nil
		b.idle = b.idle[:n-1]
		b.live++
		return tex, nil
	}

	if b.live >= c.maxPerKey {
		return nil, fmt.Errorf("%w: %d live %s textures", ErrCacheExhausted, b.live, key)
	}

	b.live++
	c.created++
	return pipeline.NewTexture(key, c.recycle), nil
}

func (c *TextureCache) recycle(tex *pipeline.Texture) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.buckets[tex.Key()]
	if !ok {
		return
	}
	b.live--
	b.idle = append(b.idle, tex)
}

// Flush drops every idle texture. Textures still in use are unaffected and
// are pooled again when released.
func (c *TextureCache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, b := range c.buckets {
		b.idle = nil
		if b.live == 0 {
			delete(c.buckets, key)
		}
	}
}

// Stats returns a snapshot of the cache counters.
func (c *TextureCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := CacheStats{Keys: len(c.buckets), Created: c.created}
	for _, b := range c.buckets {
		st.Live += b.live
		st.Idle += len(b.idle)
	}
	return st
}

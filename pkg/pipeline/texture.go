package pipeline

import (
	"fmt"
	"image"
	"sync"
)

// TextureKey identifies a texture cache bucket.
type TextureKey struct {
	Format PixelFormat
	Width  int
	Height int
}

// String returns a compact description of the key, e.g. "bgra 1920x1080".
func (k TextureKey) String() string {
	return fmt.Sprintf("%s %dx%d", k.Format, k.Width, k.Height)
}

// Texture is a sampleable view over a pixel buffer.
//
// A texture retains its buffer from Attach until Release. After Release the
// texture is invalid and Image returns nil.
type Texture struct {
	key TextureKey

	mu      sync.Mutex
	buf     *PixelBuffer
	view    image.Image
	recycle func(*Texture)
}

// NewTexture creates an unattached texture shell for key. The recycle
// function, if not nil, is called after Release detaches the buffer.
func NewTexture(key TextureKey, recycle func(*Texture)) *Texture {
	return &Texture{key: key, recycle: recycle}
}

// Key returns the cache key of the texture.
func (t *Texture) Key() TextureKey { return t.key }

// Attach binds the texture to buf, retaining it.
func (t *Texture) Attach(buf *PixelBuffer, view image.Image) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.buf != nil {
		panic("pipeline: attach to a texture that is still bound")
	}
	t.buf = buf.Retain()
	t.view = view
}

// Image returns the sampleable view, or nil once released.
func (t *Texture) Image() image.Image {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.view
}

// Valid reports whether the texture is bound to a live buffer.
func (t *Texture) Valid() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf != nil && t.buf.Valid()
}

// Release drops the buffer reference and hands the shell back for reuse.
// Releasing an unbound texture is a no-op.
func (t *Texture) Release() {
	t.mu.Lock()
	buf := t.buf
	t.buf = nil
	t.view = nil
	t.mu.Unlock()

	if buf == nil {
		return
	}
	buf.Release()
	if t.recycle != nil {
		t.recycle(t)
	}
}

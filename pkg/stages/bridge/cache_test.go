package bridge

import (
	"errors"
	"testing"

	"github.com/user/camlab/pkg/pipeline"
)

func newFrame(t *testing.T, format pipeline.PixelFormat, w, h int) pipeline.Frame {
	t.Helper()
	buf, err := pipeline.NewPixelBuffer(format, w, h)
	if err != nil {
		t.Fatalf("NewPixelBuffer failed: %v", err)
	}
	return pipeline.Frame{Buffer: buf}
}

func TestTextureCache_PackedFrame(t *testing.T) {
	c := New(Options{})
	frame := newFrame(t, pipeline.PixelFormatBGRA32, 8, 6)

	tex, err := c.ToTexture(frame)
	if err != nil {
		t.Fatalf("ToTexture failed: %v", err)
	}
	if tex.Key() != (pipeline.TextureKey{Format: pipeline.PixelFormatBGRA32, Width: 8, Height: 6}) {
		t.Errorf("unexpected key %v", tex.Key())
	}
	if b := tex.Image().Bounds(); b.Dx() != 8 || b.Dy() != 6 {
		t.Errorf("unexpected texture bounds %v", b)
	}

	// The texture outlives the producer's reference.
	frame.Buffer.Release()
	if !tex.Valid() {
		t.Fatal("expected texture to keep its buffer alive")
	}
	tex.Release()
	if frame.Buffer.Valid() {
		t.Error("expected buffer released with the texture")
	}
}

func TestTextureCache_PlanarUsesPlaneZero(t *testing.T) {
	c := New(Options{})
	frame := newFrame(t, pipeline.PixelFormatNV12, 10, 6)
	defer frame.Buffer.Release()

	tex, err := c.ToTexture(frame)
	if err != nil {
		t.Fatalf("ToTexture failed: %v", err)
	}
	defer tex.Release()

	if tex.Key().Width != 10 || tex.Key().Height != 6 {
		t.Errorf("expected plane 0 dimensions 10x6, got %dx%d", tex.Key().Width, tex.Key().Height)
	}
}

func TestTextureCache_Exhaustion(t *testing.T) {
	c := New(Options{MaxTextures: 2})

	var texs []*pipeline.Texture
	for i := 0; i < 2; i++ {
		frame := newFrame(t, pipeline.PixelFormatBGRA32, 4, 4)
		tex, err := c.ToTexture(frame)
		if err != nil {
			t.Fatalf("ToTexture %d failed: %v", i, err)
		}
		frame.Buffer.Release()
		texs = append(texs, tex)
	}

	frame := newFrame(t, pipeline.PixelFormatBGRA32, 4, 4)
	if _, err := c.ToTexture(frame); !errors.Is(err, ErrCacheExhausted) {
		t.Fatalf("expected ErrCacheExhausted, got %v", err)
	}

	// Other keys have their own budget.
	other := newFrame(t, pipeline.PixelFormatBGRA32, 8, 8)
	otherTex, err := c.ToTexture(other)
	if err != nil {
		t.Fatalf("expected separate budget per key, got %v", err)
	}
	otherTex.Release()

	texs[0].Release()
	reused, err := c.ToTexture(frame)
	if err != nil {
		t.Fatalf("expected texture after release, got %v", err)
	}
	if reused != texs[0] {
		t.Error("expected released texture shell to be reused")
	}
	if c.Stats().Created != 3 {
		t.Errorf("expected 3 textures created, got %d", c.Stats().Created)
	}
}

func TestTextureCache_UnsupportedFormat(t *testing.T) {
	c := New(Options{})

	if _, err := c.ToTexture(pipeline.Frame{}); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("expected ErrInvalidFrame for nil buffer, got %v", err)
	}

	released := newFrame(t, pipeline.PixelFormatBGRA32, 2, 2)
	released.Buffer.Release()
	if _, err := c.ToTexture(released); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("expected ErrInvalidFrame for released buffer, got %v", err)
	}
}

func TestTextureCache_Flush(t *testing.T) {
	c := New(Options{})

	frame := newFrame(t, pipeline.PixelFormatBGRA32, 4, 4)
	idle, _ := c.ToTexture(frame)
	busy, _ := c.ToTexture(frame)
	idle.Release()

	st := c.Stats()
	if st.Live != 1 || st.Idle != 1 {
		t.Fatalf("expected 1 live and 1 idle, got %+v", st)
	}

	c.Flush()
	st = c.Stats()
	if st.Idle != 0 || st.Live != 1 {
		t.Errorf("expected idle textures dropped, got %+v", st)
	}

	busy.Release()
	if c.Stats().Idle != 1 {
		t.Error("expected busy texture pooled after release")
	}

	c.Flush()
	if c.Stats().Keys != 0 {
		t.Error("expected empty key removed")
	}
	frame.Buffer.Release()
}

package pipeline

import "testing"

func TestTexture_AttachRetainsBuffer(t *testing.T) {
	pool, _ := NewBufferPool(PixelFormatBGRA32, 2, 2, 1)
	buf, _ := pool.Get()

	recycled := 0
	tex := NewTexture(TextureKey{PixelFormatBGRA32, 2, 2}, func(*Texture) { recycled++ })
	tex.Attach(buf, buf.Image())

	// Producer drops its reference; the texture keeps the pixels alive.
	buf.Release()
	if !tex.Valid() {
		t.Fatal("expected texture to stay valid while attached")
	}
	if tex.Image() == nil {
		t.Fatal("expected image while attached")
	}

	tex.Release()
	if tex.Valid() {
		t.Error("expected texture invalid after release")
	}
	if tex.Image() != nil {
		t.Error("expected nil image after release")
	}
	if buf.Valid() {
		t.Error("expected buffer back in pool after texture release")
	}
	if recycled != 1 {
		t.Errorf("expected recycle once, got %d", recycled)
	}

	tex.Release()
	if recycled != 1 {
		t.Errorf("expected second release to be a no-op, recycled %d", recycled)
	}
}

func TestTextureKey_String(t *testing.T) {
	k := TextureKey{Format: PixelFormatNV12, Width: 1920, Height: 1080}
	if k.String() != "nv12 1920x1080" {
		t.Errorf("unexpected key string %q", k.String())
	}
}

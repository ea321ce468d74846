package ports

import (
	"image/draw"

	"github.com/user/camlab/pkg/pipeline"
)

// SurfaceConfig is applied once when a surface is bound to a renderer.
type SurfaceConfig struct {
	DeviceName  string
	PixelFormat pipeline.PixelFormat
}

// Surface is an externally owned presentation target.
type Surface interface {
	// Configure binds the surface to a GPU device and target format.
	Configure(cfg SurfaceConfig) error

	// NextDrawable returns a free drawable, or false when every drawable is in use.
	NextDrawable() (Drawable, bool)
}

// Drawable is one buffer of a surface.
type Drawable interface {
	// Target returns the pixels a render pass draws into.
	Target() draw.Image

	// Present shows the drawable and returns it to the surface.
	Present()

	// Discard returns the drawable to the surface without showing it.
	Discard()
}

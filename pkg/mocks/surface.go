package mocks

import (
	"image"
	"image/draw"
	"sync"
	"sync/atomic"

	"github.com/user/camlab/pkg/ports"
)

// Surface is a mock implementation of ports.Surface.
type Surface struct {
	Width  int
	Height int

	// Unavailable makes NextDrawable report no free drawable.
	Unavailable atomic.Bool

	ConfigureFunc func(cfg ports.SurfaceConfig) error

	mu sync.Mutex
	// Recorded calls for verification
	ConfigureCalls []ports.SurfaceConfig
	Presented      []*Drawable
	Discarded      []*Drawable
}

// NewSurface creates a mock surface with drawables of the given size.
func NewSurface(width, height int) *Surface {
	return &Surface{Width: width, Height: height}
}

func (m *Surface) Configure(cfg ports.SurfaceConfig) error {
	m.mu.Lock()
	m.ConfigureCalls = append(m.ConfigureCalls, cfg)
	m.mu.Unlock()
	if m.ConfigureFunc != nil {
		return m.ConfigureFunc(cfg)
	}
	return nil
}

func (m *Surface) NextDrawable() (ports.Drawable, bool) {
	if m.Unavailable.Load() {
		return nil, false
	}
	return &Drawable{
		surface: m,
		target:  image.NewRGBA(image.Rect(0, 0, m.Width, m.Height)),
	}, true
}

// PresentedCount returns the number of presented drawables.
func (m *Surface) PresentedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Presented)
}

// ConfigureCount returns the number of Configure calls.
func (m *Surface) ConfigureCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ConfigureCalls)
}

var _ ports.Surface = (*Surface)(nil)

// Drawable is a mock implementation of ports.Drawable.
type Drawable struct {
	surface *Surface
	target  *image.RGBA
}

func (d *Drawable) Target() draw.Image { return d.target }

// Image returns the drawn pixels.
func (d *Drawable) Image() *image.RGBA { return d.target }

func (d *Drawable) Present() {
	d.surface.mu.Lock()
	defer d.surface.mu.Unlock()
	d.surface.Presented = append(d.surface.Presented, d)
}

func (d *Drawable) Discard() {
	d.surface.mu.Lock()
	defer d.surface.mu.Unlock()
	d.surface.Discarded = append(d.surface.Discarded, d)
}

var _ ports.Drawable = (*Drawable)(nil)

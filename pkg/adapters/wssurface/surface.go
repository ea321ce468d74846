// Package wssurface is a presentation surface that streams presented frames as
// JPEG images to WebSocket viewers.
package wssurface

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/user/camlab/pkg/pipeline"
	"github.com/user/camlab/pkg/ports"
)

const (
	// DefaultDrawables is the number of drawables of a surface.
	DefaultDrawables = 3

	// DefaultQuality is the JPEG quality of preview frames.
	DefaultQuality = 70

	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	viewerBuffer = 2
)

// ErrUnsupportedFormat is returned by Configure for formats other than RGBA32.
var ErrUnsupportedFormat = errors.New("wssurface: unsupported pixel format")

// Options configures the surface.
type Options struct {
	Width     int
	Height    int
	Drawables int
	Quality   int
}

// Stats are the surface counters.
type Stats struct {
	Presented uint64
	Discarded uint64
	Sent      uint64
	Dropped   uint64
	Viewers   int
}

// Surface implements ports.Surface and serves viewers over HTTP.
type Surface struct {
	renderer ports.Renderer
	logger   ports.Logger
	opts     Options
	upgrader websocket.Upgrader

	free chan *Drawable

	mu      sync.Mutex
	device  string
	viewers map[*viewer]struct{}
	last    []byte

	presented atomic.Uint64
	discarded atomic.Uint64
	sent      atomic.Uint64
	dropped   atomic.Uint64
}

// New creates a surface with opts.Drawables drawables of opts.Width x opts.Height.
func New(renderer ports.Renderer, logger ports.Logger, opts Options) (*Surface, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("wssurface: invalid size %dx%d", opts.Width, opts.Height)
	}
	if opts.Drawables <= 0 {
		opts.Drawables = DefaultDrawables
	}
	if opts.Quality <= 0 {
		opts.Quality = DefaultQuality
	}

	s := &Surface{
		renderer: renderer,
		logger:   logger.WithComponent("wssurface"),
		opts:     opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		free:    make(chan *Drawable, opts.Drawables),
		viewers: make(map[*viewer]struct{}),
	}
	for i := 0; i < opts.Drawables; i++ {
		s.free <- &Drawable{
			surface: s,
			target:  image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height)),
		}
	}
	return s, nil
}

// Configure records the rendering device. Only RGBA32 targets are supported.
func (s *Surface) Configure(cfg ports.SurfaceConfig) error {
	if cfg.PixelFormat != pipeline.PixelFormatRGBA32 {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, cfg.PixelFormat)
	}
	s.mu.Lock()
	s.device = cfg.DeviceName
	s.mu.Unlock()
	s.logger.Debug("Configured for %s", cfg.DeviceName)
	return nil
}

// NextDrawable returns a free drawable without blocking.
func (s *Surface) NextDrawable() (ports.Drawable, bool) {
	select {
	case d := <-s.free:
		return d, true
	default:
		return nil, false
	}
}

// Stats returns the surface counters.
func (s *Surface) Stats() Stats {
	s.mu.Lock()
	n := len(s.viewers)
	s.mu.Unlock()
	return Stats{
		Presented: s.presented.Load(),
		Discarded: s.discarded.Load(),
		Sent:      s.sent.Load(),
		Dropped:   s.dropped.Load(),
		Viewers:   n,
	}
}

func (s *Surface) present(d *Drawable) {
	defer func() { s.free <- d }()
	s.presented.Add(1)

	data, err := s.renderer.EncodeImage(d.target, ports.FormatJPEG, s.opts.Quality)
	if err != nil {
		s.logger.Warn("Failed to encode preview frame: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = data
	for v := range s.viewers {
		select {
		case v.send <- data:
			s.sent.Add(1)
		default:
			s.dropped.Add(1)
		}
	}
}

func (s *Surface) discard(d *Drawable) {
	s.discarded.Add(1)
	s.free <- d
}

// Close disconnects every viewer.
func (s *Surface) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for v := range s.viewers {
		delete(s.viewers, v)
		close(v.send)
	}
}

var _ ports.Surface = (*Surface)(nil)

// Drawable implements ports.Drawable over an RGBA image.
type Drawable struct {
	surface *Surface
	target  *image.RGBA
}

func (d *Drawable) Target() draw.Image { return d.target }

// Present sends the drawable to all viewers and returns it to the surface.
func (d *Drawable) Present() { d.surface.present(d) }

// Discard returns the drawable to the surface.
func (d *Drawable) Discard() { d.surface.discard(d) }

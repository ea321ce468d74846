// Package testcamera provides synthetic cameras that stream drawn test patterns.
package testcamera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/user/camlab/pkg/adapters/ggrenderer"
	"github.com/user/camlab/pkg/pipeline"
	"github.com/user/camlab/pkg/ports"
)

// DefaultPoolSize is the number of frame buffers per stream.
const DefaultPoolSize = 6

// ErrInvalidStream is returned for stream configurations a device cannot produce.
var ErrInvalidStream = errors.New("testcamera: invalid stream configuration")

// Options configures the camera system.
type Options struct {
	// DeviceTypes lists the devices the system offers. Empty means a wide angle camera.
	DeviceTypes []ports.DeviceType

	// PoolSize bounds the frames a stream has in flight.
	PoolSize int
}

// System implements ports.CameraSystem.
type System struct {
	devices map[ports.DeviceType]*Device
	epoch   time.Time
}

// New creates a camera system. renderer draws the test patterns.
func New(renderer ports.Renderer, logger ports.Logger, opts Options) *System {
	if len(opts.DeviceTypes) == 0 {
		opts.DeviceTypes = []ports.DeviceType{ports.DeviceWideAngleCamera}
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = DefaultPoolSize
	}

	s := &System{
		devices: make(map[ports.DeviceType]*Device),
		epoch:   time.Now(),
	}
	logger = logger.WithComponent("testcamera")
	for _, t := range opts.DeviceTypes {
		s.devices[t] = &Device{
			id:         "test-" + t.String(),
			deviceType: t,
			renderer:   renderer,
			logger:     logger,
			poolSize:   opts.PoolSize,
			epoch:      s.epoch,
		}
	}
	return s
}

// DefaultDevice returns the device of the given type. Every device serves both positions.
func (s *System) DefaultDevice(deviceType ports.DeviceType, position ports.DevicePosition) (ports.CaptureDevice, bool) {
	d, ok := s.devices[deviceType]
	if !ok {
		return nil, false
	}
	return d, true
}

var _ ports.CameraSystem = (*System)(nil)

// Device is a synthetic camera.
type Device struct {
	id         string
	deviceType ports.DeviceType
	renderer   ports.Renderer
	logger     ports.Logger
	poolSize   int
	epoch      time.Time
}

func (d *Device) ID() string             { return d.id }
func (d *Device) Type() ports.DeviceType { return d.deviceType }

// Stream draws one frame per tick until ctx ends. Timestamps are measured on
// the system clock, so they keep increasing across streams. A tick is skipped
// when every pooled buffer is still held downstream.
func (d *Device) Stream(ctx context.Context, cfg ports.StreamConfig, deliver func(pipeline.Frame)) error {
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.FrameRate <= 0 {
		return fmt.Errorf("%w: %dx%d @ %v fps", ErrInvalidStream, cfg.Width, cfg.Height, cfg.FrameRate)
	}
	switch cfg.PixelFormat {
	case pipeline.PixelFormatBGRA32, pipeline.PixelFormatNV12:
	default:
		return fmt.Errorf("%w: format %s", ErrInvalidStream, cfg.PixelFormat)
	}

	pool, err := pipeline.NewBufferPool(cfg.PixelFormat, cfg.Width, cfg.Height, d.poolSize)
	if err != nil {
		return fmt.Errorf("create buffer pool: %w", err)
	}
	canvas := image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	label := fmt.Sprintf("%s %dx%d %s", d.id, cfg.Width, cfg.Height, cfg.PixelFormat)

	ticker := time.NewTicker(time.Duration(float64(time.Second) / cfg.FrameRate))
	defer ticker.Stop()

	var seq, skipped uint64
	for {
		select {
		case <-ctx.Done():
			if skipped > 0 {
				d.logger.Debug("Stream on %s skipped %d ticks", d.id, skipped)
			}
			return nil
		case now := <-ticker.C:
			buf, err := pool.Get()
			if err != nil {
				skipped++
				continue
			}
			ts := now.Sub(d.epoch)
			ggrenderer.DrawTestPattern(d.renderer, canvas, label, seq, ts)
			buf.WriteRGBA(canvas)

			deliver(pipeline.Frame{Buffer: buf, Timestamp: ts, Sequence: seq})
			buf.Release()
			seq++
		}
	}
}

var _ ports.CaptureDevice = (*Device)(nil)

// Package capture implements the capture source: it owns the camera device and
// its session configuration and pushes frames downstream on a producer goroutine.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/user/camlab/pkg/dispatch"
	"github.com/user/camlab/pkg/pipeline"
	"github.com/user/camlab/pkg/ports"
)

// DefaultJPEGQuality is the recording quality recommended for captured video.
const DefaultJPEGQuality = 80

// Config describes the capture session to set up.
type Config struct {
	Preset      Preset
	PixelFormat pipeline.PixelFormat
	Orientation ports.Orientation
	FrameRate   float64
	Position    ports.DevicePosition

	// DeviceTypes is the device fallback order.
	DeviceTypes []ports.DeviceType

	// RequireAudio requests microphone access along with the camera.
	RequireAudio bool
}

// DefaultConfig returns the default capture configuration.
func DefaultConfig() Config {
	return Config{
		Preset:       PresetHD1920x1080,
		PixelFormat:  pipeline.PixelFormatBGRA32,
		Orientation:  ports.OrientationPortrait,
		FrameRate:    30,
		Position:     ports.PositionBack,
		DeviceTypes:  []ports.DeviceType{ports.DeviceDualCamera, ports.DeviceWideAngleCamera},
		RequireAudio: true,
	}
}

// Stats are the frame counters of a source.
type Stats struct {
	Delivered uint64
	Streams   uint64
}

// Source owns the capture session and produces frames.
type Source struct {
	cameras ports.CameraSystem
	auth    ports.Authorizer
	logger  ports.Logger
	cfg     Config

	session *Session
	queue   *dispatch.Queue

	consumer atomic.Pointer[consumerRef]

	// Stream lifetime, only touched on the queue goroutine.
	cancel context.CancelFunc
	done   chan struct{}

	streaming atomic.Bool
	delivered atomic.Uint64
	streams   atomic.Uint64

	closeOnce sync.Once
}

type consumerRef struct {
	c pipeline.FrameConsumer
}

// New creates a capture source. Configure must succeed before Start.
func New(cameras ports.CameraSystem, auth ports.Authorizer, logger ports.Logger, cfg Config) *Source {
	if len(cfg.DeviceTypes) == 0 {
		cfg.DeviceTypes = DefaultConfig().DeviceTypes
	}
	logger = logger.WithComponent("capture")
	return &Source{
		cameras: cameras,
		auth:    auth,
		logger:  logger,
		cfg:     cfg,
		session: NewSession(),
		queue: dispatch.NewQueue("capture", func(name string, v any) {
			logger.Error("Panic on %s queue: %v", name, v)
		}),
	}
}

// Configure obtains camera (and microphone) access, selects a device and
// commits the session configuration. It returns a *NoAccessError when access
// is not granted and ErrNoDevice when no device is available.
func (s *Source) Configure(ctx context.Context) error {
	media := []ports.MediaType{ports.MediaVideo}
	if s.cfg.RequireAudio {
		media = append(media, ports.MediaAudio)
	}
	for _, m := range media {
		s.logger.Debug("Requesting %s access", m.String())
		granted, err := s.auth.RequestAccess(ctx, m)
		if err != nil {
			return &NoAccessError{Media: m, Err: err}
		}
		if !granted {
			return &NoAccessError{Media: m}
		}
	}

	f := dispatch.Submit(s.queue, func() (struct{}, error) {
		return struct{}{}, s.configureSession()
	})
	_, err := f.Wait(ctx)
	return err
}

func (s *Source) configureSession() error {
	device, ok := s.selectDevice()
	if !ok {
		return ErrNoDevice
	}

	st, err := s.session.BeginConfiguration()
	if err != nil {
		return err
	}
	st.Device = device
	st.Preset = s.cfg.Preset
	st.PixelFormat = s.cfg.PixelFormat
	st.Orientation = s.cfg.Orientation
	st.FrameRate = s.cfg.FrameRate
	if err := s.session.CommitConfiguration(); err != nil {
		return err
	}

	sc := st.StreamConfig()
	s.logger.Debug("Capture configured: %s (%s) %dx%d %s @ %.0f fps",
		device.ID(), device.Type().String(), sc.Width, sc.Height, sc.PixelFormat.String(), sc.FrameRate)
	return nil
}

func (s *Source) selectDevice() (ports.CaptureDevice, bool) {
	for _, t := range s.cfg.DeviceTypes {
		if d, ok := s.cameras.DefaultDevice(t, s.cfg.Position); ok {
			return d, true
		}
	}
	return nil, false
}

// SetConsumer registers the downstream consumer. Passing nil detaches it.
func (s *Source) SetConsumer(c pipeline.FrameConsumer) {
	if c == nil {
		s.consumer.Store(nil)
		return
	}
	s.consumer.Store(&consumerRef{c: c})
}

// Start begins frame production. The hardware start runs on the capture queue;
// the returned future resolves once the stream goroutine is running.
func (s *Source) Start() *dispatch.Future[struct{}] {
	return dispatch.Submit(s.queue, func() (struct{}, error) {
		return struct{}{}, s.startStream()
	})
}

// Stop ends frame production. The returned future resolves once the last
// frame has been delivered.
func (s *Source) Stop() *dispatch.Future[struct{}] {
	return dispatch.Submit(s.queue, func() (struct{}, error) {
		s.stopStream()
		return struct{}{}, nil
	})
}

func (s *Source) startStream() error {
	if s.cancel != nil {
		return nil
	}
	st := s.session.Current()
	if st == nil {
		return ErrNotConfigured
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.streaming.Store(true)
	s.streams.Add(1)

	cfg := st.StreamConfig()
	device := st.Device
	go func() {
		defer close(done)
		defer s.streaming.Store(false)
		if err := device.Stream(ctx, cfg, s.deliver); err != nil && ctx.Err() == nil {
			s.logger.Warn("Capture stream failed: %v", err)
		}
	}()

	s.logger.Debug("Capture started on %s", device.ID())
	return nil
}

func (s *Source) stopStream() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
	s.logger.Debug("Capture stopped after %d frames", s.delivered.Load())
}

// deliver runs on the producer goroutine.
func (s *Source) deliver(frame pipeline.Frame) {
	s.delivered.Add(1)
	if ref := s.consumer.Load(); ref != nil {
		ref.c.ConsumeFrame(frame)
	}
}

// Reconfigure changes the session inside a begin/commit bracket. A running
// stream is stopped before and restarted after the change, so the hardware
// never observes partial state. fn may replace any field, including Device.
// A panic in fn discards the staged change and is returned as an error.
func (s *Source) Reconfigure(ctx context.Context, fn func(st *SessionState)) error {
	f := dispatch.Submit(s.queue, func() (struct{}, error) {
		wasRunning := s.cancel != nil
		s.stopStream()

		err := s.apply(fn)
		if err != nil {
			s.logger.Warn("Capture reconfiguration rejected: %v", err)
		}

		if wasRunning {
			if startErr := s.startStream(); startErr != nil {
				return struct{}{}, errors.Join(err, startErr)
			}
		}
		return struct{}{}, err
	})
	_, err := f.Wait(ctx)
	return err
}

func (s *Source) apply(fn func(st *SessionState)) (err error) {
	st, err := s.session.BeginConfiguration()
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			s.session.AbortConfiguration()
			err = fmt.Errorf("%w: reconfiguration panicked: %v", ErrInvalidConfiguration, r)
		}
	}()

	fn(st)
	return s.session.CommitConfiguration()
}

// RecommendedVideoSettings returns encoder settings matching the committed session.
func (s *Source) RecommendedVideoSettings() (ports.VideoSettings, error) {
	st := s.session.Current()
	if st == nil {
		return ports.VideoSettings{}, ErrNotConfigured
	}
	sc := st.StreamConfig()
	return ports.VideoSettings{
		Codec:     ports.CodecJPEG,
		Width:     sc.Width,
		Height:    sc.Height,
		FrameRate: sc.FrameRate,
		Quality:   DefaultJPEGQuality,
		Timescale: ports.DefaultTimescale,
	}, nil
}

// Session returns the capture session.
func (s *Source) Session() *Session { return s.session }

// Streaming reports whether the stream goroutine is running.
func (s *Source) Streaming() bool { return s.streaming.Load() }

// Stats returns the frame counters.
func (s *Source) Stats() Stats {
	return Stats{Delivered: s.delivered.Load(), Streams: s.streams.Load()}
}

// Close stops the stream and shuts the capture queue down.
func (s *Source) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if _, stopErr := s.Stop().Wait(context.Background()); stopErr != nil && !errors.Is(stopErr, dispatch.ErrClosed) {
			err = fmt.Errorf("stop capture: %w", stopErr)
		}
		s.queue.Close()
	})
	return err
}

// Package mp4writer records JPEG-compressed frames into fragmented MP4 files.
//
// A session compresses appended buffers on its own goroutine. The encode queue
// is bounded; its free space is what the input reports as ready for more data.
package mp4writer

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/user/camlab/pkg/pipeline"
	"github.com/user/camlab/pkg/ports"
)

const (
	// DefaultQueueDepth is the number of buffers waiting for compression.
	DefaultQueueDepth = 4

	// DefaultFragmentSamples is the number of samples per moof+mdat.
	DefaultFragmentSamples = 30
)

// Options configures the writer.
type Options struct {
	QueueDepth      int
	FragmentSamples int
}

// Factory implements ports.EncoderFactory.
type Factory struct {
	fs       ports.FileSystem
	renderer ports.Renderer
	logger   ports.Logger
	opts     Options
}

// New creates a factory writing through fs. renderer provides the JPEG codec.
func New(fs ports.FileSystem, renderer ports.Renderer, logger ports.Logger, opts Options) *Factory {
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = DefaultQueueDepth
	}
	if opts.FragmentSamples <= 0 {
		opts.FragmentSamples = DefaultFragmentSamples
	}
	return &Factory{
		fs:       fs,
		renderer: renderer,
		logger:   logger.WithComponent("mp4writer"),
		opts:     opts,
	}
}

// NewSession opens a session for path. The file is created by StartWriting.
func (f *Factory) NewSession(path string) (ports.EncoderSession, error) {
	if path == "" {
		return nil, fmt.Errorf("mp4writer: empty output path")
	}
	return &Session{
		path:    path,
		factory: f,
		done:    make(chan struct{}),
	}, nil
}

var _ ports.EncoderFactory = (*Factory)(nil)

// Session implements ports.EncoderSession.
type Session struct {
	path    string
	factory *Factory

	mu         sync.Mutex
	status     ports.EncoderStatus
	err        error
	settings   ports.VideoSettings
	input      *Input
	file       io.WriteCloser
	fileClosed bool
	mux        *muxer
	started    bool

	done chan struct{}
}

// AddVideoInput adds the only video input of the session.
func (s *Session) AddVideoInput(settings ports.VideoSettings) (ports.EncoderInput, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if settings.Codec != ports.CodecJPEG {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCodec, settings.Codec)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != ports.EncoderUnknown {
		return nil, ErrNotWriting
	}
	if s.input != nil {
		return nil, ErrInputExists
	}
	s.settings = settings
	s.input = &Input{
		session: s,
		jobs:    make(chan job, s.factory.opts.QueueDepth),
	}
	return s.input, nil
}

// StartWriting creates the output file, writes the header and starts the
// encode goroutine. The media timeline starts at at; earlier buffers are invalid.
func (s *Session) StartWriting(at time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != ports.EncoderUnknown {
		return ErrNotWriting
	}
	if s.input == nil {
		return ErrNoInput
	}

	file, err := s.factory.fs.Create(s.path)
	if err != nil {
		return s.failLocked(fmt.Errorf("create %s: %w", s.path, err))
	}
	mux := newMuxer(file, s.settings, s.factory.opts.FragmentSamples)
	if err := mux.writeInit(s.settings); err != nil {
		file.Close()
		return s.failLocked(err)
	}

	s.file = file
	s.mux = mux
	s.input.origin = at
	s.status = ports.EncoderWriting
	s.started = true
	go s.run()
	return nil
}

func (s *Session) run() {
	defer close(s.done)
	for j := range s.input.jobs {
		if s.Status() != ports.EncoderWriting {
			j.buf.Release()
			continue
		}
		data, err := s.encode(j.buf)
		j.buf.Release()
		if err != nil {
			s.fail(err)
			continue
		}
		if err := s.mux.add(data, j.pts); err != nil {
			s.fail(err)
		}
	}
}

func (s *Session) encode(buf *pipeline.PixelBuffer) ([]byte, error) {
	img := buf.Image()
	if img == nil {
		return nil, fmt.Errorf("no image view for %s buffer", buf.Format())
	}
	if b := img.Bounds(); b.Dx() != s.settings.Width || b.Dy() != s.settings.Height {
		img = s.factory.renderer.ResizeImage(img, s.settings.Width, s.settings.Height)
	}
	data, err := s.factory.renderer.EncodeImage(img, ports.FormatJPEG, s.settings.Quality)
	if err != nil {
		return nil, fmt.Errorf("compress frame: %w", err)
	}
	return data, nil
}

// Status returns the session status.
func (s *Session) Status() ports.EncoderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the error that failed the session.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLocked(err)
}

func (s *Session) failLocked(err error) error {
	if s.status == ports.EncoderUnknown || s.status == ports.EncoderWriting {
		s.status = ports.EncoderFailed
		s.err = err
		s.factory.logger.Warn("Session %s failed: %v", s.path, err)
	}
	return err
}

// Finish drains the encode queue, writes the remaining samples and closes the
// file. If ctx ends first the session keeps writing and Finish may be retried.
func (s *Session) Finish(ctx context.Context) error {
	s.mu.Lock()
	status, started := s.status, s.started
	s.mu.Unlock()
	if !started || (status != ports.EncoderWriting && status != ports.EncoderFailed) {
		if err := s.Err(); err != nil {
			return err
		}
		return ErrNotWriting
	}

	s.input.MarkAsFinished()
	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != ports.EncoderWriting {
		s.closeFileLocked()
		return s.err
	}
	if err := s.mux.close(); err != nil {
		s.closeFileLocked()
		return s.failLocked(err)
	}
	if err := s.closeFileLocked(); err != nil {
		return s.failLocked(fmt.Errorf("close %s: %w", s.path, err))
	}
	s.status = ports.EncoderCompleted
	s.factory.logger.Debug("Sealed %s: %d samples", s.path, s.mux.samples.Load())
	return nil
}

func (s *Session) closeFileLocked() error {
	if s.file == nil || s.fileClosed {
		return nil
	}
	s.fileClosed = true
	return s.file.Close()
}

// Cancel stops the session and removes the partial file.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.status == ports.EncoderCompleted || s.status == ports.EncoderCancelled {
		s.mu.Unlock()
		return
	}
	s.status = ports.EncoderCancelled
	started := s.started
	s.mu.Unlock()

	if !started {
		return
	}
	s.input.MarkAsFinished()
	<-s.done
	s.mu.Lock()
	s.closeFileLocked()
	s.mu.Unlock()
	if err := s.factory.fs.Remove(s.path); err != nil {
		s.factory.logger.Warn("Failed to remove %s: %v", s.path, err)
	}
}

// Samples returns the number of samples written to the file so far. It may be
// called while the session is writing.
func (s *Session) Samples() int {
	s.mu.Lock()
	mux := s.mux
	s.mu.Unlock()
	if mux == nil {
		return 0
	}
	return int(mux.samples.Load())
}

var _ ports.EncoderSession = (*Session)(nil)

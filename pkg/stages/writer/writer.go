// Package writer implements the recording stage. It owns at most one encoder
// session at a time, re-times frames against the first recorded frame and
// seals the output file on stop.
package writer

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	"github.com/user/camlab/pkg/dispatch"
	"github.com/user/camlab/pkg/pipeline"
	"github.com/user/camlab/pkg/ports"
)

// DefaultFileName is the fixed name of the output file.
const DefaultFileName = "record.mov"

// State is the writer lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateInitializing
	StateRecording
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateRecording:
		return "recording"
	case StateFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// Options configures a Writer.
type Options struct {
	OutputDir string
	FileName  string // Default DefaultFileName
}

// Result describes a sealed recording.
type Result struct {
	Path      string
	SessionID string
	Frames    int           // Frames appended to the encoder
	Dropped   int           // Frames dropped while recording
	Duration  time.Duration // Presentation time of the last appended frame
}

// Writer records frames into an encoder session.
type Writer struct {
	encoders ports.EncoderFactory
	fs       ports.FileSystem
	sink     ports.DebugSink
	logger   ports.Logger
	settings ports.VideoSettings
	path     string

	queue *dispatch.Queue

	state    atomic.Int32
	active   atomic.Pointer[recording]
	starting atomic.Pointer[dispatch.Future[struct{}]]
	closing  atomic.Bool

	stopMu   sync.Mutex
	stopping *dispatch.Future[Result]

	ignored atomic.Uint64
}

// New creates an idle writer producing files with the given settings.
func New(encoders ports.EncoderFactory, fs ports.FileSystem, sink ports.DebugSink, logger ports.Logger, settings ports.VideoSettings, opts Options) (*Writer, error) {
	if encoders == nil || fs == nil {
		return nil, fmt.Errorf("%w: missing encoder factory or file system", ErrInitialization)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}
	if opts.FileName == "" {
		opts.FileName = DefaultFileName
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}

	logger = logger.WithComponent("writer")
	return &Writer{
		encoders: encoders,
		fs:       fs,
		sink:     sink,
		logger:   logger,
		settings: settings,
		path:     filepath.Join(opts.OutputDir, opts.FileName),
		queue: dispatch.NewQueue("writer", func(name string, v any) {
			logger.Error("Panic on %s queue: %v", name, v)
		}),
	}, nil
}

// OutputPath returns the path recordings are written to.
func (w *Writer) OutputPath() string { return w.path }

// Settings returns the encoder settings.
func (w *Writer) Settings() ports.VideoSettings { return w.settings }

// State returns the current lifecycle state.
func (w *Writer) State() State { return State(w.state.Load()) }

// Start begins a recording session. It returns ErrAlreadyRecording unless the
// writer is idle. The output is prepared on the writer queue; the returned
// future resolves once frames are being recorded, or with the start error
// after which the writer is idle again. Frames arriving before that are dropped.
func (w *Writer) Start() (*dispatch.Future[struct{}], error) {
	if w.closing.Load() {
		return nil, ErrClosed
	}
	if !w.state.CompareAndSwap(int32(StateIdle), int32(StateInitializing)) {
		return nil, ErrAlreadyRecording
	}

	id := uuid.New().String()
	log := w.logger.WithField("session", id)
	f := dispatch.Submit(w.queue, func() (struct{}, error) {
		rec, err := w.open(id, log)
		if err != nil {
			w.state.Store(int32(StateIdle))
			log.Warn("Recording could not start: %v", err)
			return struct{}{}, err
		}
		if w.closing.Load() {
			rec.session.Cancel()
			w.state.Store(int32(StateIdle))
			log.Warn("Recording cancelled before it started")
			return struct{}{}, ErrClosed
		}
		w.active.Store(rec)
		w.state.Store(int32(StateRecording))
		log.Debug("Recording started: %s", rec.path)
		return struct{}{}, nil
	})
	w.starting.Store(f)
	return f, nil
}

// AwaitStart waits until a pending Start has either gone live or failed. It
// returns the start error, or ctx's error when ctx ends first. Without a
// pending Start it returns nil at once.
func (w *Writer) AwaitStart(ctx context.Context) error {
	f := w.starting.Load()
	if f == nil {
		return nil
	}
	_, err := f.Wait(ctx)
	return err
}

func (w *Writer) open(id string, log ports.Logger) (*recording, error) {
	dir := filepath.Dir(w.path)
	if err := w.fs.MkdirAll(dir); err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", ErrStartFailed, dir, err)
	}
	exists, err := w.fs.Exists(w.path)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", ErrStartFailed, w.path, err)
	}
	if exists {
		if err := w.fs.Remove(w.path); err != nil {
			return nil, fmt.Errorf("%w: remove previous recording: %w", ErrStartFailed, err)
		}
	}

	session, err := w.encoders.NewSession(w.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open encoder: %w", ErrStartFailed, err)
	}
	input, err := session.AddVideoInput(w.settings)
	if err != nil {
		session.Cancel()
		return nil, fmt.Errorf("%w: add video input: %w", ErrStartFailed, err)
	}
	if err := session.StartWriting(0); err != nil {
		session.Cancel()
		return nil, fmt.Errorf("%w: start writing: %w", ErrStartFailed, err)
	}
	if st := session.Status(); st != ports.EncoderWriting {
		session.Cancel()
		return nil, fmt.Errorf("%w: encoder %s after start", ErrStartFailed, st)
	}

	return &recording{
		id:      id,
		path:    w.path,
		session: session,
		input:   input,
		logger:  log,
	}, nil
}

// ConsumeFrame appends the frame to the live session. It does nothing unless
// the writer is recording. Frames the encoder is not ready for are dropped.
func (w *Writer) ConsumeFrame(frame pipeline.Frame) {
	if State(w.state.Load()) != StateRecording {
		w.ignored.Add(1)
		return
	}
	rec := w.active.Load()
	if rec == nil {
		w.ignored.Add(1)
		return
	}

	first, ok := rec.append(frame)
	if !ok {
		rec.logger.Debug("Frame %d dropped", frame.Sequence)
	}
	if first && w.sink != nil && w.sink.Enabled() && frame.Buffer != nil {
		w.saveFirstFrame(rec.id, frame.Buffer)
	}
}

// saveFirstFrame copies the frame and saves it off the producer goroutine.
func (w *Writer) saveFirstFrame(id string, buf *pipeline.PixelBuffer) {
	src := buf.Image()
	if src == nil {
		return
	}
	img := image.NewRGBA(src.Bounds())
	draw.Copy(img, image.Point{}, src, src.Bounds(), draw.Src, nil)
	w.queue.Async(func() {
		if err := w.sink.SaveSnapshot(id+"-first", img); err != nil {
			w.logger.Warn("Failed to save snapshot: %v", err)
		}
	})
}

// Stop finalizes the live session. It returns ErrNotRecording without a live
// session, and ErrStopFailed when the encoder failed or cannot take the end of
// stream yet. A failed session is closed with what it already wrote and the
// writer is idle again; a session that is not ready keeps recording.
// A Stop while a previous one is finalizing returns the same future.
func (w *Writer) Stop() (*dispatch.Future[Result], error) {
	w.stopMu.Lock()
	defer w.stopMu.Unlock()

	if w.stopping != nil {
		return w.stopping, nil
	}

	rec := w.active.Load()
	if rec == nil || State(w.state.Load()) != StateRecording {
		return nil, ErrNotRecording
	}

	if rec.session.Status() == ports.EncoderFailed {
		if w.state.CompareAndSwap(int32(StateRecording), int32(StateFinalizing)) {
			rec.close()
			w.active.Store(nil)
			w.state.Store(int32(StateIdle))
			// Runs before any later Start on the same queue.
			w.queue.Async(func() {
				if err := rec.session.Finish(context.Background()); err != nil {
					rec.logger.Warn("Failed recording closed: %v", err)
				}
			})
		}
		return nil, fmt.Errorf("%w: encoder failed: %w", ErrStopFailed, rec.session.Err())
	}
	if !rec.input.ReadyForMoreMediaData() {
		return nil, fmt.Errorf("%w: encoder input not ready", ErrStopFailed)
	}

	if !w.state.CompareAndSwap(int32(StateRecording), int32(StateFinalizing)) {
		return nil, ErrNotRecording
	}
	// From here no append can reach the session.
	stats := rec.close()
	w.active.Store(nil)
	rec.input.MarkAsFinished()

	f := dispatch.Submit(w.queue, func() (Result, error) {
		defer func() {
			w.stopMu.Lock()
			w.stopping = nil
			w.state.Store(int32(StateIdle))
			w.stopMu.Unlock()
		}()

		if err := rec.session.Finish(context.Background()); err != nil {
			rec.logger.Warn("Recording could not be finalized: %v", err)
			return Result{}, fmt.Errorf("%w: %w", ErrStopFailed, err)
		}

		res := Result{
			Path:      rec.path,
			SessionID: rec.id,
			Frames:    stats.frames,
			Dropped:   stats.dropped,
			Duration:  stats.lastPTS,
		}
		rec.logger.Debug("Recording sealed: %d frames, %d dropped, %v", res.Frames, res.Dropped, res.Duration)
		return res, nil
	})
	w.stopping = f
	return f, nil
}

// Ignored returns the number of frames received outside a recording.
func (w *Writer) Ignored() uint64 { return w.ignored.Load() }

// Close cancels the live session, including one still being opened, and
// shuts the writer queue down. Callers that want the recording kept must
// Stop it first.
func (w *Writer) Close() {
	w.closing.Store(true)
	if f := w.starting.Load(); f != nil {
		<-f.Done()
	}

	w.stopMu.Lock()
	if rec := w.active.Load(); rec != nil && w.state.CompareAndSwap(int32(StateRecording), int32(StateFinalizing)) {
		rec.close()
		w.active.Store(nil)
		rec.session.Cancel()
		w.state.Store(int32(StateIdle))
		rec.logger.Warn("Recording cancelled")
	}
	w.stopMu.Unlock()
	w.queue.Close()
}

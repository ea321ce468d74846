// Package orchestrator wires the capture, render and writer stages into one
// pipeline and owns their shared lifetime.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ideamans/go-l10n"

	"github.com/user/camlab/pkg/adapters/logger"
	"github.com/user/camlab/pkg/adapters/nullsink"
	"github.com/user/camlab/pkg/pipeline"
	"github.com/user/camlab/pkg/ports"
	"github.com/user/camlab/pkg/stages/bridge"
	"github.com/user/camlab/pkg/stages/capture"
	"github.com/user/camlab/pkg/stages/render"
	"github.com/user/camlab/pkg/stages/writer"
)

// ErrInitialization is returned by New when any stage cannot be built.
var ErrInitialization = errors.New("pipeline: initialization failed")

// Config contains all configuration for the pipeline.
type Config struct {
	Capture  capture.Config
	Textures bridge.Options
	Render   render.Options
	Writer   writer.Options

	// Quality overrides the recommended JPEG quality when not zero.
	Quality int

	// Effect is the initial effect.
	Effect pipeline.Effect
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Capture: capture.DefaultConfig(),
		Writer: writer.Options{
			OutputDir: ".",
			FileName:  writer.DefaultFileName,
		},
		Effect: pipeline.EffectNone,
	}
}

// Deps are the platform collaborators of a pipeline.
type Deps struct {
	Cameras    ports.CameraSystem
	Authorizer ports.Authorizer
	GPU        ports.GPUDevice
	Encoders   ports.EncoderFactory
	FS         ports.FileSystem
	Sink       ports.DebugSink // Optional
	Logger     ports.Logger    // Optional
}

// Stats aggregates the stage counters.
type Stats struct {
	Capture   capture.Stats
	Render    render.Stats
	Textures  bridge.CacheStats
	Writer    writer.State
	Streaming bool
}

// Pipeline is the running capture → render → writer chain.
type Pipeline struct {
	source     *capture.Source
	textures   *bridge.TextureCache
	compositor *render.Compositor
	writer     *writer.Writer
	sink       ports.DebugSink
	logger     ports.Logger

	mu     sync.Mutex
	closed bool
}

// New builds the stages in order (capture, renderer, writer) and wires them.
// Any failure is returned as ErrInitialization and nothing is left running.
func New(ctx context.Context, deps Deps, cfg Config) (*Pipeline, error) {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoop()
	}
	sink := deps.Sink
	if sink == nil {
		sink = nullsink.New()
	}

	source := capture.New(deps.Cameras, deps.Authorizer, log, cfg.Capture)
	if err := source.Configure(ctx); err != nil {
		source.Close()
		return nil, fmt.Errorf("%w: capture: %w", ErrInitialization, err)
	}

	textures := bridge.New(cfg.Textures)
	compositor, err := render.New(deps.GPU, textures, log, cfg.Render)
	if err != nil {
		source.Close()
		return nil, fmt.Errorf("%w: renderer: %w", ErrInitialization, err)
	}

	settings, err := source.RecommendedVideoSettings()
	if err != nil {
		compositor.Close()
		source.Close()
		return nil, fmt.Errorf("%w: writer: %w", ErrInitialization, err)
	}
	if cfg.Quality > 0 {
		settings.Quality = cfg.Quality
	}
	w, err := writer.New(deps.Encoders, deps.FS, sink, log, settings, cfg.Writer)
	if err != nil {
		compositor.Close()
		source.Close()
		return nil, fmt.Errorf("%w: writer: %w", ErrInitialization, err)
	}

	compositor.SetEffect(cfg.Effect)
	source.SetConsumer(compositor)
	compositor.SetConsumer(w)

	log.Info(l10n.F("Pipeline ready: %dx%d @ %.0f fps", settings.Width, settings.Height, settings.FrameRate))

	return &Pipeline{
		source:     source,
		textures:   textures,
		compositor: compositor,
		writer:     w,
		sink:       sink,
		logger:     log,
	}, nil
}

// StartStreaming starts frame production and waits until the stream runs.
func (p *Pipeline) StartStreaming(ctx context.Context) error {
	if _, err := p.source.Start().Wait(ctx); err != nil {
		return fmt.Errorf("start streaming: %w", err)
	}
	p.logger.Info(l10n.T("Streaming started"))
	return nil
}

// StopStreaming stops frame production. A live recording is finalized first
// and its result returned, and a recording still being opened is awaited and
// then finalized. When that fails the recording stays open for a later
// StopRecording, and the capture stream is stopped regardless.
func (p *Pipeline) StopStreaming(ctx context.Context) (*writer.Result, error) {
	var (
		result  *writer.Result
		stopErr error
	)
	if p.writer.State() == writer.StateInitializing {
		if err := p.writer.AwaitStart(ctx); err != nil && ctx.Err() != nil {
			stopErr = fmt.Errorf("await recording start: %w", err)
		}
	}
	if stopErr == nil && p.writer.State() == writer.StateRecording {
		p.logger.Warn(l10n.T("Recording active while streaming stops, finalizing it"))
		res, err := p.StopRecording(ctx)
		if err != nil {
			stopErr = err
		} else {
			result = &res
		}
	}

	if _, err := p.source.Stop().Wait(ctx); err != nil {
		return result, errors.Join(stopErr, fmt.Errorf("stop streaming: %w", err))
	}
	p.logger.Info(l10n.T("Streaming stopped"))
	return result, stopErr
}

// StartRecording opens a recording session and waits until frames are recorded.
func (p *Pipeline) StartRecording(ctx context.Context) error {
	f, err := p.writer.Start()
	if err != nil {
		return err
	}
	if _, err := f.Wait(ctx); err != nil {
		return err
	}
	p.logger.Info(l10n.F("Recording to %s", p.writer.OutputPath()))
	return nil
}

// StopRecording finalizes the recording and returns the sealed file.
func (p *Pipeline) StopRecording(ctx context.Context) (writer.Result, error) {
	f, err := p.writer.Stop()
	if err != nil {
		return writer.Result{}, err
	}
	res, err := f.Wait(ctx)
	if err != nil {
		p.logger.Error(l10n.F("Failed to finalize recording: %s", err))
		return writer.Result{}, err
	}

	p.logger.Info(l10n.F("Recording saved to %s (%d frames, %d dropped)", res.Path, res.Frames, res.Dropped))
	p.saveSummary(res)
	return res, nil
}

func (p *Pipeline) saveSummary(res writer.Result) {
	if !p.sink.Enabled() {
		return
	}
	summary := RecordingSummary{
		Path:       res.Path,
		SessionID:  res.SessionID,
		Frames:     res.Frames,
		Dropped:    res.Dropped,
		DurationMs: res.Duration.Milliseconds(),
		Effect:     p.compositor.Effect().String(),
		Settings:   p.writer.Settings(),
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return
	}
	if err := p.sink.SaveRecordingJSON(data); err != nil {
		p.logger.Warn(l10n.F("Failed to save recording summary: %s", err))
	}
}

// RecordingSummary is the debug record of a finished recording.
type RecordingSummary struct {
	Path       string              `json:"path"`
	SessionID  string              `json:"sessionId"`
	Frames     int                 `json:"frames"`
	Dropped    int                 `json:"dropped"`
	DurationMs int64               `json:"durationMs"`
	Effect     string              `json:"effect"`
	Settings   ports.VideoSettings `json:"settings"`
}

// SetEffect selects the effect for the next rendered frame.
func (p *Pipeline) SetEffect(e pipeline.Effect) {
	p.compositor.SetEffect(e)
}

// Effect returns the current effect.
func (p *Pipeline) Effect() pipeline.Effect {
	return p.compositor.Effect()
}

// BindSurface sets the presentation surface.
func (p *Pipeline) BindSurface(s ports.Surface) error {
	return p.compositor.BindSurface(s)
}

// FlushTextures drops idle textures, e.g. on memory pressure.
func (p *Pipeline) FlushTextures() {
	p.textures.Flush()
}

// Reconfigure changes the capture session; see capture.Source.Reconfigure.
// Recording settings keep the values the pipeline was built with.
func (p *Pipeline) Reconfigure(ctx context.Context, fn func(st *capture.SessionState)) error {
	return p.source.Reconfigure(ctx, fn)
}

// OutputPath returns the recording destination.
func (p *Pipeline) OutputPath() string {
	return p.writer.OutputPath()
}

// Stats returns the stage counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Capture:   p.source.Stats(),
		Render:    p.compositor.Stats(),
		Textures:  p.textures.Stats(),
		Writer:    p.writer.State(),
		Streaming: p.source.Streaming(),
	}
}

// Close stops streaming (finalizing a live recording) and releases every stage.
func (p *Pipeline) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	_, err := p.StopStreaming(ctx)
	p.source.SetConsumer(nil)
	p.compositor.Close()
	p.writer.Close()
	p.source.Close()
	return err
}

// Package main provides the CLI entry point for camlab.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/ideamans/go-l10n"

	"github.com/user/camlab/pkg/adapters/filesink"
	"github.com/user/camlab/pkg/adapters/ggrenderer"
	"github.com/user/camlab/pkg/adapters/logger"
	"github.com/user/camlab/pkg/adapters/mp4probe"
	"github.com/user/camlab/pkg/adapters/mp4writer"
	"github.com/user/camlab/pkg/adapters/nullsink"
	"github.com/user/camlab/pkg/adapters/osfilesystem"
	"github.com/user/camlab/pkg/adapters/permission"
	"github.com/user/camlab/pkg/adapters/softgpu"
	"github.com/user/camlab/pkg/adapters/testcamera"
	"github.com/user/camlab/pkg/adapters/wssurface"
	"github.com/user/camlab/pkg/config"
	"github.com/user/camlab/pkg/orchestrator"
	"github.com/user/camlab/pkg/ports"
)

// CLI defines the command-line interface with subcommands.
type CLI struct {
	Run     RunCmd     `cmd:"" help:"Stream a test camera through the pipeline and record it."`
	Probe   ProbeCmd   `cmd:"" help:"Inspect a recorded movie file."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// RunCmd defines the run subcommand.
type RunCmd struct {
	Config string `short:"c" type:"existingfile" help:"YAML configuration file, reloaded when it changes."`

	// Timeline
	Duration    time.Duration `short:"t" default:"10s" help:"How long to stream (0 = until interrupted)."`
	RecordAfter time.Duration `default:"1s" help:"Delay between streaming start and recording start."`
	RecordFor   time.Duration `default:"5s" help:"Recording length (0 = until streaming stops)."`

	// Overrides
	Effect    *string `short:"e" enum:"none,vhs" help:"Render effect (none, vhs)."`
	OutputDir *string `short:"o" help:"Directory for the recorded movie."`
	Quality   *int    `short:"q" help:"JPEG quality of recorded frames (1-100)."`
	Listen    *string `help:"Serve the live preview on this address (e.g., :8080)."`

	// Debug options
	Debug    bool   `short:"d" help:"Enable debug output."`
	DebugDir string `default:"./debug" help:"Directory for debug output."`

	// Logging options
	LogLevel *string `short:"l" enum:"debug,info,warn,error" help:"Log level (debug, info, warn, error)."`
	Quiet    bool    `short:"Q" help:"Suppress all log output."`
}

// ProbeCmd defines the probe subcommand.
type ProbeCmd struct {
	File string `arg:"" type:"existingfile" help:"Movie file to inspect."`
	JSON bool   `help:"Print the summary as JSON."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

var version = "dev"

func main() {
	cli := CLI{}

	ctx := kong.Parse(&cli,
		kong.Name("camlab"),
		kong.Description("Capture, render and record camera frames."),
		kong.UsageOnError(),
	)

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

// Run executes the run command.
func (cmd *RunCmd) Run() error {
	cfg, err := cmd.buildConfig()
	if err != nil {
		return err
	}

	// Create logger
	var log ports.Logger
	if cmd.Quiet {
		log = logger.NewNoop()
	} else {
		log = logger.NewConsole(cfg.Level())
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Warn(l10n.T("Interrupted, shutting down..."))
		cancel()
	}()

	pcfg, err := cfg.ToPipelineConfig()
	if err != nil {
		return err
	}
	devices, err := cfg.Camera.DeviceTypes()
	if err != nil {
		return err
	}

	// Create adapters
	fs := osfilesystem.New()
	renderer := ggrenderer.New()
	cameras := testcamera.New(renderer, log, testcamera.Options{
		DeviceTypes: devices,
		PoolSize:    cfg.Camera.PoolSize,
	})
	gpu := softgpu.New(renderer, log, softgpu.Options{MaxInFlight: cfg.Render.MaxInFlight})
	encoders := mp4writer.New(fs, renderer, log, mp4writer.Options{
		QueueDepth:      cfg.Writer.QueueDepth,
		FragmentSamples: cfg.Writer.FragmentSamples,
	})

	// Create debug sink
	var sink ports.DebugSink
	if cfg.Debug.Enabled {
		if err := fs.MkdirAll(cfg.Debug.Dir); err != nil {
			return fmt.Errorf("create debug directory: %w", err)
		}
		sink = filesink.New(cfg.Debug.Dir, fs, renderer)
	} else {
		sink = nullsink.New()
	}

	if err := fs.MkdirAll(pcfg.Writer.OutputDir); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	p, err := orchestrator.New(ctx, orchestrator.Deps{
		Cameras:    cameras,
		Authorizer: permission.GrantAll(),
		GPU:        gpu,
		Encoders:   encoders,
		FS:         fs,
		Sink:       sink,
		Logger:     log,
	}, pcfg)
	if err != nil {
		return err
	}
	defer p.Close(context.Background())

	if cfg.Preview.Listen != "" {
		stop, err := servePreview(p, renderer, log, cfg.Preview)
		if err != nil {
			return err
		}
		defer stop()
	}

	if cmd.Config != "" {
		go func() {
			err := config.Watch(ctx, cmd.Config, func(c config.Config) {
				e, err := c.Effect()
				if err != nil {
					log.Warn(l10n.F("Failed to reload configuration: %s", err.Error()))
					return
				}
				p.SetEffect(e)
			}, func(err error) {
				log.Warn(l10n.F("Failed to reload configuration: %s", err.Error()))
			})
			if err != nil {
				log.Warn(l10n.F("Failed to reload configuration: %s", err.Error()))
			}
		}()
	}

	if err := p.StartStreaming(ctx); err != nil {
		return err
	}

	var results []string
	runErr := cmd.timeline(ctx, p, &results)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	res, err := p.StopStreaming(stopCtx)
	if res != nil {
		results = append(results, res.Path)
	}
	log.Debug("Final stats: %+v", p.Stats())

	for _, path := range results {
		printSummary(path)
	}
	return errors.Join(runErr, err)
}

// timeline starts and stops the recording on the configured schedule until
// the streaming duration elapses or ctx is cancelled.
func (cmd *RunCmd) timeline(ctx context.Context, p *orchestrator.Pipeline, results *[]string) error {
	var end <-chan time.Time
	if cmd.Duration > 0 {
		end = time.After(cmd.Duration)
	}
	start := time.After(cmd.RecordAfter)
	var stop <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-end:
			return nil
		case <-start:
			start = nil
			if err := p.StartRecording(ctx); err != nil {
				return err
			}
			if cmd.RecordFor > 0 {
				stop = time.After(cmd.RecordFor)
			}
		case <-stop:
			stop = nil
			res, err := p.StopRecording(ctx)
			if err != nil {
				return err
			}
			*results = append(*results, res.Path)
		}
	}
}

// buildConfig loads the configuration file and applies CLI overrides.
func (cmd *RunCmd) buildConfig() (config.Config, error) {
	cfg := config.Defaults()
	if cmd.Config != "" {
		c, err := config.LoadFromFile(cmd.Config)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = c
	}

	if cmd.Effect != nil {
		cfg.Render.Effect = *cmd.Effect
	}
	if cmd.OutputDir != nil {
		cfg.Writer.OutputDir = *cmd.OutputDir
	}
	if cmd.Quality != nil {
		cfg.Writer.Quality = *cmd.Quality
	}
	if cmd.Listen != nil {
		cfg.Preview.Listen = *cmd.Listen
	}
	if cmd.Debug {
		cfg.Debug.Enabled = true
		cfg.Debug.Dir = cmd.DebugDir
	}
	if cmd.LogLevel != nil {
		cfg.LogLevel = *cmd.LogLevel
	}

	return cfg, nil
}

// servePreview binds a WebSocket preview surface and serves it over HTTP.
func servePreview(p *orchestrator.Pipeline, renderer ports.Renderer, log ports.Logger, cfg config.PreviewConfig) (func(), error) {
	surface, err := wssurface.New(renderer, log, wssurface.Options{
		Width:   cfg.Width,
		Height:  cfg.Height,
		Quality: cfg.Quality,
	})
	if err != nil {
		return nil, err
	}
	if err := p.BindSurface(surface); err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           surface.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(l10n.F("Preview server failed: %s", err.Error()))
		}
	}()
	log.Info(l10n.F("Preview available at http://%s/snapshot.jpg", cfg.Listen))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		surface.Close()
	}, nil
}

func printSummary(path string) {
	s, err := mp4probe.ProbeFile(path)
	if err != nil {
		fmt.Println(l10n.F("Could not inspect %s: %s", path, err.Error()))
		return
	}
	fmt.Println(l10n.F("Output saved to %s", path))
	fmt.Println(l10n.F("Frames: %d, Duration: %dms", s.Samples, s.Duration.Milliseconds()))
}

// Run executes the probe command.
func (cmd *ProbeCmd) Run() error {
	s, err := mp4probe.ProbeFile(cmd.File)
	if err != nil {
		return err
	}

	if cmd.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	fmt.Println(l10n.F("Codec: %s", s.Codec))
	fmt.Println(l10n.F("Size: %dx%d", s.Width, s.Height))
	fmt.Println(l10n.F("Fragments: %d", s.Fragments))
	fmt.Println(l10n.F("Frames: %d, Duration: %dms", s.Samples, s.Duration.Milliseconds()))
	fmt.Println(l10n.F("File size: %d bytes", s.Bytes))
	return nil
}

// Run executes the version command.
func (cmd *VersionCmd) Run() error {
	fmt.Println(l10n.F("camlab version %s", version))
	return nil
}

package orchestrator_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/camlab/pkg/adapters/ggrenderer"
	"github.com/user/camlab/pkg/adapters/logger"
	"github.com/user/camlab/pkg/adapters/mp4probe"
	"github.com/user/camlab/pkg/adapters/mp4writer"
	"github.com/user/camlab/pkg/adapters/osfilesystem"
	"github.com/user/camlab/pkg/adapters/permission"
	"github.com/user/camlab/pkg/adapters/softgpu"
	"github.com/user/camlab/pkg/adapters/testcamera"
	"github.com/user/camlab/pkg/adapters/wssurface"
	"github.com/user/camlab/pkg/orchestrator"
	"github.com/user/camlab/pkg/pipeline"
	"github.com/user/camlab/pkg/ports"
	"github.com/user/camlab/pkg/stages/capture"
	"github.com/user/camlab/pkg/stages/writer"
)

// TestPipeline_RecordsTestCamera runs the real adapters end to end.
func TestPipeline_RecordsTestCamera(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end recording in short mode")
	}

	log := logger.NewNoop()
	renderer := ggrenderer.New()
	fs := osfilesystem.New()

	cfg := orchestrator.DefaultConfig()
	cfg.Capture.Preset = capture.PresetVGA640x480
	cfg.Capture.FrameRate = 15
	cfg.Capture.DeviceTypes = []ports.DeviceType{ports.DeviceWideAngleCamera}
	cfg.Writer.OutputDir = filepath.Join(t.TempDir(), "out")
	cfg.Effect = pipeline.EffectVHS

	ctx := context.Background()
	p, err := orchestrator.New(ctx, orchestrator.Deps{
		Cameras:    testcamera.New(renderer, log, testcamera.Options{}),
		Authorizer: permission.GrantAll(),
		GPU:        softgpu.New(renderer, log, softgpu.Options{}),
		Encoders:   mp4writer.New(fs, renderer, log, mp4writer.Options{FragmentSamples: 4}),
		FS:         fs,
		Logger:     log,
	}, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer p.Close(ctx)

	surface, err := wssurface.New(renderer, log, wssurface.Options{Width: 120, Height: 160})
	if err != nil {
		t.Fatalf("wssurface.New failed: %v", err)
	}
	defer surface.Close()
	if err := p.BindSurface(surface); err != nil {
		t.Fatalf("BindSurface failed: %v", err)
	}

	if err := p.StartStreaming(ctx); err != nil {
		t.Fatalf("StartStreaming failed: %v", err)
	}
	if err := p.StartRecording(ctx); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}
	time.Sleep(800 * time.Millisecond)

	var res writer.Result
	deadline := time.Now().Add(5 * time.Second)
	for {
		res, err = p.StopRecording(ctx)
		if err == nil {
			break
		}
		if !errors.Is(err, writer.ErrStopFailed) || time.Now().After(deadline) {
			t.Fatalf("StopRecording failed: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	if res.Frames == 0 {
		t.Fatal("expected recorded frames")
	}
	if res.Path != p.OutputPath() {
		t.Errorf("expected path %s, got %s", p.OutputPath(), res.Path)
	}

	s, err := mp4probe.ProbeFile(res.Path)
	if err != nil {
		t.Fatalf("ProbeFile failed: %v", err)
	}
	if s.Codec != mp4writer.SampleEntryType {
		t.Errorf("expected codec %s, got %s", mp4writer.SampleEntryType, s.Codec)
	}
	if s.Width != 480 || s.Height != 640 {
		t.Errorf("expected 480x640 portrait video, got %dx%d", s.Width, s.Height)
	}
	if s.Samples != res.Frames {
		t.Errorf("expected %d samples, got %d", res.Frames, s.Samples)
	}
	if len(s.Timestamps) == 0 || s.Timestamps[0] != 0 {
		t.Errorf("expected the first sample at 0, got %v", s.Timestamps)
	}
	for i := 1; i < len(s.Timestamps); i++ {
		if s.Timestamps[i] <= s.Timestamps[i-1] {
			t.Fatalf("timestamps not increasing at %d: %v", i, s.Timestamps)
		}
	}

	if _, err := p.StopStreaming(ctx); err != nil {
		t.Fatalf("StopStreaming failed: %v", err)
	}
	st := p.Stats()
	if st.Streaming {
		t.Error("expected streaming to be stopped")
	}
	if st.Render.Forwarded == 0 || st.Capture.Delivered < st.Render.Received {
		t.Errorf("unexpected stats %+v", st)
	}
	if st.Render.Completed == 0 {
		t.Errorf("expected completed GPU work, got %+v", st.Render)
	}

	// Presents run on the GPU queue after completion; give the last one a moment.
	deadline = time.Now().Add(2 * time.Second)
	for surface.Stats().Presented == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if surface.Stats().Presented == 0 {
		t.Error("expected presented preview frames")
	}
}

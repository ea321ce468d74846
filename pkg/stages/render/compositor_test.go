package render

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/user/camlab/pkg/adapters/logger"
	"github.com/user/camlab/pkg/mocks"
	"github.com/user/camlab/pkg/pipeline"
	"github.com/user/camlab/pkg/ports"
	"github.com/user/camlab/pkg/stages/bridge"
)

type recordingConsumer struct {
	mu     sync.Mutex
	frames []pipeline.Frame
}

func (c *recordingConsumer) ConsumeFrame(frame pipeline.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
}

func newCompositor(t *testing.T, gpu *mocks.GPUDevice) *Compositor {
	t.Helper()
	c, err := New(gpu, bridge.New(bridge.Options{}), logger.NewNoop(), Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

// feed pushes n frames and releases them the way a capture device does.
func feed(c *Compositor, from, n int) []pipeline.Frame {
	frames := make([]pipeline.Frame, 0, n)
	for i := from; i < from+n; i++ {
		f := mocks.NewFrame(4, 4, uint64(i), time.Duration(i)*33*time.Millisecond)
		c.ConsumeFrame(f)
		f.Buffer.Release()
		frames = append(frames, f)
	}
	return frames
}

func TestNew_CompilesPipelines(t *testing.T) {
	gpu := &mocks.GPUDevice{}
	newCompositor(t, gpu)

	if len(gpu.Pipelines) != 2 {
		t.Fatalf("expected 2 pipelines, got %d", len(gpu.Pipelines))
	}
	for _, p := range gpu.Pipelines {
		if p.VertexFunction.Name() != VertexFunction {
			t.Errorf("expected vertex function %s, got %s", VertexFunction, p.VertexFunction.Name())
		}
		if p.PixelFormat != pipeline.PixelFormatRGBA32 || p.SampleCount != 1 {
			t.Errorf("unexpected descriptor %+v", p)
		}
	}
	if gpu.Pipelines[0].FragmentFunction.Name() != DisplayFunction || gpu.Pipelines[1].FragmentFunction.Name() != VHSFunction {
		t.Errorf("unexpected fragment functions %s, %s",
			gpu.Pipelines[0].FragmentFunction.Name(), gpu.Pipelines[1].FragmentFunction.Name())
	}
}

func TestNew_InitializationFailures(t *testing.T) {
	tests := []struct {
		name string
		gpu  *mocks.GPUDevice
	}{
		{"missing vertex function", &mocks.GPUDevice{MissingFunctions: map[string]bool{VertexFunction: true}}},
		{"missing effect function", &mocks.GPUDevice{MissingFunctions: map[string]bool{VHSFunction: true}}},
		{"pipeline compile error", &mocks.GPUDevice{
			MakeRenderPipelineStateFunc: func(desc ports.RenderPipelineDescriptor) (ports.RenderPipelineState, error) {
				return nil, errors.New("bad shader")
			},
		}},
		{"command queue error", &mocks.GPUDevice{
			MakeCommandQueueFunc: func() (ports.CommandQueue, error) { return nil, errors.New("no queue") },
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.gpu, bridge.New(bridge.Options{}), logger.NewNoop(), Options{})
			if !errors.Is(err, ErrInitialization) {
				t.Errorf("expected ErrInitialization, got %v", err)
			}
		})
	}
}

func TestCompositor_DrawsFullScreenQuad(t *testing.T) {
	gpu := &mocks.GPUDevice{}
	c := newCompositor(t, gpu)
	surface := mocks.NewSurface(4, 4)
	if err := c.BindSurface(surface); err != nil {
		t.Fatalf("BindSurface failed: %v", err)
	}

	frames := feed(c, 0, 1)

	draws := gpu.DrawCalls()
	if len(draws) != 1 {
		t.Fatalf("expected 1 draw, got %d", len(draws))
	}
	d := draws[0]
	if d.Primitive != ports.PrimitiveTriangleStrip || d.VertexCount != 4 {
		t.Errorf("expected 4-vertex triangle strip, got %+v", d)
	}
	if !d.Cleared {
		t.Error("expected target cleared before drawing")
	}
	if !d.TextureValid {
		t.Error("expected texture valid while drawing")
	}
	if surface.PresentedCount() != 1 {
		t.Errorf("expected 1 present, got %d", surface.PresentedCount())
	}
	if frames[0].Buffer.Valid() {
		t.Error("expected frame buffer released once the GPU work completed")
	}
}

func TestCompositor_ForwardsEveryFrame(t *testing.T) {
	commits := 0
	gpu := &mocks.GPUDevice{
		CommitFunc: func() error {
			commits++
			if commits%2 == 0 {
				return errors.New("queue full")
			}
			return nil
		},
	}
	c, err := New(gpu, bridge.New(bridge.Options{MaxTextures: 1}), logger.NewNoop(), Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	surface := mocks.NewSurface(4, 4)
	c.BindSurface(surface)
	downstream := &recordingConsumer{}
	c.SetConsumer(downstream)

	frames := feed(c, 0, 4)
	surface.Unavailable.Store(true)
	frames = append(frames, feed(c, 4, 3)...)

	// A frame with an unsupported buffer still goes downstream.
	c.ConsumeFrame(pipeline.Frame{Sequence: 7})

	st := c.Stats()
	if st.Received != 8 || st.Forwarded != 8 {
		t.Fatalf("expected 8 received and forwarded, got %+v", st)
	}
	if len(downstream.frames) != 8 {
		t.Fatalf("expected 8 downstream frames, got %d", len(downstream.frames))
	}
	for i, f := range frames {
		if downstream.frames[i].Buffer != f.Buffer || downstream.frames[i].Sequence != f.Sequence {
			t.Errorf("frame %d forwarded out of order or modified", i)
		}
	}
	if st.GPUErrors != 2 {
		t.Errorf("expected 2 GPU errors, got %d", st.GPUErrors)
	}
	if st.DrawableDrops != 3 {
		t.Errorf("expected 3 drawable drops, got %d", st.DrawableDrops)
	}
	if st.TextureDrops != 1 {
		t.Errorf("expected 1 texture drop, got %d", st.TextureDrops)
	}
	if len(surface.Discarded) != 2 {
		t.Errorf("expected failed commits to discard their drawable, got %d", len(surface.Discarded))
	}
}

func TestCompositor_NoSurfaceStillForwards(t *testing.T) {
	gpu := &mocks.GPUDevice{}
	c := newCompositor(t, gpu)
	downstream := &recordingConsumer{}
	c.SetConsumer(downstream)

	feed(c, 0, 3)

	if len(downstream.frames) != 3 {
		t.Errorf("expected 3 forwarded frames, got %d", len(downstream.frames))
	}
	if len(gpu.DrawCalls()) != 0 {
		t.Error("expected no draws without a surface")
	}
}

func TestCompositor_EffectSwitchAppliesOnNextFrame(t *testing.T) {
	gpu := &mocks.GPUDevice{}
	c := newCompositor(t, gpu)
	c.BindSurface(mocks.NewSurface(4, 4))

	feed(c, 0, 6)
	c.SetEffect(pipeline.EffectVHS)
	feed(c, 6, 4)

	got := gpu.DrawnPipelines()
	want := []string{"display", "display", "display", "display", "display", "display", "vhs", "vhs", "vhs", "vhs"}
	if len(got) != len(want) {
		t.Fatalf("expected %d draws, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d rendered with %s, want %s", i, got[i], want[i])
		}
	}
}

func TestCompositor_UnknownEffectIgnored(t *testing.T) {
	c := newCompositor(t, &mocks.GPUDevice{})
	c.SetEffect(pipeline.EffectVHS)
	c.SetEffect(pipeline.Effect(42))
	if c.Effect() != pipeline.EffectVHS {
		t.Errorf("expected vhs to remain, got %v", c.Effect())
	}
}

func TestCompositor_BindSurfaceIdempotent(t *testing.T) {
	c := newCompositor(t, &mocks.GPUDevice{})
	a := mocks.NewSurface(4, 4)
	b := mocks.NewSurface(4, 4)

	c.BindSurface(a)
	c.BindSurface(a)
	if a.ConfigureCount() != 1 {
		t.Errorf("expected surface configured once, got %d", a.ConfigureCount())
	}
	if a.ConfigureCalls[0].DeviceName != "mock-gpu" {
		t.Errorf("expected device name passed to surface, got %q", a.ConfigureCalls[0].DeviceName)
	}

	c.BindSurface(b)
	if b.ConfigureCount() != 1 {
		t.Errorf("expected new surface configured, got %d", b.ConfigureCount())
	}

	c.BindSurface(nil)
	feed(c, 0, 1)
	if b.PresentedCount() != 0 {
		t.Error("expected nothing presented after unbinding")
	}
}

func TestCompositor_BindSurfaceConfigureError(t *testing.T) {
	c := newCompositor(t, &mocks.GPUDevice{})
	s := mocks.NewSurface(4, 4)
	s.ConfigureFunc = func(cfg ports.SurfaceConfig) error { return errors.New("format not supported") }

	if err := c.BindSurface(s); err == nil {
		t.Fatal("expected error")
	}
	feed(c, 0, 1)
	if s.PresentedCount() != 0 {
		t.Error("expected surface to stay unbound")
	}
}

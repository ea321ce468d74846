package mp4writer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"testing"
	"time"

	"github.com/user/camlab/pkg/adapters/logger"
	"github.com/user/camlab/pkg/adapters/mp4probe"
	"github.com/user/camlab/pkg/mocks"
	"github.com/user/camlab/pkg/pipeline"
	"github.com/user/camlab/pkg/ports"
)

const testPath = "out/record.mov"

var testSettings = ports.VideoSettings{
	Codec:     ports.CodecJPEG,
	Width:     4,
	Height:    4,
	FrameRate: 30,
	Quality:   80,
	Timescale: ports.DefaultTimescale,
}

func newBuffer(t *testing.T, w, h int) *pipeline.PixelBuffer {
	t.Helper()
	buf, err := pipeline.NewPixelBuffer(pipeline.PixelFormatBGRA32, w, h)
	if err != nil {
		t.Fatalf("NewPixelBuffer failed: %v", err)
	}
	return buf
}

func startSession(t *testing.T, f *Factory) (*Session, ports.EncoderInput) {
	t.Helper()
	es, err := f.NewSession(testPath)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	s := es.(*Session)
	in, err := s.AddVideoInput(testSettings)
	if err != nil {
		t.Fatalf("AddVideoInput failed: %v", err)
	}
	if err := s.StartWriting(0); err != nil {
		t.Fatalf("StartWriting failed: %v", err)
	}
	if s.Status() != ports.EncoderWriting {
		t.Fatalf("expected writing, got %s", s.Status())
	}
	return s, in
}

func appendFrame(t *testing.T, in ports.EncoderInput, buf *pipeline.PixelBuffer, pts time.Duration) {
	t.Helper()
	err := in.Append(buf, pts)
	buf.Release()
	if err != nil {
		t.Fatalf("Append at %v failed: %v", pts, err)
	}
}

func ticks(n uint64) time.Duration {
	return time.Duration(n * uint64(time.Second) / ports.DefaultTimescale)
}

func TestSession_WritesFragmentedFile(t *testing.T) {
	fs := mocks.NewFileSystem()
	r := &mocks.Renderer{}
	f := New(fs, r, logger.NewNoop(), Options{FragmentSamples: 2})
	s, in := startSession(t, f)

	bufs := []*pipeline.PixelBuffer{newBuffer(t, 4, 4), newBuffer(t, 4, 4), newBuffer(t, 4, 4)}
	for i, buf := range bufs {
		appendFrame(t, in, buf, time.Duration(i)*50*time.Millisecond)
	}
	in.MarkAsFinished()
	if err := s.Finish(context.Background()); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	if s.Status() != ports.EncoderCompleted {
		t.Errorf("expected completed, got %s", s.Status())
	}
	for i, buf := range bufs {
		if buf.Valid() {
			t.Errorf("buffer %d still retained after finish", i)
		}
	}
	if r.EncodeCount() != 3 || r.EncodeCalls[0].Quality != 80 || r.EncodeCalls[0].Format != ports.FormatJPEG {
		t.Errorf("unexpected encode calls %+v", r.EncodeCalls)
	}

	data, ok := fs.GetFile(testPath)
	if !ok {
		t.Fatal("output file not written")
	}
	summary, err := mp4probe.ProbeBytes(data)
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if summary.Codec != SampleEntryType || summary.Timescale != ports.DefaultTimescale {
		t.Errorf("unexpected track %+v", summary)
	}
	if summary.Width != 4 || summary.Height != 4 {
		t.Errorf("expected 4x4, got %dx%d", summary.Width, summary.Height)
	}
	if summary.Samples != 3 || summary.Fragments != 2 {
		t.Errorf("expected 3 samples in 2 fragments, got %d in %d", summary.Samples, summary.Fragments)
	}
	want := []time.Duration{0, ticks(30), ticks(60)}
	for i := range want {
		if i >= len(summary.Timestamps) || summary.Timestamps[i] != want[i] {
			t.Fatalf("expected timestamps %v, got %v", want, summary.Timestamps)
		}
	}
	// Last sample lasts one frame (20 ticks at 30 fps).
	if summary.Duration != ticks(80) {
		t.Errorf("expected duration %v, got %v", ticks(80), summary.Duration)
	}
}

func TestSession_StartOffset(t *testing.T) {
	fs := mocks.NewFileSystem()
	f := New(fs, &mocks.Renderer{}, logger.NewNoop(), Options{})
	es, _ := f.NewSession(testPath)
	s := es.(*Session)
	in, err := s.AddVideoInput(testSettings)
	if err != nil {
		t.Fatalf("AddVideoInput failed: %v", err)
	}
	if err := s.StartWriting(time.Second); err != nil {
		t.Fatalf("StartWriting failed: %v", err)
	}

	early := newBuffer(t, 4, 4)
	if err := in.Append(early, 500*time.Millisecond); err == nil {
		t.Error("expected error for buffer before session start")
	}
	early.Release()

	appendFrame(t, in, newBuffer(t, 4, 4), time.Second+100*time.Millisecond)
	if err := s.Finish(context.Background()); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	data, _ := fs.GetFile(testPath)
	summary, err := mp4probe.ProbeBytes(data)
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if len(summary.Timestamps) != 1 || summary.Timestamps[0] != 100*time.Millisecond {
		t.Errorf("expected one sample at 100ms, got %v", summary.Timestamps)
	}
}

func TestInput_NotReadyWhenQueueFull(t *testing.T) {
	entered := make(chan struct{}, 4)
	release := make(chan struct{})
	r := &mocks.Renderer{
		EncodeImageFunc: func(img image.Image, format ports.ImageFormat, quality int) ([]byte, error) {
			entered <- struct{}{}
			<-release
			return []byte{0xFF, 0xD8, 0xFF, 0xD9}, nil
		},
	}
	f := New(mocks.NewFileSystem(), r, logger.NewNoop(), Options{QueueDepth: 1})
	s, in := startSession(t, f)

	appendFrame(t, in, newBuffer(t, 4, 4), 0)
	<-entered

	if !in.ReadyForMoreMediaData() {
		t.Fatal("expected ready while the queue is empty")
	}
	appendFrame(t, in, newBuffer(t, 4, 4), 33*time.Millisecond)
	if in.ReadyForMoreMediaData() {
		t.Error("expected not ready with a full queue")
	}

	buf := newBuffer(t, 4, 4)
	if err := in.Append(buf, 66*time.Millisecond); !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}
	buf.Release()
	if buf.Valid() {
		t.Error("rejected buffer must not stay retained")
	}
	// The first sample is held back until the next one arrives.
	if n := s.Samples(); n != 0 {
		t.Errorf("expected no samples flushed while encoding, got %d", n)
	}

	close(release)
	if err := s.Finish(context.Background()); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if s.Samples() != 2 {
		t.Errorf("expected 2 samples, got %d", s.Samples())
	}
}

func TestSession_SamplesWhileWriting(t *testing.T) {
	f := New(mocks.NewFileSystem(), &mocks.Renderer{}, logger.NewNoop(), Options{FragmentSamples: 2, QueueDepth: 16})
	s, in := startSession(t, f)

	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		last := 0
		for {
			select {
			case <-stop:
				done <- nil
				return
			default:
			}
			n := s.Samples()
			if n < last {
				done <- fmt.Errorf("sample count went back from %d to %d", last, n)
				return
			}
			last = n
		}
	}()

	for i := 0; i < 10; i++ {
		appendFrame(t, in, newBuffer(t, 4, 4), time.Duration(i)*33*time.Millisecond)
	}
	in.MarkAsFinished()
	if err := s.Finish(context.Background()); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	close(stop)
	if err := <-done; err != nil {
		t.Error(err)
	}
	if n := s.Samples(); n != 10 {
		t.Errorf("expected 10 samples, got %d", n)
	}
}

func TestInput_AppendAfterFinish(t *testing.T) {
	f := New(mocks.NewFileSystem(), &mocks.Renderer{}, logger.NewNoop(), Options{})
	s, in := startSession(t, f)
	in.MarkAsFinished()
	in.MarkAsFinished()

	buf := newBuffer(t, 4, 4)
	defer buf.Release()
	if err := in.Append(buf, 0); !errors.Is(err, ErrFinished) {
		t.Errorf("expected ErrFinished, got %v", err)
	}
	if in.ReadyForMoreMediaData() {
		t.Error("finished input must not be ready")
	}
	if err := s.Finish(context.Background()); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
}

func TestSession_ResizesMismatchedBuffers(t *testing.T) {
	r := &mocks.Renderer{}
	f := New(mocks.NewFileSystem(), r, logger.NewNoop(), Options{})
	s, in := startSession(t, f)

	appendFrame(t, in, newBuffer(t, 8, 6), 0)
	if err := s.Finish(context.Background()); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if r.EncodeCount() != 1 || r.EncodeCalls[0].Width != 4 || r.EncodeCalls[0].Height != 4 {
		t.Errorf("expected one 4x4 encode, got %+v", r.EncodeCalls)
	}
}

func TestSession_EncodeFailure(t *testing.T) {
	boom := errors.New("boom")
	r := &mocks.Renderer{
		EncodeImageFunc: func(img image.Image, format ports.ImageFormat, quality int) ([]byte, error) {
			return nil, boom
		},
	}
	fs := mocks.NewFileSystem()
	f := New(fs, r, logger.NewNoop(), Options{})
	s, in := startSession(t, f)

	appendFrame(t, in, newBuffer(t, 4, 4), 0)
	if err := s.Finish(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected encode error, got %v", err)
	}
	if s.Status() != ports.EncoderFailed || !errors.Is(s.Err(), boom) {
		t.Errorf("expected failed session, got %s (%v)", s.Status(), s.Err())
	}
	// Finish on a failed session closes the file and keeps what was written.
	if _, ok := fs.GetFile(testPath); !ok || len(fs.RemovedPaths()) != 0 {
		t.Errorf("expected partial file kept after Finish, removed %v", fs.RemovedPaths())
	}

	s.Cancel()
	if got := fs.RemovedPaths(); len(got) != 1 || got[0] != testPath {
		t.Errorf("expected partial file removed, got %v", got)
	}
}

func TestSession_Cancel(t *testing.T) {
	fs := mocks.NewFileSystem()
	f := New(fs, &mocks.Renderer{}, logger.NewNoop(), Options{})
	s, in := startSession(t, f)

	buf := newBuffer(t, 4, 4)
	appendFrame(t, in, buf, 0)
	s.Cancel()
	s.Cancel()

	if s.Status() != ports.EncoderCancelled {
		t.Errorf("expected cancelled, got %s", s.Status())
	}
	if buf.Valid() {
		t.Error("buffer still retained after cancel")
	}
	if _, ok := fs.GetFile(testPath); ok {
		t.Error("partial file not removed")
	}
	if err := s.Finish(context.Background()); !errors.Is(err, ErrNotWriting) {
		t.Errorf("expected ErrNotWriting after cancel, got %v", err)
	}
}

func TestSession_Validation(t *testing.T) {
	f := New(mocks.NewFileSystem(), &mocks.Renderer{}, logger.NewNoop(), Options{})

	es, _ := f.NewSession(testPath)
	if err := es.StartWriting(0); !errors.Is(err, ErrNoInput) {
		t.Errorf("expected ErrNoInput, got %v", err)
	}

	settings := testSettings
	settings.Codec = "h264"
	if _, err := es.AddVideoInput(settings); !errors.Is(err, ErrUnsupportedCodec) {
		t.Errorf("expected ErrUnsupportedCodec, got %v", err)
	}

	if _, err := es.AddVideoInput(testSettings); err != nil {
		t.Fatalf("AddVideoInput failed: %v", err)
	}
	if _, err := es.AddVideoInput(testSettings); !errors.Is(err, ErrInputExists) {
		t.Errorf("expected ErrInputExists, got %v", err)
	}

	if _, err := f.NewSession(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestSession_CreateFailure(t *testing.T) {
	fs := mocks.NewFileSystem()
	fs.CreateFunc = func(path string) (io.WriteCloser, error) {
		return nil, errors.New("read-only")
	}
	f := New(fs, &mocks.Renderer{}, logger.NewNoop(), Options{})
	es, _ := f.NewSession(testPath)
	if _, err := es.AddVideoInput(testSettings); err != nil {
		t.Fatalf("AddVideoInput failed: %v", err)
	}
	if err := es.StartWriting(0); err == nil {
		t.Fatal("expected StartWriting to fail")
	}
	if es.Status() != ports.EncoderFailed {
		t.Errorf("expected failed, got %s", es.Status())
	}
}

func TestMuxer_KeepsDecodeTimesIncreasing(t *testing.T) {
	var out bytes.Buffer
	m := newMuxer(&out, testSettings, 10)

	// 1ms apart rounds to the same tick at 600 ticks per second.
	for _, pts := range []time.Duration{0, time.Millisecond, 2 * time.Millisecond} {
		if err := m.add([]byte{1}, pts); err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}
	if err := m.close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if m.samples.Load() != 3 {
		t.Errorf("expected 3 samples, got %d", m.samples.Load())
	}
	// Ticks 0, 1, 2 and a final frame of 20.
	if m.lastEnd != 22 {
		t.Errorf("expected end at tick 22, got %d", m.lastEnd)
	}
}

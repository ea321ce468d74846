package capture

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/user/camlab/pkg/pipeline"
	"github.com/user/camlab/pkg/ports"
)

// Preset is a named capture resolution.
type Preset string

const (
	PresetHD1920x1080 Preset = "hd1920x1080"
	PresetHD1280x720  Preset = "hd1280x720"
	PresetVGA640x480  Preset = "vga640x480"
)

// Dimensions returns the landscape size of the preset.
func (p Preset) Dimensions() (width, height int, ok bool) {
	switch p {
	case PresetHD1920x1080:
		return 1920, 1080, true
	case PresetHD1280x720:
		return 1280, 720, true
	case PresetVGA640x480:
		return 640, 480, true
	default:
		return 0, 0, false
	}
}

// ParsePreset parses a preset name.
func ParsePreset(s string) (Preset, error) {
	p := Preset(s)
	if _, _, ok := p.Dimensions(); !ok {
		return "", fmt.Errorf("unknown capture preset %q", s)
	}
	return p, nil
}

// SessionState is one configuration of the capture hardware.
// A committed state is never mutated; reconfiguration stages a copy.
type SessionState struct {
	Device      ports.CaptureDevice
	Preset      Preset
	PixelFormat pipeline.PixelFormat
	Orientation ports.Orientation
	FrameRate   float64
}

// StreamConfig returns the device stream configuration for the state.
// Portrait orientation delivers frames taller than wide.
func (st *SessionState) StreamConfig() ports.StreamConfig {
	w, h, _ := st.Preset.Dimensions()
	if st.Orientation == ports.OrientationPortrait {
		w, h = h, w
	}
	return ports.StreamConfig{
		Width:       w,
		Height:      h,
		PixelFormat: st.PixelFormat,
		FrameRate:   st.FrameRate,
		Orientation: st.Orientation,
	}
}

func (st *SessionState) validate() error {
	if st.Device == nil {
		return fmt.Errorf("%w: no device", ErrInvalidConfiguration)
	}
	if _, _, ok := st.Preset.Dimensions(); !ok {
		return fmt.Errorf("%w: unknown preset %q", ErrInvalidConfiguration, st.Preset)
	}
	switch st.PixelFormat {
	case pipeline.PixelFormatBGRA32, pipeline.PixelFormatNV12:
	default:
		return fmt.Errorf("%w: unsupported pixel format %s", ErrInvalidConfiguration, st.PixelFormat)
	}
	if st.FrameRate <= 0 {
		return fmt.Errorf("%w: frame rate %v", ErrInvalidConfiguration, st.FrameRate)
	}
	return nil
}

// Session is the capture hardware configuration.
//
// Changes are staged between BeginConfiguration and CommitConfiguration and
// become visible to readers of Current all at once on commit.
type Session struct {
	mu        sync.Mutex
	staged    *SessionState
	committed atomic.Pointer[SessionState]
}

// NewSession creates an unconfigured session.
func NewSession() *Session {
	return &Session{}
}

// BeginConfiguration opens a configuration bracket and returns the staged
// state to modify. The staged state starts as a copy of the committed one.
func (s *Session) BeginConfiguration() (*SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staged != nil {
		return nil, ErrConfigurationInProgress
	}
	st := &SessionState{}
	if cur := s.committed.Load(); cur != nil {
		*st = *cur
	}
	s.staged = st
	return st, nil
}

// CommitConfiguration validates and publishes the staged state, closing the
// bracket. An invalid state is discarded and the committed one kept.
func (s *Session) CommitConfiguration() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.staged
	if st == nil {
		return fmt.Errorf("%w: commit without begin", ErrInvalidConfiguration)
	}
	s.staged = nil
	if err := st.validate(); err != nil {
		return err
	}
	s.committed.Store(st)
	return nil
}

// AbortConfiguration discards the staged state.
func (s *Session) AbortConfiguration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = nil
}

// Current returns the committed state, or nil before the first commit.
func (s *Session) Current() *SessionState {
	return s.committed.Load()
}

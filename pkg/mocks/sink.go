package mocks

import (
	"image"
	"sync"

	"github.com/user/camlab/pkg/ports"
)

// DebugSink is a mock implementation of ports.DebugSink.
type DebugSink struct {
	mu sync.RWMutex

	enabled bool

	RecordingJSON []byte
	Snapshots     map[string]image.Image
}

// NewDebugSink creates a new mock DebugSink.
func NewDebugSink(enabled bool) *DebugSink {
	return &DebugSink{
		enabled:   enabled,
		Snapshots: make(map[string]image.Image),
	}
}

func (m *DebugSink) Enabled() bool {
	return m.enabled
}

func (m *DebugSink) SaveSnapshot(name string, img image.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Snapshots[name] = img
	return nil
}

func (m *DebugSink) SaveRecordingJSON(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordingJSON = data
	return nil
}

// GetRecordingJSON returns the last saved recording summary.
func (m *DebugSink) GetRecordingJSON() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RecordingJSON
}

// GetSnapshot returns a saved snapshot by name.
func (m *DebugSink) GetSnapshot(name string) (image.Image, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	img, ok := m.Snapshots[name]
	return img, ok
}

var _ ports.DebugSink = (*DebugSink)(nil)

// NullSink is a no-op implementation of ports.DebugSink.
type NullSink struct{}

func (m *NullSink) Enabled() bool                                   { return false }
func (m *NullSink) SaveSnapshot(name string, img image.Image) error { return nil }
func (m *NullSink) SaveRecordingJSON(data []byte) error             { return nil }

var _ ports.DebugSink = (*NullSink)(nil)

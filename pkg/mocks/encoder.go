package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/user/camlab/pkg/pipeline"
	"github.com/user/camlab/pkg/ports"
)

// EncoderFactory is a mock implementation of ports.EncoderFactory.
type EncoderFactory struct {
	NewSessionFunc func(path string) (ports.EncoderSession, error)

	// Configure, when set, is applied to every session before it is returned.
	Configure func(s *EncoderSession)

	mu sync.Mutex
	// Recorded sessions for verification
	Sessions []*EncoderSession
}

func (m *EncoderFactory) NewSession(path string) (ports.EncoderSession, error) {
	if m.NewSessionFunc != nil {
		return m.NewSessionFunc(path)
	}
	s := &EncoderSession{Path: path}
	if m.Configure != nil {
		m.Configure(s)
	}
	m.mu.Lock()
	m.Sessions = append(m.Sessions, s)
	m.mu.Unlock()
	return s, nil
}

// SessionCount returns the number of opened sessions.
func (m *EncoderFactory) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sessions)
}

// Last returns the most recently opened session.
func (m *EncoderFactory) Last() *EncoderSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sessions) == 0 {
		return nil
	}
	return m.Sessions[len(m.Sessions)-1]
}

var _ ports.EncoderFactory = (*EncoderFactory)(nil)

// EncoderSession is a mock implementation of ports.EncoderSession.
type EncoderSession struct {
	Path string

	AddVideoInputErr error
	StartWritingErr  error
	FinishFunc       func(ctx context.Context) error

	// ReadyFunc is installed on the input; nil means always ready.
	ReadyFunc func() bool

	mu        sync.Mutex
	status    ports.EncoderStatus
	err       error
	Settings  ports.VideoSettings
	Input     *EncoderInput
	StartedAt time.Duration
	Finished  int
	Cancelled bool
}

func (m *EncoderSession) AddVideoInput(settings ports.VideoSettings) (ports.EncoderInput, error) {
	if m.AddVideoInputErr != nil {
		return nil, m.AddVideoInputErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Settings = settings
	m.Input = &EncoderInput{ReadyFunc: m.ReadyFunc}
	return m.Input, nil
}

func (m *EncoderSession) StartWriting(at time.Duration) error {
	if m.StartWritingErr != nil {
		m.Fail(m.StartWritingErr)
		return m.StartWritingErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StartedAt = at
	m.status = ports.EncoderWriting
	return nil
}

func (m *EncoderSession) Status() ports.EncoderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *EncoderSession) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *EncoderSession) Finish(ctx context.Context) error {
	m.mu.Lock()
	m.Finished++
	m.mu.Unlock()

	var err error
	if m.FinishFunc != nil {
		err = m.FinishFunc(ctx)
	}
	if err != nil {
		m.Fail(err)
		return err
	}

	m.mu.Lock()
	m.status = ports.EncoderCompleted
	m.mu.Unlock()
	return nil
}

func (m *EncoderSession) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cancelled = true
	m.status = ports.EncoderCancelled
}

// Fail moves the session to the failed state.
func (m *EncoderSession) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = ports.EncoderFailed
	m.err = err
}

// FinishCount returns the number of Finish calls.
func (m *EncoderSession) FinishCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Finished
}

var _ ports.EncoderSession = (*EncoderSession)(nil)

// EncoderInput is a mock implementation of ports.EncoderInput.
// Appends are recorded synchronously and buffers are not retained.
type EncoderInput struct {
	ReadyFunc func() bool

	mu       sync.Mutex
	Appends  []AppendCall
	Finished bool
}

// AppendCall records a call to Append.
type AppendCall struct {
	PTS      time.Duration
	Width    int
	Height   int
	Format   pipeline.PixelFormat
	Valid    bool
	Finished bool // Input was already marked finished
}

func (m *EncoderInput) ReadyForMoreMediaData() bool {
	m.mu.Lock()
	finished := m.Finished
	m.mu.Unlock()
	if finished {
		return false
	}
	if m.ReadyFunc != nil {
		return m.ReadyFunc()
	}
	return true
}

func (m *EncoderInput) Append(buf *pipeline.PixelBuffer, pts time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Appends = append(m.Appends, AppendCall{
		PTS:      pts,
		Width:    buf.Width(),
		Height:   buf.Height(),
		Format:   buf.Format(),
		Valid:    buf.Valid(),
		Finished: m.Finished,
	})
	if m.Finished {
		return errors.New("append after finish")
	}
	return nil
}

func (m *EncoderInput) MarkAsFinished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Finished = true
}

// PTSs returns the presentation times of all appends, in order.
func (m *EncoderInput) PTSs() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, len(m.Appends))
	for i, a := range m.Appends {
		out[i] = a.PTS
	}
	return out
}

var _ ports.EncoderInput = (*EncoderInput)(nil)

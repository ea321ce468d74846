// Package permission provides a fixed camera and microphone access policy.
package permission

import (
	"context"
	"sync"

	"github.com/user/camlab/pkg/ports"
)

// Static implements ports.Authorizer with a fixed answer per media type.
type Static struct {
	mu      sync.RWMutex
	granted map[ports.MediaType]bool
}

// GrantAll returns an authorizer granting every media type.
func GrantAll() *Static {
	return New(map[ports.MediaType]bool{
		ports.MediaVideo: true,
		ports.MediaAudio: true,
	})
}

// New returns an authorizer answering from granted. Missing types are denied.
func New(granted map[ports.MediaType]bool) *Static {
	m := make(map[ports.MediaType]bool, len(granted))
	for k, v := range granted {
		m[k] = v
	}
	return &Static{granted: m}
}

// Set changes the answer for media.
func (s *Static) Set(media ports.MediaType, granted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.granted[media] = granted
}

// RequestAccess reports the configured answer. It fails only when ctx is done.
func (s *Static) RequestAccess(ctx context.Context, media ports.MediaType) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.granted[media], nil
}

var _ ports.Authorizer = (*Static)(nil)

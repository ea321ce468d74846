package permission

import (
	"context"
	"errors"
	"testing"

	"github.com/user/camlab/pkg/ports"
)

func TestStatic(t *testing.T) {
	a := New(map[ports.MediaType]bool{ports.MediaVideo: true})

	if ok, err := a.RequestAccess(context.Background(), ports.MediaVideo); err != nil || !ok {
		t.Errorf("expected video granted, got %v, %v", ok, err)
	}
	if ok, _ := a.RequestAccess(context.Background(), ports.MediaAudio); ok {
		t.Error("expected audio denied")
	}

	a.Set(ports.MediaAudio, true)
	if ok, _ := a.RequestAccess(context.Background(), ports.MediaAudio); !ok {
		t.Error("expected audio granted after Set")
	}
}

func TestGrantAll(t *testing.T) {
	a := GrantAll()
	for _, m := range []ports.MediaType{ports.MediaVideo, ports.MediaAudio} {
		if ok, _ := a.RequestAccess(context.Background(), m); !ok {
			t.Errorf("expected %v granted", m)
		}
	}
}

func TestStatic_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := GrantAll().RequestAccess(ctx, ports.MediaVideo); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

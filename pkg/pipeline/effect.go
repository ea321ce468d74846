package pipeline

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Effect selects the visual style applied by the compositor.
type Effect int32

const (
	EffectNone Effect = iota
	EffectVHS
)

// Effects lists every known effect in declaration order.
var Effects = []Effect{EffectNone, EffectVHS}

func (e Effect) String() string {
	switch e {
	case EffectNone:
		return "none"
	case EffectVHS:
		return "vhs"
	default:
		return fmt.Sprintf("effect(%d)", int32(e))
	}
}

// ParseEffect parses an effect name. The empty string means EffectNone.
func ParseEffect(s string) (Effect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return EffectNone, nil
	case "vhs":
		return EffectVHS, nil
	default:
		return EffectNone, fmt.Errorf("unknown effect %q", s)
	}
}

// EffectCell holds the current effect. The zero value holds EffectNone.
type EffectCell struct {
	v atomic.Int32
}

// Load returns the current effect.
func (c *EffectCell) Load() Effect { return Effect(c.v.Load()) }

// Store replaces the current effect.
func (c *EffectCell) Store(e Effect) { c.v.Store(int32(e)) }

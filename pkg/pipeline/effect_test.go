package pipeline

import "testing"

func TestParseEffect(t *testing.T) {
	tests := []struct {
		in      string
		want    Effect
		wantErr bool
	}{
		{"none", EffectNone, false},
		{"", EffectNone, false},
		{"VHS", EffectVHS, false},
		{" vhs ", EffectVHS, false},
		{"sepia", EffectNone, true},
	}

	for _, tt := range tests {
		got, err := ParseEffect(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseEffect(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseEffect(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEffectCell(t *testing.T) {
	var c EffectCell
	if c.Load() != EffectNone {
		t.Errorf("expected zero value to be none, got %v", c.Load())
	}
	c.Store(EffectVHS)
	if c.Load() != EffectVHS {
		t.Errorf("expected vhs, got %v", c.Load())
	}
}

func TestParsePixelFormat(t *testing.T) {
	for _, f := range []PixelFormat{PixelFormatBGRA32, PixelFormatNV12, PixelFormatRGBA32} {
		got, err := ParsePixelFormat(f.String())
		if err != nil || got != f {
			t.Errorf("ParsePixelFormat(%q) = %v, %v", f.String(), got, err)
		}
	}
	if _, err := ParsePixelFormat("yuv444"); err == nil {
		t.Error("expected error for unknown format")
	}
}

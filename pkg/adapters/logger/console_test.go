package logger

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/ideamans/go-l10n"
	"github.com/user/camlab/pkg/ports"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestConsole(t *testing.T, level ports.LogLevel) (*ConsoleLogger, *bytes.Buffer, *bytes.Buffer, *fakeClock) {
	t.Helper()
	l10n.ForceLanguage("en")
	t.Cleanup(l10n.ResetLanguage)
	var stdout, stderr bytes.Buffer
	l := NewConsoleWriter(level, &stdout, &stderr)
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l.repeats.now = clock.now
	return l, &stdout, &stderr, clock
}

func lines(buf *bytes.Buffer) []string {
	s := strings.TrimRight(buf.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestConsole_PrefixCarriesComponentAndFields(t *testing.T) {
	l, stdout, _, _ := newTestConsole(t, ports.LevelDebug)

	l.Info("Streaming started")
	l.WithComponent("writer").WithField("session", "abc").Info("Recording to %s", "out.mov")
	l.WithField("session", "abc").Info("Recording to %s", "out.mov")

	got := lines(stdout)
	want := []string{
		"Streaming started",
		"[writer session=abc] Recording to out.mov",
		"[session=abc] Recording to out.mov",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d lines %q, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestConsole_WithFieldDoesNotLeakIntoParent(t *testing.T) {
	l, stdout, _, _ := newTestConsole(t, ports.LevelInfo)

	base := l.WithComponent("writer").(*ConsoleLogger)
	base.WithField("session", "one")
	base.WithField("session", "two").Info("Streaming stopped")
	base.Info("Streaming stopped")

	got := lines(stdout)
	if len(got) != 2 {
		t.Fatalf("got %q", got)
	}
	if got[0] != "[writer session=two] Streaming stopped" {
		t.Errorf("line 0 = %q", got[0])
	}
	if got[1] != "[writer] Streaming stopped" {
		t.Errorf("line 1 = %q", got[1])
	}
}

func TestConsole_LevelRouting(t *testing.T) {
	l, stdout, stderr, _ := newTestConsole(t, ports.LevelInfo)

	l.Debug("Frame %d dropped", 1)
	l.Info("Streaming started")
	l.Warn("Recording cancelled")
	l.Error("Preview server failed: %s", "boom")

	if got := lines(stdout); len(got) != 1 || got[0] != "Streaming started" {
		t.Errorf("stdout = %q", got)
	}
	if got := lines(stderr); len(got) != 2 {
		t.Errorf("stderr = %q", got)
	}
}

func TestConsole_QuietLevelDropsEverything(t *testing.T) {
	l, stdout, stderr, _ := newTestConsole(t, ports.LevelQuiet)

	l.Error("Preview server failed: %s", "boom")
	l.Info("Streaming started")

	if stdout.Len() != 0 || stderr.Len() != 0 {
		t.Errorf("expected no output, got %q / %q", stdout.String(), stderr.String())
	}
}

func TestConsole_CoalescesRepeatedDebugLines(t *testing.T) {
	l, stdout, _, clock := newTestConsole(t, ports.LevelDebug)
	frames := l.WithComponent("writer")

	for i := 0; i < 30; i++ {
		frames.Debug("Frame %d dropped", i)
		clock.advance(10 * time.Millisecond)
	}
	clock.advance(time.Second)
	frames.Debug("Frame %d dropped", 99)

	got := lines(stdout)
	if len(got) != 2 {
		t.Fatalf("got %d lines: %q", len(got), got)
	}
	if got[0] != "[writer] Frame 0 dropped" {
		t.Errorf("line 0 = %q", got[0])
	}
	if got[1] != "[writer] Frame 99 dropped (29 similar lines suppressed)" {
		t.Errorf("line 1 = %q", got[1])
	}
}

func TestConsole_SuppressedCountIsTranslated(t *testing.T) {
	l, stdout, _, clock := newTestConsole(t, ports.LevelDebug)
	l10n.ForceLanguage("ja")

	l.Debug("Frame %d dropped", 1)
	l.Debug("Frame %d dropped", 2)
	clock.advance(2 * time.Second)
	l.Debug("Frame %d dropped", 3)

	got := lines(stdout)
	if len(got) != 2 {
		t.Fatalf("got %q", got)
	}
	if !strings.HasSuffix(got[1], "(同様の出力 1 件を省略)") {
		t.Errorf("line 1 = %q", got[1])
	}
}

func TestConsole_CoalescingIsPerComponentAndKey(t *testing.T) {
	l, stdout, _, _ := newTestConsole(t, ports.LevelDebug)

	l.WithComponent("writer").Debug("Frame %d dropped", 1)
	l.WithComponent("renderer").Debug("Frame %d dropped", 1)
	l.WithComponent("writer").Debug("Recording started: %s", "x")
	l.WithComponent("writer").Debug("Frame %d dropped", 2)

	got := lines(stdout)
	if len(got) != 3 {
		t.Fatalf("got %q", got)
	}
}

func TestConsole_InfoAndErrorAreNeverCoalesced(t *testing.T) {
	l, stdout, stderr, _ := newTestConsole(t, ports.LevelDebug)

	for i := 0; i < 3; i++ {
		l.Info("Streaming started")
		l.Error("Preview server failed: %s", "boom")
	}

	if n := len(lines(stdout)); n != 3 {
		t.Errorf("info lines = %d, want 3", n)
	}
	if n := len(lines(stderr)); n != 3 {
		t.Errorf("error lines = %d, want 3", n)
	}
}

func TestConsole_ZeroRepeatWindowPrintsEverything(t *testing.T) {
	l, stdout, _, _ := newTestConsole(t, ports.LevelDebug)
	l.SetRepeatWindow(0)

	for i := 0; i < 5; i++ {
		l.Debug("Frame %d dropped", i)
	}

	if n := len(lines(stdout)); n != 5 {
		t.Errorf("lines = %d, want 5", n)
	}
}

func TestRecorder_CapturesComponentAndFields(t *testing.T) {
	r := NewRecorder()
	r.WithComponent("writer").WithField("session", "abc").Warn("Recording cancelled")
	r.Info("Streaming started")

	entries := r.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}
	e := entries[0]
	if e.Level != ports.LevelWarn || e.Component != "writer" || e.Fields["session"] != "abc" {
		t.Errorf("entry 0 = %+v", e)
	}
	if entries[1].Fields["session"] != "" {
		t.Errorf("field leaked into root recorder: %+v", entries[1])
	}
}

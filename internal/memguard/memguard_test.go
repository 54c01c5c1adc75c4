package memguard

import (
	"context"
	"testing"
	"time"
)

func TestSampleDisabledWithoutLimit(t *testing.T) {
	g := New(Config{}, nil)
	if level := g.Sample(); level != LevelNormal {
		t.Errorf("Sample() = %v, want LevelNormal when LimitBytes is 0", level)
	}
}

func TestSampleCriticalWithTinyLimit(t *testing.T) {
	// A 1-byte limit guarantees current heap usage exceeds the critical
	// fraction, exercising the FreeOSMemory path without asserting on
	// exact memory numbers (which are not portable across Go versions).
	g := New(Config{LimitBytes: 1}, nil)
	if level := g.Sample(); level != LevelCritical {
		t.Errorf("Sample() = %v, want LevelCritical", level)
	}
}

func TestRunInvokesCallbackAndStopsOnCancel(t *testing.T) {
	g := New(Config{LimitBytes: 1, Interval: 10 * time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	levels := make(chan Level, 4)
	done := make(chan struct{})
	go func() {
		g.Run(ctx, func(l Level) {
			select {
			case levels <- l:
			default:
			}
		})
		close(done)
	}()

	select {
	case <-levels:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a sample")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestLevelString(t *testing.T) {
	cases := map[Level]string{LevelNormal: "normal", LevelGentle: "gentle", LevelCritical: "critical"}
	for level, want := range cases {
		if got := level.String(); got != want {
			t.Errorf("Level(%d).String() = %q, want %q", level, got, want)
		}
	}
}

package concurrency

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestGlobalLimitBlocks(t *testing.T) {
	g := NewGate(1, 0)

	release1, err := g.Acquire(context.Background(), "host-a")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := g.Acquire(ctx, "host-b"); err == nil {
		t.Error("expected second acquire to block past the global limit")
	}

	release1()
	release2, err := g.Acquire(context.Background(), "host-b")
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	release2()
}

func TestPerHostLimitIndependentOfOtherHosts(t *testing.T) {
	g := NewGate(4, 1)

	releaseA, err := g.Acquire(context.Background(), "host-a")
	if err != nil {
		t.Fatalf("Acquire host-a: %v", err)
	}
	defer releaseA()

	releaseB, err := g.Acquire(context.Background(), "host-b")
	if err != nil {
		t.Fatalf("Acquire host-b should not be blocked by host-a's cap: %v", err)
	}
	releaseB()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := g.Acquire(ctx, "host-a"); err == nil {
		t.Error("expected second host-a acquire to block at per-host limit 1")
	}
}

func TestInFlightReflectsAcquisitions(t *testing.T) {
	g := NewGate(3, 0)
	var wg sync.WaitGroup
	releases := make([]Release, 3)

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := g.Acquire(context.Background(), "host")
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			releases[i] = r
		}(i)
	}
	wg.Wait()

	if g.InFlight() != 3 {
		t.Errorf("InFlight() = %d, want 3", g.InFlight())
	}
	for _, r := range releases {
		r()
	}
	if g.InFlight() != 0 {
		t.Errorf("InFlight() after release = %d, want 0", g.InFlight())
	}
}

// Package concurrency implements the nested concurrency gate from
// spec.md §4.7: a global semaphore bounding total in-flight probes, and
// a lazily-created per-host semaphore bounding how many of those probes
// may target the same host at once. A goroutine must hold both before
// it dials.
package concurrency

import (
	"context"
	"sync"
)

// Gate is the global + per-host semaphore pair.
type Gate struct {
	global chan struct{}

	perHostLimit int
	mu           sync.Mutex
	perHost      map[string]chan struct{}
}

// NewGate builds a gate allowing at most globalLimit concurrent probes
// overall, and at most perHostLimit concurrent probes against any single
// host. perHostLimit of 0 disables the per-host cap.
func NewGate(globalLimit, perHostLimit int) *Gate {
	if globalLimit <= 0 {
		globalLimit = 1
	}
	return &Gate{
		global:       make(chan struct{}, globalLimit),
		perHostLimit: perHostLimit,
		perHost:      make(map[string]chan struct{}),
	}
}

// Release is returned by Acquire and must be called exactly once to
// give back both slots.
type Release func()

// Acquire blocks until both the global slot and the per-host slot (if
// enabled) for host are available, or ctx is done.
func (g *Gate) Acquire(ctx context.Context, host string) (Release, error) {
	select {
	case g.global <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if g.perHostLimit <= 0 {
		return func() { <-g.global }, nil
	}

	hostSem := g.hostSemaphore(host)
	select {
	case hostSem <- struct{}{}:
	case <-ctx.Done():
		<-g.global
		return nil, ctx.Err()
	}

	return func() {
		<-hostSem
		<-g.global
	}, nil
}

func (g *Gate) hostSemaphore(host string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()

	sem, ok := g.perHost[host]
	if !ok {
		sem = make(chan struct{}, g.perHostLimit)
		g.perHost[host] = sem
	}
	return sem
}

// InFlight returns the number of globally active probes, for metrics.
func (g *Gate) InFlight() int {
	return len(g.global)
}

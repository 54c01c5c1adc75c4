// Package memguard periodically samples process memory usage and warns
// the coordinator when it crosses configured thresholds, per spec.md
// §4.8. It never terminates the process — only surfaces gentle/critical
// signals so the coordinator can throttle or pause itself.
package memguard

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
)

// Level is the severity of a memory pressure sample.
type Level int

const (
	// LevelNormal means usage is below the gentle threshold.
	LevelNormal Level = iota
	// LevelGentle means usage crossed the gentle threshold (default
	// 0.80 of the configured limit): the coordinator should consider
	// slowing dispatch.
	LevelGentle
	// LevelCritical means usage crossed the critical threshold (default
	// 0.95): the coordinator should pause new dispatch until memory
	// recedes.
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelGentle:
		return "gentle"
	case LevelCritical:
		return "critical"
	default:
		return "normal"
	}
}

// Config controls sampling cadence and thresholds.
type Config struct {
	// LimitBytes is the soft ceiling the thresholds are fractions of.
	// Zero disables the guard entirely (Sample always reports normal).
	LimitBytes uint64

	GentleFraction   float64 // default 0.80
	CriticalFraction float64 // default 0.95

	Interval time.Duration // default 5s
}

func (c Config) withDefaults() Config {
	if c.GentleFraction == 0 {
		c.GentleFraction = 0.80
	}
	if c.CriticalFraction == 0 {
		c.CriticalFraction = 0.95
	}
	if c.Interval == 0 {
		c.Interval = 5 * time.Second
	}
	return c
}

// Guard samples runtime.MemStats on an interval and reports the current
// pressure level, with a cooldown on repeatedly forcing GC.
type Guard struct {
	cfg Config
	log *zap.Logger

	lastFree time.Time
}

// New builds a Guard. log may be nil.
func New(cfg Config, log *zap.Logger) *Guard {
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{cfg: cfg.withDefaults(), log: log}
}

// Sample reads current heap usage and returns its pressure level. At
// LevelCritical it calls debug.FreeOSMemory() at most once per Interval
// to avoid hammering the GC.
func (g *Guard) Sample() Level {
	if g.cfg.LimitBytes == 0 {
		return LevelNormal
	}

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	fraction := float64(stats.HeapAlloc) / float64(g.cfg.LimitBytes)

	switch {
	case fraction >= g.cfg.CriticalFraction:
		g.log.Warn("memory usage critical",
			zap.Float64("fraction", fraction), zap.Uint64("heap_alloc", stats.HeapAlloc))
		if time.Since(g.lastFree) >= g.cfg.Interval {
			debug.FreeOSMemory()
			g.lastFree = time.Now()
		}
		return LevelCritical
	case fraction >= g.cfg.GentleFraction:
		g.log.Info("memory usage elevated",
			zap.Float64("fraction", fraction), zap.Uint64("heap_alloc", stats.HeapAlloc))
		return LevelGentle
	default:
		return LevelNormal
	}
}

// Run samples on cfg.Interval until ctx is done, invoking onLevel with
// every sample. Intended to run in its own goroutine alongside the
// coordinator.
func (g *Guard) Run(ctx context.Context, onLevel func(Level)) {
	ticker := time.NewTicker(g.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			onLevel(g.Sample())
		}
	}
}

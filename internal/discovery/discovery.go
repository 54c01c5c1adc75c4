// Package discovery produces a lazy, finite, non-restartable stream of
// (ip, port) targets from a CIDR range, a target file, or an external
// port-scanner subprocess, per spec.md §4.5.
package discovery

import (
	"context"
	"fmt"
)

// Target is one candidate endpoint to probe.
type Target struct {
	IP   string
	Port int
}

func (t Target) String() string {
	return fmt.Sprintf("%s:%d", t.IP, t.Port)
}

// Generator produces targets one at a time. Next returns (zero, false,
// nil) when the stream is exhausted, or (zero, false, err) on an
// unrecoverable error. Generators cooperatively yield control back to the
// caller's goroutine scheduler at internal batch boundaries so a paused
// coordinator can stop pulling without the generator itself needing to
// know about pause/resume.
type Generator interface {
	Next(ctx context.Context) (Target, bool, error)

	// Estimate returns a best-effort total target count and whether the
	// estimate is meaningful (false for generators, like External, that
	// have no way to know ahead of time).
	Estimate() (int64, bool)
}

// yieldBatch is how often range/file generators check ctx.Done() and
// give the scheduler a chance to run other goroutines — matching
// spec.md's "cooperatively yields after every batch" requirement for an
// event-loop implementation, expressed here as a periodic ctx check
// instead of an explicit yield point.
const yieldBatch = 1000

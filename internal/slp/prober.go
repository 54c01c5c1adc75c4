package slp

// ProberConfig configures the ordered multi-protocol fallback described in
// spec.md §4.3.
type ProberConfig struct {
	Probe Config

	MultiProtocol     bool
	PreferredVersion  int32 // default 770 (1.21)
	FallbackVersions  []int32
	LegacySupport     bool
}

// Result is the outcome of ProbeMulti: either a modern Reply or a
// LegacyReply, tagged with the protocol path that produced it.
type Result struct {
	Modern *Reply
	Legacy *LegacyReply

	// DetectedProtocol is the protocol version that succeeded: the
	// preferred version, a fallback version, or -1 for a legacy reply.
	DetectedProtocol int32
}

// ProbeMulti tries the configured protocol versions in order, returning
// the first success. If multi-protocol is disabled it delegates straight
// to Probe with the single configured version. When every path —
// including legacy, if enabled — fails, it returns a nil Result and the
// error of the last path tried, which the caller uses to classify the
// failure.
func ProbeMulti(addr string, cfg ProberConfig) (*Result, *ProbeError) {
	if !cfg.MultiProtocol {
		reply, err := Probe(addr, cfg.PreferredVersion, cfg.Probe)
		if err != nil {
			return nil, err
		}
		return &Result{Modern: reply, DetectedProtocol: cfg.PreferredVersion}, nil
	}

	var lastErr *ProbeError

	if reply, err := Probe(addr, cfg.PreferredVersion, cfg.Probe); err == nil {
		return &Result{Modern: reply, DetectedProtocol: cfg.PreferredVersion}, nil
	} else {
		lastErr = err
	}

	for _, version := range cfg.FallbackVersions {
		reply, err := Probe(addr, version, cfg.Probe)
		if err == nil {
			return &Result{Modern: reply, DetectedProtocol: version}, nil
		}
		lastErr = err
	}

	if cfg.LegacySupport {
		legacy, err := ProbeLegacy(addr, cfg.Probe.Timeout)
		if err == nil {
			return &Result{Legacy: legacy, DetectedProtocol: -1}, nil
		}
		lastErr = err
	}

	return nil, lastErr
}

// Package coordinator drives one scan end to end: pulling targets from
// a discovery.Generator, filtering them through the blacklist, gating
// them through rate limit and concurrency, probing them over SLP,
// parsing the reply, persisting it, and fanning the result out to
// observers. State machine and worker-pool shape are grounded on the
// teacher's P2P client (atomic-guarded Start/Stop) and its fixed-size
// worker pool reading a shared job channel.
package coordinator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/voxelwatch/scanner/internal/apperr"
	"github.com/voxelwatch/scanner/internal/blacklist"
	"github.com/voxelwatch/scanner/internal/concurrency"
	"github.com/voxelwatch/scanner/internal/discovery"
	"github.com/voxelwatch/scanner/internal/geoip"
	"github.com/voxelwatch/scanner/internal/memguard"
	"github.com/voxelwatch/scanner/internal/metrics"
	"github.com/voxelwatch/scanner/internal/ratelimit"
	"github.com/voxelwatch/scanner/internal/slp"
	"github.com/voxelwatch/scanner/internal/status"
	"github.com/voxelwatch/scanner/internal/store"
	"github.com/voxelwatch/scanner/internal/webhook"
)

// State is the coordinator's lifecycle phase.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Stats are the running counters a coordinator exposes for the CLI's
// progress display and the "stats" subcommand.
type Stats struct {
	TargetsDispatched int64
	Online            int64
	Offline           int64
	Errors            int64
	Blacklisted       int64
	NoResponse        int64
}

// Config wires every upstream component the coordinator drives.
type Config struct {
	Generator     discovery.Generator
	Blacklist     *blacklist.List
	RateLimiter   *ratelimit.Limiter
	Gate          *concurrency.Gate
	Guard         *memguard.Guard
	ProberCfg     slp.ProberConfig
	Store         store.Store
	Observer      webhook.Observer // may be nil
	GeoIP         geoip.Provider   // may be nil; skipped when unset
	GeoIPCacheTTL time.Duration    // how long a resolved Location is considered fresh
	Workers       int
	Log           *zap.Logger
}

// Coordinator runs a single scan. It is not reusable across runs —
// build a new Coordinator per invocation of the "scan" subcommand.
type Coordinator struct {
	cfg   Config
	state atomic.Int32

	pauseCh chan struct{} // closed while paused; replaced on Resume
	pauseMu sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup

	stats Stats
	runID int64
	log   *zap.Logger
}

// New builds a Coordinator from cfg. Workers defaults to 32 if unset.
func New(cfg Config) *Coordinator {
	if cfg.Workers <= 0 {
		cfg.Workers = 32
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	c := &Coordinator{cfg: cfg, log: log}
	c.state.Store(int32(StateIdle))
	return c
}

// State returns the coordinator's current lifecycle phase.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Stats returns a snapshot of the running counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		TargetsDispatched: atomic.LoadInt64(&c.stats.TargetsDispatched),
		Online:            atomic.LoadInt64(&c.stats.Online),
		Offline:           atomic.LoadInt64(&c.stats.Offline),
		Errors:            atomic.LoadInt64(&c.stats.Errors),
		Blacklisted:       atomic.LoadInt64(&c.stats.Blacklisted),
		NoResponse:        atomic.LoadInt64(&c.stats.NoResponse),
	}
}

// Start transitions Idle -> Running, recording a new store.ScanRun and
// spawning the worker pool plus the target-dispatch goroutine. It
// returns once workers are spawned; call Wait to block until the scan
// drains or Stop is called.
func (c *Coordinator) Start(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return apperr.New(apperr.Config, "coordinator: Start called from a non-idle state")
	}

	runID, err := c.cfg.Store.StartRun(ctx)
	if err != nil {
		c.state.Store(int32(StateIdle))
		return apperr.WrapStore("starting scan run", err)
	}
	c.runID = runID

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	jobs := make(chan discovery.Target, c.cfg.Workers*2)

	c.wg.Add(1)
	go c.dispatch(runCtx, jobs)

	for i := 0; i < c.cfg.Workers; i++ {
		c.wg.Add(1)
		go c.worker(runCtx, jobs)
	}

	if c.cfg.Guard != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.cfg.Guard.Run(runCtx, func(level memguard.Level) {
				metrics.MemoryPressureLevel.Set(float64(level))
				if level == memguard.LevelCritical {
					c.Pause()
				} else {
					c.Resume()
				}
			})
		}()
	}

	return nil
}

// Wait blocks until every worker has exited, then finalizes the run
// record in the store.
func (c *Coordinator) Wait(ctx context.Context) error {
	c.wg.Wait()
	c.state.CompareAndSwap(int32(StateRunning), int32(StateStopped))
	c.state.CompareAndSwap(int32(StatePaused), int32(StateStopped))

	s := c.Stats()
	return c.cfg.Store.FinishRun(ctx, c.runID, s.TargetsDispatched, s.Online, s.Errors)
}

// Pause stops new target dispatch without tearing down the worker
// pool; in-flight probes still complete.
func (c *Coordinator) Pause() {
	if !c.state.CompareAndSwap(int32(StateRunning), int32(StatePaused)) {
		return
	}
	c.pauseMu.Lock()
	c.pauseCh = make(chan struct{})
	c.pauseMu.Unlock()
	c.log.Info("scan paused")
}

// Resume lets target dispatch continue after a Pause.
func (c *Coordinator) Resume() {
	if !c.state.CompareAndSwap(int32(StatePaused), int32(StateRunning)) {
		return
	}
	c.pauseMu.Lock()
	if c.pauseCh != nil {
		close(c.pauseCh)
		c.pauseCh = nil
	}
	c.pauseMu.Unlock()
	c.log.Info("scan resumed")
}

// Stop cancels the scan. Workers finish their in-flight probe and
// exit; call Wait afterward to block until they do.
func (c *Coordinator) Stop() {
	prev := State(c.state.Swap(int32(StateStopped)))
	if prev == StateStopped || prev == StateIdle {
		return
	}
	// Unblock anything waiting on a pause so it observes the stop.
	c.pauseMu.Lock()
	if c.pauseCh != nil {
		close(c.pauseCh)
		c.pauseCh = nil
	}
	c.pauseMu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	c.log.Info("scan stopping")
}

func (c *Coordinator) waitWhilePaused(ctx context.Context) bool {
	c.pauseMu.Lock()
	ch := c.pauseCh
	c.pauseMu.Unlock()
	if ch == nil {
		return true
	}
	select {
	case <-ch:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Coordinator) dispatch(ctx context.Context, jobs chan<- discovery.Target) {
	defer c.wg.Done()
	defer close(jobs)

	for {
		if !c.waitWhilePaused(ctx) {
			return
		}
		target, ok, err := c.cfg.Generator.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.log.Warn("discovery generator error", zap.Error(err))
			}
			return
		}
		if !ok {
			return
		}

		select {
		case jobs <- target:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Coordinator) worker(ctx context.Context, jobs <-chan discovery.Target) {
	defer c.wg.Done()

	for target := range jobs {
		c.handleTarget(ctx, target)
		if ctx.Err() != nil {
			return
		}
	}
}

func (c *Coordinator) handleTarget(ctx context.Context, target discovery.Target) {
	atomic.AddInt64(&c.stats.TargetsDispatched, 1)

	if c.cfg.Blacklist != nil && c.cfg.Blacklist.Contains(target.IP) {
		atomic.AddInt64(&c.stats.Blacklisted, 1)
		metrics.TargetsBlacklisted.Inc()
		return
	}

	if c.cfg.RateLimiter != nil {
		if err := c.cfg.RateLimiter.Wait(ctx); err != nil {
			return
		}
	}

	release, err := c.cfg.Gate.Acquire(ctx, target.IP)
	if err != nil {
		return
	}
	metrics.ConcurrencyInFlight.Set(float64(c.cfg.Gate.InFlight()))
	defer func() {
		release()
		metrics.ConcurrencyInFlight.Set(float64(c.cfg.Gate.InFlight()))
	}()

	result, probeErr := slp.ProbeMulti(target.String(), c.cfg.ProberCfg)
	if probeErr != nil {
		c.recordFailure(ctx, target, probeErr)
		return
	}

	c.recordSuccess(ctx, target, result)
}

// resolveLocation returns a Location to attach to a successful scan, or
// nil if no GeoIP provider is configured. It prefers a still-valid
// store-cached entry over a fresh provider lookup, since the provider
// may be a rate-limited HTTP API.
func (c *Coordinator) resolveLocation(ctx context.Context, ip string) *store.Location {
	if c.cfg.GeoIP == nil {
		return nil
	}

	if cached, err := c.cfg.Store.CachedLocation(ctx, ip); err == nil && cached != nil {
		return cached
	}

	loc, err := c.cfg.GeoIP.Lookup(ctx, ip)
	if err != nil || loc == nil {
		if err != nil {
			c.log.Debug("geoip lookup failed", zap.String("ip", ip), zap.Error(err))
		}
		return nil
	}

	now := time.Now().UTC()
	return &store.Location{
		IP: loc.IP, CountryCode: loc.CountryCode, CountryName: loc.CountryName, City: loc.City,
		Latitude: loc.Latitude, Longitude: loc.Longitude, ASN: loc.ASN, ASOrg: loc.ASOrg,
		Source: loc.Source, CachedAt: now, CacheExpiresAt: now.Add(c.cfg.GeoIPCacheTTL),
	}
}

// dominantModType reports the loader/platform type of the first mod a
// server advertised, matching status.go's own first-match classification
// style. Returns "" for a vanilla server with no mods.
func dominantModType(mods []status.Mod) string {
	if len(mods) == 0 {
		return ""
	}
	return string(mods[0].Type)
}

func (c *Coordinator) recordFailure(ctx context.Context, target discovery.Target, probeErr *slp.ProbeError) {
	atomic.AddInt64(&c.stats.Offline, 1)
	if probeErr.NoResponse {
		atomic.AddInt64(&c.stats.NoResponse, 1)
	} else {
		atomic.AddInt64(&c.stats.Errors, 1)
		metrics.ProbeErrors.WithLabelValues(string(probeErr.Kind)).Inc()
	}

	snap := store.StatusSnapshot{
		IP: target.IP, Port: target.Port, ScannedAt: time.Now().UTC(),
		Online: false, ErrorKind: string(probeErr.Kind),
	}
	if err := c.cfg.Store.PutEndpointScan(ctx, store.EndpointScan{RunID: c.runID, Snapshot: snap}); err != nil {
		c.log.Warn("failed to persist failed scan", zap.String("target", target.String()), zap.Error(err))
		metrics.StoreWrites.WithLabelValues("error").Inc()
	} else {
		metrics.StoreWrites.WithLabelValues("offline").Inc()
	}

	if c.cfg.Observer != nil {
		c.cfg.Observer.Notify(ctx, webhook.NewOfflineEvent(target.IP, target.Port))
	}
}

func (c *Coordinator) recordSuccess(ctx context.Context, target discovery.Target, result *slp.Result) {
	var rawJSON []byte
	var latency int64
	var protocolVersion int32

	if result.Modern != nil {
		rawJSON = result.Modern.JSON
		latency = result.Modern.LatencyMS
		protocolVersion = result.Modern.ProtocolVersion
		metrics.ProbesSucceeded.WithLabelValues("modern").Inc()
		metrics.ProbeLatency.WithLabelValues("modern").Observe(float64(latency) / 1000)
	}

	var parsed *status.ParsedServer
	if rawJSON != nil {
		p, err := status.Parse(rawJSON)
		if err != nil {
			c.recordFailure(ctx, target, &slp.ProbeError{Kind: apperr.Protocol, Err: err})
			return
		}
		parsed = p
	}

	atomic.AddInt64(&c.stats.Online, 1)

	snap := store.StatusSnapshot{
		IP: target.IP, Port: target.Port, ScannedAt: time.Now().UTC(),
		Online: true, LatencyMS: latency, ProtocolVersion: int(protocolVersion),
	}
	var scan store.EndpointScan
	scan.RunID = c.runID

	if parsed != nil {
		snap.VersionName = parsed.VersionName
		snap.MOTDRaw = parsed.MOTDRaw
		snap.MOTDClean = parsed.MOTDClean
		snap.MOTDFormatted = parsed.MOTDFormatted
		snap.OnlinePlayers = parsed.OnlinePlayers
		snap.MaxPlayers = parsed.MaxPlayers
		snap.Software = string(parsed.ServerSoftware)
		snap.ModType = dominantModType(parsed.Mods)
		snap.OnlineMode = string(parsed.OnlineMode)
		snap.EnforcesSecureChat = parsed.EnforcesSecureChat
		snap.PreventsChatReports = parsed.PreventsChatReports
		snap.FaviconHash = parsed.FaviconHash

		for _, p := range parsed.SamplePlayers {
			scan.Players = append(scan.Players, store.Player{UUID: p.UUID, Name: p.Name})
		}
		for _, m := range parsed.Mods {
			scan.Mods = append(scan.Mods, store.Mod{Name: m.ID, Version: m.Version, Type: string(m.Type)})
		}
		if parsed.Favicon != "" {
			scan.Favicon = &store.Favicon{Hash: parsed.FaviconHash, Base64: parsed.Favicon}
		}
		scan.Location = c.resolveLocation(ctx, target.IP)
	} else if result.Legacy != nil {
		metrics.ProbesSucceeded.WithLabelValues("legacy").Inc()
		snap.ProtocolVersion = result.Legacy.ProtocolVersion
		snap.VersionName = result.Legacy.VersionName
		snap.MOTDClean = result.Legacy.MOTD
		snap.OnlinePlayers = result.Legacy.OnlinePlayers
		snap.MaxPlayers = result.Legacy.MaxPlayers
		snap.LatencyMS = result.Legacy.LatencyMS
	}

	scan.Snapshot = snap
	if err := c.cfg.Store.PutEndpointScan(ctx, scan); err != nil {
		c.log.Warn("failed to persist successful scan", zap.String("target", target.String()), zap.Error(err))
		metrics.StoreWrites.WithLabelValues("error").Inc()
	} else {
		metrics.StoreWrites.WithLabelValues("online").Inc()
	}

	if c.cfg.Observer != nil {
		c.cfg.Observer.Notify(ctx, webhook.NewOnlineEvent(target.IP, target.Port, snap))
	}
}

package coordinator

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/voxelwatch/scanner/internal/apperr"
	"github.com/voxelwatch/scanner/internal/blacklist"
	"github.com/voxelwatch/scanner/internal/concurrency"
	"github.com/voxelwatch/scanner/internal/discovery"
	"github.com/voxelwatch/scanner/internal/ratelimit"
	"github.com/voxelwatch/scanner/internal/slp"
	"github.com/voxelwatch/scanner/internal/status"
	"github.com/voxelwatch/scanner/internal/store"
)

// fakeStore is a minimal in-memory store.Store double: only the methods
// the coordinator actually calls need real behavior, everything else is
// a harmless stub.
type fakeStore struct {
	mu    sync.Mutex
	scans []store.EndpointScan
	runID int64
}

func (f *fakeStore) Migrate(ctx context.Context) error { return nil }

func (f *fakeStore) PutEndpointScan(ctx context.Context, scan store.EndpointScan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans = append(f.scans, scan)
	return nil
}

func (f *fakeStore) GetEndpoint(ctx context.Context, ip string, port int) (*store.Endpoint, *store.StatusSnapshot, error) {
	return nil, nil, nil
}
func (f *fakeStore) Search(ctx context.Context, filter store.SearchFilter, limit int) ([]store.StatusSnapshot, error) {
	return nil, nil
}
func (f *fakeStore) StartRun(ctx context.Context) (int64, error) {
	f.runID++
	return f.runID, nil
}
func (f *fakeStore) FinishRun(ctx context.Context, runID int64, targetsDone, online, errors int64) error {
	return nil
}
func (f *fakeStore) TotalServers(ctx context.Context, filter store.StatsFilter) (int64, error) {
	return 0, nil
}
func (f *fakeStore) ServersBySoftware(ctx context.Context, filter store.StatsFilter) ([]store.SoftwareCount, error) {
	return nil, nil
}
func (f *fakeStore) ServersByVersion(ctx context.Context, filter store.StatsFilter) ([]store.VersionCount, error) {
	return nil, nil
}
func (f *fakeStore) OnlineOfflineCounts(ctx context.Context, filter store.StatsFilter) (int64, int64, error) {
	return 0, 0, nil
}
func (f *fakeStore) UniquePlayerCount(ctx context.Context, filter store.StatsFilter) (int64, error) {
	return 0, nil
}
func (f *fakeStore) UniqueModCount(ctx context.Context, filter store.StatsFilter) (int64, error) {
	return 0, nil
}
func (f *fakeStore) CachedLocation(ctx context.Context, ip string) (*store.Location, error) {
	return nil, nil
}
func (f *fakeStore) ImportBlacklist(ctx context.Context, entries []store.BlacklistEntry) error {
	return nil
}
func (f *fakeStore) ListBlacklist(ctx context.Context) ([]store.BlacklistEntry, error) {
	return nil, nil
}
func (f *fakeStore) Close() error { return nil }

// emptyGenerator yields nothing, so a coordinator started against it
// drains immediately — useful for exercising Start/Wait without a real
// network dependency.
type emptyGenerator struct{}

func (emptyGenerator) Next(ctx context.Context) (discovery.Target, bool, error) {
	return discovery.Target{}, false, nil
}
func (emptyGenerator) Estimate() (int64, bool) { return 0, true }

func newTestCoordinator(fs *fakeStore) *Coordinator {
	return New(Config{
		Generator:   emptyGenerator{},
		Blacklist:   blacklist.New(),
		RateLimiter: ratelimit.New(0, 1),
		Gate:        concurrency.NewGate(10, 10),
		Store:       fs,
		Workers:     2,
	})
}

func TestStartDrainsAndTransitionsToStopped(t *testing.T) {
	fs := &fakeStore{}
	c := newTestCoordinator(fs)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if c.State() != StateStopped {
		t.Errorf("State() = %v, want StateStopped", c.State())
	}
}

func TestStartFromNonIdleStateErrors(t *testing.T) {
	fs := &fakeStore{}
	c := newTestCoordinator(fs)
	c.state.Store(int32(StateRunning))

	err := c.Start(context.Background())
	if err == nil || !apperr.Is(err, apperr.Config) {
		t.Errorf("Start from running = %v, want a Config-kind error", err)
	}
}

func TestPauseResumeRoundTrip(t *testing.T) {
	fs := &fakeStore{}
	c := newTestCoordinator(fs)
	c.state.Store(int32(StateRunning))

	c.Pause()
	if c.State() != StatePaused {
		t.Fatalf("State() = %v, want StatePaused", c.State())
	}

	c.Resume()
	if c.State() != StateRunning {
		t.Fatalf("State() = %v, want StateRunning", c.State())
	}
}

func TestStopIsIdempotent(t *testing.T) {
	fs := &fakeStore{}
	c := newTestCoordinator(fs)
	c.state.Store(int32(StateRunning))
	c.cancel = func() {}

	c.Stop()
	c.Stop() // must not panic on a double-close of pauseCh
	if c.State() != StateStopped {
		t.Errorf("State() = %v, want StateStopped", c.State())
	}
}

func TestHandleTargetSkipsBlacklistedIP(t *testing.T) {
	fs := &fakeStore{}
	c := newTestCoordinator(fs)
	c.cfg.Blacklist = blacklistWithEntry(t, "198.51.100.1")

	c.handleTarget(context.Background(), discovery.Target{IP: "198.51.100.1", Port: 25565})

	stats := c.Stats()
	if stats.Blacklisted != 1 {
		t.Errorf("Blacklisted = %d, want 1", stats.Blacklisted)
	}
	if len(fs.scans) != 0 {
		t.Errorf("expected no store write for a blacklisted target, got %d", len(fs.scans))
	}
}

func blacklistWithEntry(t *testing.T, ip string) *blacklist.List {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blacklist.txt")
	if err := os.WriteFile(path, []byte(ip+"\n"), 0o644); err != nil {
		t.Fatalf("writing blacklist file: %v", err)
	}
	list := blacklist.New()
	if err := list.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return list
}

func TestRecordFailureCountsNoResponseSeparatelyFromErrors(t *testing.T) {
	fs := &fakeStore{}
	c := newTestCoordinator(fs)

	c.recordFailure(context.Background(), discovery.Target{IP: "192.0.2.1", Port: 25565},
		&slp.ProbeError{Kind: apperr.Net, NoResponse: true})

	stats := c.Stats()
	if stats.Offline != 1 || stats.NoResponse != 1 || stats.Errors != 0 {
		t.Errorf("stats = %+v, want offline=1 noresponse=1 errors=0", stats)
	}
	if len(fs.scans) != 1 || fs.scans[0].Snapshot.Online {
		t.Fatalf("expected one offline snapshot persisted, got %+v", fs.scans)
	}
}

func TestRecordSuccessWithLegacyReply(t *testing.T) {
	fs := &fakeStore{}
	c := newTestCoordinator(fs)

	result := &slp.Result{
		Legacy: &slp.LegacyReply{
			ProtocolVersion: -1,
			VersionName:     "1.6.4",
			MOTD:            "A legacy server",
			OnlinePlayers:   1,
			MaxPlayers:      20,
			LatencyMS:       12,
		},
	}

	c.recordSuccess(context.Background(), discovery.Target{IP: "192.0.2.2", Port: 25565}, result)

	stats := c.Stats()
	if stats.Online != 1 {
		t.Errorf("Online = %d, want 1", stats.Online)
	}
	if len(fs.scans) != 1 {
		t.Fatalf("expected one snapshot persisted, got %d", len(fs.scans))
	}
	snap := fs.scans[0].Snapshot
	if !snap.Online || snap.VersionName != "1.6.4" || snap.MOTDClean != "A legacy server" {
		t.Errorf("snapshot = %+v, want legacy reply fields carried over", snap)
	}
}

func TestDominantModType(t *testing.T) {
	if got := dominantModType(nil); got != "" {
		t.Errorf("dominantModType(nil) = %q, want empty", got)
	}
	mods := []status.Mod{{ID: "worldedit", Type: status.ModTypePlugin}, {ID: "other", Type: status.ModTypeForge}}
	if got := dominantModType(mods); got != string(status.ModTypePlugin) {
		t.Errorf("dominantModType(mods) = %q, want %q", got, status.ModTypePlugin)
	}
}

package pgstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/voxelwatch/scanner/internal/store"
)

// openTestStore requires a live Postgres reachable at VOXELWATCH_TEST_DSN.
// There is no in-pack precedent for a fake or embedded Postgres, so unlike
// sqlitestore's in-memory suite this one is skipped by default rather than
// faked — running it is an opt-in integration check.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("VOXELWATCH_TEST_DSN")
	if dsn == "" {
		t.Skip("VOXELWATCH_TEST_DSN not set; skipping postgres integration test")
	}

	ctx := context.Background()
	s, err := Open(ctx, dsn, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func TestPutAndGetEndpointScan(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	runID, err := s.StartRun(ctx)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	scan := store.EndpointScan{
		RunID: runID,
		Snapshot: store.StatusSnapshot{
			IP:            "192.0.2.20",
			Port:          25565,
			ScannedAt:     time.Now().UTC(),
			Online:        true,
			VersionName:   "1.21",
			MOTDClean:     "A Postgres-backed server",
			OnlinePlayers: 2,
			MaxPlayers:    10,
			Software:      "purpur",
			OnlineMode:    "online",
		},
	}
	if err := s.PutEndpointScan(ctx, scan); err != nil {
		t.Fatalf("PutEndpointScan: %v", err)
	}

	ep, snap, err := s.GetEndpoint(ctx, "192.0.2.20", 25565)
	if err != nil {
		t.Fatalf("GetEndpoint: %v", err)
	}
	if ep == nil || snap == nil {
		t.Fatal("expected endpoint and snapshot, got nil")
	}
	if snap.Software != "purpur" {
		t.Errorf("snap.Software = %q, want purpur", snap.Software)
	}
	if ep.TotalScans != 1 || ep.SuccessfulScans != 1 || ep.AvailabilityPct != 100 {
		t.Errorf("endpoint aggregate = %+v, want total=1 successful=1 availability=100", ep)
	}
	if ep.LastOnline == nil {
		t.Error("LastOnline is nil, want it set for an online scan")
	}

	offlineScan := store.EndpointScan{
		RunID: runID,
		Snapshot: store.StatusSnapshot{
			IP: "192.0.2.20", Port: 25565, ScannedAt: time.Now().UTC(), Online: false, ErrorKind: "net",
		},
	}
	if err := s.PutEndpointScan(ctx, offlineScan); err != nil {
		t.Fatalf("PutEndpointScan (offline): %v", err)
	}
	ep, _, err = s.GetEndpoint(ctx, "192.0.2.20", 25565)
	if err != nil {
		t.Fatalf("GetEndpoint: %v", err)
	}
	if ep.TotalScans != 2 || ep.SuccessfulScans != 1 {
		t.Errorf("endpoint aggregate after offline scan = %+v, want total=2 successful=1", ep)
	}
	if ep.AvailabilityPct != 50 {
		t.Errorf("AvailabilityPct = %v, want 50", ep.AvailabilityPct)
	}
	if ep.SuccessfulScans > ep.TotalScans {
		t.Errorf("invariant violated: successful_scans %d > total_scans %d", ep.SuccessfulScans, ep.TotalScans)
	}
}

func TestSearchFiltersByExactFields(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	runID, err := s.StartRun(ctx)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	servers := []store.StatusSnapshot{
		{IP: "192.0.2.21", Port: 25565, ScannedAt: time.Now().UTC(), Online: true, VersionName: "1.21", MOTDClean: "Survival", Software: "paper"},
		{IP: "192.0.2.22", Port: 25565, ScannedAt: time.Now().UTC(), Online: true, VersionName: "1.20.4", MOTDClean: "Creative", Software: "vanilla"},
	}
	for _, snap := range servers {
		if err := s.PutEndpointScan(ctx, store.EndpointScan{RunID: runID, Snapshot: snap}); err != nil {
			t.Fatalf("PutEndpointScan: %v", err)
		}
	}

	results, err := s.Search(ctx, store.SearchFilter{Software: "paper"}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].IP != "192.0.2.21" {
		t.Errorf("Search(software=paper) = %+v, want only 192.0.2.21", results)
	}

	results, err = s.Search(ctx, store.SearchFilter{Query: "Creative"}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].IP != "192.0.2.22" {
		t.Errorf("Search(query=Creative) = %+v, want only 192.0.2.22", results)
	}
}

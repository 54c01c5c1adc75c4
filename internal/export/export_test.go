package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/voxelwatch/scanner/internal/store"
)

func sampleSnapshots() []store.StatusSnapshot {
	return []store.StatusSnapshot{
		{
			IP: "192.0.2.1", Port: 25565, ScannedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			Online: true, ProtocolVersion: 770, VersionName: "1.21", MOTDClean: "Hello",
			OnlinePlayers: 2, MaxPlayers: 20, Software: "paper", ModType: "none", OnlineMode: "online",
		},
	}
}

func TestJSONExport(t *testing.T) {
	var buf bytes.Buffer
	if err := JSON(&buf, sampleSnapshots()); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var out []store.StatusSnapshot
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(out) != 1 || out[0].IP != "192.0.2.1" {
		t.Errorf("out = %+v", out)
	}
}

func TestCSVExport(t *testing.T) {
	var buf bytes.Buffer
	if err := CSV(&buf, sampleSnapshots()); err != nil {
		t.Fatalf("CSV: %v", err)
	}
	reader := csv.NewReader(strings.NewReader(buf.String()))
	records, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want header + 1 row", len(records))
	}
	if records[1][0] != "192.0.2.1" {
		t.Errorf("row[0] = %q, want 192.0.2.1", records[1][0])
	}
}

func TestXLSXExport(t *testing.T) {
	var buf bytes.Buffer
	if err := XLSX(&buf, sampleSnapshots()); err != nil {
		t.Fatalf("XLSX: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("expected non-empty XLSX output")
	}
}

// Package export writes scan results to JSON, CSV, or XLSX, the three
// formats spec.md §6 names for the "export" CLI subcommand.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/voxelwatch/scanner/internal/store"
)

var csvHeader = []string{
	"ip", "port", "scanned_at", "online", "protocol_version", "version_name",
	"motd_clean", "online_players", "max_players", "software", "mod_type", "online_mode",
}

// JSON writes snapshots as a single JSON array.
func JSON(w io.Writer, snapshots []store.StatusSnapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snapshots)
}

// CSV writes snapshots as CSV with a fixed column header.
func CSV(w io.Writer, snapshots []store.StatusSnapshot) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("export: writing CSV header: %w", err)
	}
	for _, s := range snapshots {
		record := []string{
			s.IP, strconv.Itoa(s.Port), s.ScannedAt.Format("2006-01-02T15:04:05Z07:00"),
			strconv.FormatBool(s.Online), strconv.Itoa(s.ProtocolVersion), s.VersionName,
			s.MOTDClean, strconv.Itoa(s.OnlinePlayers), strconv.Itoa(s.MaxPlayers),
			s.Software, s.ModType, s.OnlineMode,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("export: writing CSV row for %s:%d: %w", s.IP, s.Port, err)
		}
	}
	return writer.Error()
}

// XLSX writes snapshots as a single-sheet spreadsheet to w.
func XLSX(w io.Writer, snapshots []store.StatusSnapshot) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Servers"
	f.SetSheetName(f.GetSheetName(0), sheet)

	for col, header := range csvHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for i, s := range snapshots {
		row := i + 2
		values := []any{
			s.IP, s.Port, s.ScannedAt.Format("2006-01-02T15:04:05Z07:00"), s.Online, s.ProtocolVersion,
			s.VersionName, s.MOTDClean, s.OnlinePlayers, s.MaxPlayers, s.Software, s.ModType, s.OnlineMode,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheet, cell, v)
		}
	}

	return f.Write(w)
}

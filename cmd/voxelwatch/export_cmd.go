package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voxelwatch/scanner/internal/apperr"
	"github.com/voxelwatch/scanner/internal/export"
	"github.com/voxelwatch/scanner/internal/store"
)

func newExportCmd() *cobra.Command {
	var query, format string
	var limit int

	cmd := &cobra.Command{
		Use:   "export <output-file>",
		Short: "Export scan results to JSON, CSV, or XLSX (format inferred from the extension)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := initLogger(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return apperr.WrapConfig("initializing logger", err)
			}
			defer log.Sync()

			st, err := openStore(cmd.Context(), cfg.Store, log)
			if err != nil {
				return err
			}
			defer st.Close()

			snapshots, err := st.Search(cmd.Context(), store.SearchFilter{Query: query}, limit)
			if err != nil {
				return apperr.WrapStore("fetching snapshots to export", err)
			}

			outPath := args[0]
			f, err := os.Create(outPath)
			if err != nil {
				return apperr.WrapStore("creating "+outPath, err)
			}
			defer f.Close()

			resolved := format
			if resolved == "" {
				resolved = strings.TrimPrefix(strings.ToLower(filepath.Ext(outPath)), ".")
			}

			switch resolved {
			case "json":
				err = export.JSON(f, snapshots)
			case "csv":
				err = export.CSV(f, snapshots)
			case "xlsx":
				err = export.XLSX(f, snapshots)
			default:
				return apperr.NewConfig("export: unrecognized format " + resolved + ", want json, csv, or xlsx")
			}
			if err != nil {
				return apperr.Wrap(apperr.Store, "writing export", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "only export snapshots whose MOTD or version name contains this substring")
	cmd.Flags().StringVar(&format, "format", "", "json, csv, or xlsx; inferred from the output file's extension if unset")
	cmd.Flags().IntVar(&limit, "limit", 10000, "maximum number of snapshots to export")
	return cmd
}

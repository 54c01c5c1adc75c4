package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voxelwatch/scanner/internal/apperr"
	"github.com/voxelwatch/scanner/internal/store"
)

func newSearchCmd() *cobra.Command {
	var filter store.SearchFilter
	var limit int

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search recent snapshots by MOTD/version text and exact-match filters",
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

			results, err := st.Search(cmd.Context(), filter, limit)
			if err != nil {
				return apperr.WrapStore("searching snapshots", err)
			}

			out := cmd.OutOrStdout()
			for _, s := range results {
				fmt.Fprintf(out, "%-21s %-20s %-10s players=%d/%d  %q\n",
					fmt.Sprintf("%s:%d", s.IP, s.Port), s.VersionName, s.Software,
					s.OnlinePlayers, s.MaxPlayers, s.MOTDClean)
			}
			fmt.Fprintf(out, "%d result(s)\n", len(results))
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Query, "query", "", "substring to match against MOTD or version name")
	cmd.Flags().StringVar(&filter.Software, "software", "", "exact-match software classification, e.g. paper")
	cmd.Flags().StringVar(&filter.Version, "version", "", "exact-match version name")
	cmd.Flags().StringVar(&filter.OnlineMode, "online-mode", "", "exact-match online-mode: online, offline, or unknown")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of results")
	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voxelwatch/scanner/internal/apperr"
	"github.com/voxelwatch/scanner/internal/store"
)

func newStatsCmd() *cobra.Command {
	var runID int64

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate statistics over scan results",
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

			filter := store.StatsFilter{RunID: runID}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			total, err := st.TotalServers(ctx, filter)
			if err != nil {
				return apperr.WrapStore("computing total servers", err)
			}
			online, offline, err := st.OnlineOfflineCounts(ctx, filter)
			if err != nil {
				return apperr.WrapStore("computing online/offline counts", err)
			}
			players, err := st.UniquePlayerCount(ctx, filter)
			if err != nil {
				return apperr.WrapStore("computing unique player count", err)
			}
			mods, err := st.UniqueModCount(ctx, filter)
			if err != nil {
				return apperr.WrapStore("computing unique mod count", err)
			}
			bySoftware, err := st.ServersBySoftware(ctx, filter)
			if err != nil {
				return apperr.WrapStore("computing servers by software", err)
			}
			byVersion, err := st.ServersByVersion(ctx, filter)
			if err != nil {
				return apperr.WrapStore("computing servers by version", err)
			}

			fmt.Fprintf(out, "servers:        %d (online=%d offline=%d)\n", total, online, offline)
			fmt.Fprintf(out, "unique players: %d\n", players)
			fmt.Fprintf(out, "unique mods:    %d\n", mods)
			fmt.Fprintln(out, "by software:")
			for _, sc := range bySoftware {
				fmt.Fprintf(out, "  %-12s %d\n", sc.Software, sc.Count)
			}
			fmt.Fprintln(out, "by version:")
			for _, vc := range byVersion {
				fmt.Fprintf(out, "  %-12s %d\n", vc.VersionName, vc.Count)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&runID, "run", 0, "limit statistics to this scan run (0 means all runs)")
	return cmd
}

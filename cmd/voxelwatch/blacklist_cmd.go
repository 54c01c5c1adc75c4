package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxelwatch/scanner/internal/apperr"
	"github.com/voxelwatch/scanner/internal/store"
)

func newBlacklistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blacklist",
		Short: "Manage the persisted blacklist",
	}
	cmd.AddCommand(newBlacklistImportCmd())
	return cmd
}

func newBlacklistImportCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import IP/CIDR entries from a file into the store",
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

			f, err := os.Open(args[0])
			if err != nil {
				return apperr.WrapConfig("opening "+args[0], err)
			}
			defer f.Close()

			var entries []store.BlacklistEntry
			now := time.Now().UTC()
			scanner := bufio.NewScanner(f)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" || strings.HasPrefix(line, "#") {
					continue
				}
				// ip[,reason[,added_time[,notes]]] or cidr[,...]; only the
				// first field is matched against scan targets, the rest is
				// metadata carried through to the store.
				fields := strings.SplitN(line, ",", 4)
				value := strings.TrimSpace(fields[0])
				entryReason := reason
				if len(fields) > 1 && strings.TrimSpace(fields[1]) != "" {
					entryReason = strings.TrimSpace(fields[1])
				}
				entries = append(entries, store.BlacklistEntry{Value: value, Reason: entryReason, CreatedAt: now})
			}
			if err := scanner.Err(); err != nil {
				return apperr.WrapConfig("reading "+args[0], err)
			}

			if err := st.ImportBlacklist(cmd.Context(), entries); err != nil {
				return apperr.WrapStore("importing blacklist entries", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d blacklist entries\n", len(entries))
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded against every imported entry")
	return cmd
}

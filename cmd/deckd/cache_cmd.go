package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func cacheCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or empty the decoded-audio cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Show cache usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			dc, err := openCache(cfg, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "directory: %s\nentries: %d\nsize: %.1f MiB of %d GiB\n",
				cfg.Cache.Directory, dc.Len(), float64(dc.Size())/(1<<20), cfg.Cache.MaxSizeGB)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete every decoded file",
		Long:  "Delete every decoded file. Stop the daemon first; it does not notice entries vanishing.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			dc, err := openCache(cfg, logger)
			if err != nil {
				return err
			}
			n := dc.Len()
			if err := dc.Clear(); err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries from %s\n", n, cfg.Cache.Directory)
			return nil
		},
	})
	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"micromanagerr/internal/scancache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the classification cache",
	}
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache location and entry counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCacheStore(cmd, ctx, func(store *scancache.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Cache path: %s\n", store.Path())
				fmt.Fprintf(out, "Entries:    %d\n", stats.Entries)
				fmt.Fprintf(out, "Files:      %d\n", stats.Files)
				return nil
			})
		},
	})
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached classification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCacheStore(cmd, ctx, func(store *scancache.Store) error {
				removed, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached classification(s)\n", removed)
				return nil
			})
		},
	})
	return cacheCmd
}

func withCacheStore(cmd *cobra.Command, ctx *commandContext, fn func(*scancache.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := scancache.Open(cmd.Context(), cfg.CachePath())
	if err != nil {
		return fmt.Errorf("open classification cache: %w", err)
	}
	defer store.Close()
	return fn(store)
}

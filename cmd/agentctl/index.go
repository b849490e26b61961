package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"parley/agent/internal/rag"
)

func newIndexCmd(a *app) *cobra.Command {
	idx := &cobra.Command{
		Use:   "index",
		Short: "Manage persona indexes",
	}

	var user string
	build := &cobra.Command{
		Use:   "build",
		Short: "Rebuild a user's persona index from the persona directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			rdb := a.redisClient()
			if rdb != nil {
				defer rdb.Close()
			}

			rec, err := rag.Reindex(ctx, a.cfg, a.embedder(), rdb, user)
			if err != nil {
				return fmt.Errorf("build index: %w", err)
			}
			if err := st.RecordIndex(ctx, rec); err != nil {
				return fmt.Errorf("record index: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d chunks for %s (%s %s)\n", rec.Chunks, rec.UserID, rec.Backend, rec.Path)
			return nil
		},
	}
	build.Flags().StringVar(&user, "user", a.cfg.Agent.DefaultUser, "user whose persona to index")

	var showUser string
	show := &cobra.Command{
		Use:   "show",
		Short: "Show the last recorded index build for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			rec, err := st.LastIndex(ctx, showUser)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d chunks\t%s\n", rec.UserID, rec.Backend, rec.Chunks, rec.At.Format("2006-01-02T15:04:05Z07:00"))
			return nil
		},
	}
	show.Flags().StringVar(&showUser, "user", a.cfg.Agent.DefaultUser, "user to look up")

	idx.AddCommand(build, show)
	return idx
}

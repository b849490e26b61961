package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	var room string
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the most recent turns stored for a room",
		RunE: func(cmd *cobra.Command, args []string) error {
			if room == "" {
				return fmt.Errorf("--room is required")
			}
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			turns, err := st.LoadHistory(ctx, room, limit)
			if err != nil {
				return err
			}
			for _, t := range turns {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s: %s\n", t.At.Format("15:04:05"), t.Role, t.Content)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&room, "room", "", "room name")
	cmd.Flags().IntVar(&limit, "limit", a.cfg.Agent.HistoryReloadTurns, "number of turns")
	return cmd
}

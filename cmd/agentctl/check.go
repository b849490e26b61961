package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"parley/agent/internal/health"
)

func newCheckCmd(a *app) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the store and provider credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			status := health.CheckAll(ctx,
				health.Ping("store", st),
				health.Deepgram(nil, "", a.cfg.Deepgram.APIKey),
				health.ElevenLabs(nil, "", a.cfg.Eleven.APIKey),
				health.Credential("openai", "OPENAI_API_KEY", a.cfg.OpenAI.APIKey),
			)
			fmt.Fprint(cmd.OutOrStdout(), status.String())
			if !status.OK {
				return errors.New("one or more checks failed")
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "overall check timeout")
	return cmd
}

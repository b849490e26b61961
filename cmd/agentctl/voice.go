package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"parley/agent/internal/store"
	"parley/agent/internal/types"
)

func newVoiceCmd(a *app) *cobra.Command {
	v := &cobra.Command{
		Use:   "voice",
		Short: "Inspect and set per-user voice profiles",
	}

	var p types.VoiceProfile
	var status string
	set := &cobra.Command{
		Use:   "set",
		Short: "Record a provisioned voice for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if p.UserID == "" || p.VoiceID == "" {
				return errors.New("--user and --voice-id are required")
			}
			p.Status = types.VoiceStatus(status)
			switch p.Status {
			case types.VoiceReady, types.VoicePending, types.VoiceFailed:
			default:
				return fmt.Errorf("invalid status %q", status)
			}
			if p.Provider == "" {
				p.Provider = a.cfg.Agent.VoiceProvider
			}
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.SetVoice(ctx, p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s/%s -> %s (%s)\n", p.UserID, p.Provider, p.VoiceID, p.Status)
			return nil
		},
	}
	set.Flags().StringVar(&p.UserID, "user", "", "user id")
	set.Flags().StringVar(&p.VoiceID, "voice-id", "", "provider voice id")
	set.Flags().StringVar(&p.Provider, "provider", "", "voice provider (defaults to VOICE_PROVIDER)")
	set.Flags().StringVar(&status, "status", string(types.VoiceReady), "ready, pending or failed")

	var getUser, getProvider string
	get := &cobra.Command{
		Use:   "get",
		Short: "Print a user's voice profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if getProvider == "" {
				getProvider = a.cfg.Agent.VoiceProvider
			}
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			prof, err := st.GetVoice(ctx, getUser, getProvider)
			if errors.Is(err, store.ErrNotFound) {
				fmt.Fprintf(cmd.OutOrStdout(), "no %s voice for %s\n", getProvider, getUser)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s/%s -> %s (%s)\n", prof.UserID, prof.Provider, prof.VoiceID, prof.Status)
			return nil
		},
	}
	get.Flags().StringVar(&getUser, "user", "", "user id")
	get.Flags().StringVar(&getProvider, "provider", "", "voice provider")

	v.AddCommand(set, get)
	return v
}

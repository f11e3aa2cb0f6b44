package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eleven-am/relay247/internal/domain"
	"github.com/eleven-am/relay247/internal/settings"
)

func newConfigCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the relay settings file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newConfigInitCommand(opts), newConfigShowCommand(opts))
	return cmd
}

func newConfigInitCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a settings file with default values",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(opts.configPath); err == nil {
				return fmt.Errorf("%s already exists, refusing to overwrite", opts.configPath)
			}

			cfg := domain.RelayConfig{Overlay: true}
			cfg.Normalize()
			if err := settings.Save(opts.configPath, cfg); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\nfill in %s and %s before starting the relay\n",
				opts.configPath, "RELAY_PLAYLIST_ID", "RELAY_STREAM_KEY")
			return nil
		},
	}
}

func newConfigShowCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := settings.Load(opts.configPath)
			if err != nil {
				return err
			}

			key := cfg.StreamKey
			if key != "" {
				key = "****"
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "playlist:      %s\n", cfg.PlaylistID)
			fmt.Fprintf(out, "ingest base:   %s\n", cfg.IngestBase)
			fmt.Fprintf(out, "stream key:    %s\n", key)
			fmt.Fprintf(out, "output:        %dp%d, %dk video, %dk audio, bufsize %dk\n",
				cfg.Height, cfg.FPS, cfg.VideoBitrate, cfg.AudioBitrate, cfg.BufSize)
			fmt.Fprintf(out, "buffering:     %s\n", cfg.Buffering)
			fmt.Fprintf(out, "overlay:       %s\n", onOff(cfg.Overlay))
			fmt.Fprintf(out, "shuffle:       %s\n", onOff(cfg.Shuffle))
			fmt.Fprintf(out, "legacy ingest: %s\n", onOff(cfg.LegacyIngest))
			fmt.Fprintf(out, "cool-down:     %s, item delay: %s\n", cfg.CoolDown, cfg.ItemDelay)
			return nil
		},
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

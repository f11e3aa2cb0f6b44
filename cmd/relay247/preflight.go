package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eleven-am/relay247"
	"github.com/eleven-am/relay247/internal/encoder"
	"github.com/eleven-am/relay247/internal/ffmpeg"
	"github.com/eleven-am/relay247/internal/log"
	"github.com/eleven-am/relay247/internal/preflight"
	"github.com/eleven-am/relay247/internal/settings"
)

func newPreflightCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Push a short test signal to the ingest endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Configure(log.Config{Level: opts.logLevel})

			cfg, err := settings.Load(opts.configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("relay config: %w", err)
			}

			tools, err := relay247.Tools{}.Complete()
			if err != nil {
				return err
			}

			enc := encoder.Select(cmd.Context(), tools.FFmpeg)
			checker := preflight.New(tools.FFmpeg, ffmpeg.NewBuilder(cfg, enc))

			finalURL, err := checker.Validate(cmd.Context(), cfg.IngestURL())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ingest accepted the test push\nencoder: %s\nurl:     %s\n",
				enc.Name, strings.Replace(finalURL, cfg.StreamKey, "****", 1))
			return nil
		},
	}
}

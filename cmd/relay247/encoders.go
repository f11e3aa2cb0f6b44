package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eleven-am/relay247"
	"github.com/eleven-am/relay247/internal/encoder"
	"github.com/eleven-am/relay247/internal/log"
)

func newEncodersCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "encoders",
		Short: "Probe which encoders work on this machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Configure(log.Config{Level: opts.logLevel})

			tools, err := relay247.Tools{}.Complete()
			if err != nil {
				return err
			}

			for _, res := range encoder.ProbeAll(cmd.Context(), tools.FFmpeg) {
				mark := "no"
				if res.OK {
					mark = "ok"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-3s %-12s %s\n", mark, res.Selection.Codec, res.Selection.Name)
			}
			return nil
		},
	}
}

package main

import (
	"github.com/spf13/cobra"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "celestia",
		Short:         "CelestIA zodiac chat: ingest astrology texts and ask about them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default ./config.yaml or ~/.config/celestia/config.yaml)")

	root.AddCommand(ingestCmd(opts), seedCmd(opts), chatCmd(opts))
	return root
}

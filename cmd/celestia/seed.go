package main

import (
	"github.com/spf13/cobra"

	"github.com/LetsFonseca/CelestiAI/internal/seed"
)

func seedCmd(root *rootOptions) *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upload the built-in zodiac facts, one chunk each",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(root.configPath)
			if err != nil {
				return err
			}
			if collection != "" {
				cfg.SetCollection(collection)
			}
			log, err := newLogger(cfg, "stderr")
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			report, err := a.svc.IngestTexts(ctx, seed.Docs(), seed.Source)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report, cfg.Collection())
			return nil
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "target collection (default from config)")
	return cmd
}

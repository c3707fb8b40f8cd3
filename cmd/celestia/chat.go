package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/LetsFonseca/CelestiAI/internal/config"
	"github.com/LetsFonseca/CelestiAI/internal/metrics"
	"github.com/LetsFonseca/CelestiAI/internal/seed"
	"github.com/LetsFonseca/CelestiAI/internal/session"
	"github.com/LetsFonseca/CelestiAI/internal/tui"
)

func chatCmd(root *rootOptions) *cobra.Command {
	var (
		withSeed    bool
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive zodiac chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root.configPath)
			if err != nil {
				return err
			}
			if metricsAddr != "" {
				cfg.Metrics.Addr = metricsAddr
			}
			log, err := newLogger(cfg, cfg.Logging.File)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				if errors.Is(err, config.ErrMissing) {
					return fmt.Errorf("⚠️ the vector store is not configured: %w", err)
				}
				return err
			}
			defer a.Close(context.Background())

			if withSeed {
				if _, err := a.svc.IngestTexts(ctx, seed.Docs(), seed.Source); err != nil {
					return fmt.Errorf("seed: %w", err)
				}
			}
			if cfg.Metrics.Addr != "" {
				go func() {
					if err := metrics.Serve(ctx, cfg.Metrics.Addr, a.registry, log); err != nil {
						log.Errorw("metrics server stopped", "error", err)
					}
				}()
			}

			sess := session.New(session.Options{Greeting: cfg.Chat.Greeting, ShowContext: cfg.Chat.ShowContext})
			m := tui.New(ctx, a.svc, sess, startupStatus(ctx, a))
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		},
	}
	cmd.Flags().BoolVar(&withSeed, "seed", false, "upload the built-in zodiac facts before chatting")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

// startupStatus reports how many chunks the collection holds, and whether
// answers are possible at all.
func startupStatus(ctx context.Context, a *app) string {
	n, err := a.svc.Count(ctx)
	if err != nil {
		a.log.Warnw("count failed", "error", err)
		return "Vector store unavailable: " + err.Error()
	}
	status := fmt.Sprintf("%d chunk(s) in %q. Ctrl+C to quit.", n, a.cfg.Collection())
	if !a.llm.Configured() {
		status = fmt.Sprintf("%s %s is not set, answers are disabled.", status, a.cfg.LLM.APIKeyEnv)
	}
	return status
}

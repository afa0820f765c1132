package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/talkless/talkless/config"
)

func runCMD() *cobra.Command {
	var cfgPath string
	var run = &cobra.Command{
		Use:   "run",
		Short: "Execute one pipeline batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			logger := log.New(log.Writer(), "[TALKLESS] ", log.LstdFlags)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			runCtx := ctx
			if cfg.General.MaxProcessingTime > 0 {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithTimeout(ctx, cfg.General.MaxProcessingTime)
				defer cancel()
			}

			result, err := a.orch.Execute(runCtx)
			if err != nil {
				return fmt.Errorf("pipeline run failed: %w", err)
			}

			r := result.Run
			fmt.Printf("\n=== RUN %s (%s) ===\n", r.ID, r.Status)
			fmt.Printf("fetched: %d  grouped: %d  summaries: %d  indicators: %d  errors: %d\n",
				r.ArticlesFetched, r.ArticlesGrouped, r.SummariesGenerated, r.BiasIndicatorsFound, len(r.Errors))
			for _, e := range r.Errors {
				fmt.Printf("  - %s\n", e)
			}
			for _, s := range result.Summaries {
				fmt.Printf("\n--- %s ---\n%s\n", s.Topic, s.Text)
			}
			return nil
		},
	}
	run.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return run
}

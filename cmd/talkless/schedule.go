package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/talkless/talkless/config"
	"github.com/talkless/talkless/internal/scheduler"
)

func scheduleCMD() *cobra.Command {
	var cfgPath string
	var schedule = &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline on its cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if !cfg.Scheduler.Enabled {
				return fmt.Errorf("scheduler.enabled is false")
			}
			logger := log.New(log.Writer(), "[TALKLESS] ", log.LstdFlags)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			if a.store == nil {
				return fmt.Errorf("scheduling requires postgres (storage.postgres) for run bookkeeping")
			}

			sched := scheduler.New(cfg.Scheduler, a.orch, a.store, a.rdb,
				log.New(log.Writer(), "[SCHED] ", log.LstdFlags))
			sched.Start(ctx)
			logger.Printf("Scheduler stopped")
			return nil
		},
	}
	schedule.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return schedule
}

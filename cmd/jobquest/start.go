package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alwinjoseph/jobquest/internal/model"
	"github.com/alwinjoseph/jobquest/internal/notifier"
	"github.com/alwinjoseph/jobquest/internal/scheduler"
	"github.com/alwinjoseph/jobquest/internal/store"
)

var dryRun bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the alert watcher daemon",
	Long:  "Start the scheduler daemon; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
	// Registered on both commands since the bare binary defaults to start.
	for _, cmd := range []*cobra.Command{rootCmd, startCmd} {
		cmd.Flags().BoolVar(&dryRun, "dry-run", false, "evaluate each alert once, log matches, persist and deliver nothing, then exit")
	}
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("config loaded",
		"interval", cfg.Schedule.Interval.String(),
		"stagger", cfg.Schedule.AlertStagger.String(),
		"notifier", cfg.Notification.Type,
		"ai_enabled", cfg.AI.Enabled,
		"db", cfg.Storage.Path,
	)

	st, err := openStore(cfg)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// In dry-run mode, swap in a nop ledger and the log notifier so every
	// posting is reported and nothing is persisted or delivered.
	var (
		ledger model.Ledger     = st
		alerts model.AlertStore = st
		n                       = setupNotifier(cfg, logger)
	)
	if dryRun {
		logger.Info("dry-run mode enabled, no postings will be recorded or delivered")
		ledger = store.NewNopLedger()
		alerts = store.NewDryRunAlerts(st)
		n = notifier.NewLogNotifier(logger)
	}

	ev := buildEvaluator(cfg, ledger, alerts, n, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// In dry-run mode, evaluate each active alert once and exit.
	if dryRun {
		active, err := alerts.ActiveAlerts()
		if err != nil {
			logger.Error("failed to load alerts", "error", err)
			os.Exit(1)
		}
		for _, a := range active {
			if err := ev.Evaluate(ctx, a); err != nil {
				logger.Error("alert evaluation failed", "alert_id", a.ID, "error", err)
			}
		}
		logger.Info("dry-run complete")
		return nil
	}

	sched := scheduler.NewScheduler(st, ev, cfg.Schedule.Interval, cfg.Schedule.AlertStagger, logger)
	if err := sched.Run(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}

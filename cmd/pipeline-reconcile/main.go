package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	leadrepo "estate_crm_backend/internal/leads/repository"
	"estate_crm_backend/platform/config"
	"estate_crm_backend/platform/db"
	"estate_crm_backend/platform/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		dryRun    bool
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "pipeline-reconcile",
		Short: "Correct lead statuses that are invalid for their pipeline",
		Long: `Scans every active lead and moves leads whose status does not belong to
their pipeline type to the status recommended for that pipeline.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), batchSize, dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report the corrections without writing them")
	cmd.Flags().IntVar(&batchSize, "batch-size", 100, "leads scanned per query")

	return cmd
}

func run(ctx context.Context, batchSize int, dryRun bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.Env)
	log.Info("starting pipeline status reconciliation", "dryRun", dryRun, "batchSize", batchSize)

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	summary, err := reconcile(ctx, leadrepo.New(pool), batchSize, dryRun, log)
	if err != nil {
		log.Error("reconciliation aborted", "error", err, "scanned", summary.Scanned, "corrected", summary.Corrected)
		return err
	}
	log.Info("reconciliation complete",
		"scanned", summary.Scanned,
		"corrected", summary.Corrected,
		"failed", summary.Failed,
		"dryRun", dryRun,
	)
	return nil
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jgourd/leadharvest/internal/app"
	"github.com/jgourd/leadharvest/internal/config"
)

// newHarvestCmd creates the 'run' subcommand that executes one full
// harvest.
func newHarvestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Runs one harvest end to end",
		Long: `Discovers references, fetches and extracts them, and writes the lead
batch to every configured sink. The process exits when the run
completes or on SIGINT/SIGTERM.`,
		RunE: runHarvestCommand,
	}
}

func runHarvestCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize application services: %w", err)
	}
	defer a.Close(context.Background())

	summary, err := a.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("harvest run: %w", err)
	}

	a.Logger().Info("run summary",
		zap.String("run_id", summary.RunID),
		zap.Int("unique_references", summary.Unique),
		zap.Int("leads", summary.Leads),
		zap.Int("credits_used", summary.CreditsUsed),
		zap.Duration("elapsed", summary.Elapsed),
	)
	return nil
}

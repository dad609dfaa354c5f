package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/broxiva/subscriptions/internal/app"
	"github.com/broxiva/subscriptions/internal/app/service/rollforward"
	"github.com/broxiva/subscriptions/pkg/config"
)

var snapshot bool

var rootCmd = &cobra.Command{
	Use:           "rollforward",
	Short:         "Subscription roll-forward",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one roll-forward pass and exit",
	Long: `Activates ended trials, expires subscriptions cancelled at period end and
renews due subscriptions, invoicing paid renewals.

Examples:
  rollforward run              # one pass
  rollforward run --snapshot   # one pass plus the daily status snapshot`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd.Context())
	},
}

func init() {
	runCmd.Flags().BoolVar(&snapshot, "snapshot", false, "also write the daily subscription snapshot")
	rootCmd.AddCommand(runCmd)
}

// disableTicker keeps the scheduled loop off; this process runs exactly one pass.
func disableTicker(c *config.Config) *config.Config {
	c.Rollforward.Interval = 0
	return c
}

func runOnce(ctx context.Context) error {
	var (
		runner *rollforward.Runner
		log    *zap.SugaredLogger
	)
	a := fx.New(
		app.Core,
		fx.Decorate(disableTicker),
		fx.Populate(&runner, &log),
		fx.NopLogger,
	)
	startCtx, cancel := context.WithTimeout(ctx, app.DefaultStartTimeout)
	defer cancel()
	if err := a.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), app.DefaultStopTimeout)
		defer cancel()
		if err := a.Stop(stopCtx); err != nil {
			log.Errorw("failed to stop", "err", err)
		}
	}()

	res, err := runner.Run(ctx, snapshot)
	if res != nil {
		log.Infow("rollforward finished", "result", res)
	}
	return err
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		zap.NewExample().Sugar().Errorf("rollforward: %v", err)
		os.Exit(1)
	}
}

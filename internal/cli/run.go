package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"krx-scalper/internal/clock"
	"krx-scalper/internal/engine"
	"krx-scalper/internal/market"
)

func newRunCmd(app *App) *cobra.Command {
	var (
		once   bool
		noSync bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation loop",
		Long: `Run the simulation loop against the configured market feed.

The loop waits out closed sessions, enters screened candidates inside the
entry window, sweeps exits every tick, force-liquidates before the close, and
saves a snapshot after every cycle. Interrupt with Ctrl-C; a final snapshot
is written on shutdown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			eng, feed, err := buildEngine(app, noSync)
			if err != nil {
				return err
			}
			if feed != nil {
				defer feed.Close()
			}

			if !output.IsJSON() {
				eng.SetActivityHook(func(msg string) {
					output.Info("» %s", msg)
				})
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if once {
				if err := eng.Bootstrap(ctx); err != nil {
					return err
				}
				eng.Tick(ctx)
				printSummary(output, eng)
				return nil
			}

			output.Bold("krx-scalper v%s", Version)
			output.Dim("database: %s", app.Config.Store.DBPath)
			if app.Config.Feed.URL == "" {
				output.Warning("feed.url is not set; running without a candidate feed")
			}

			err = eng.Run(ctx)
			if errors.Is(err, context.Canceled) {
				output.Println()
				output.Success("Stopped, final snapshot saved")
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run a single tick and exit")
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "skip clock synchronization")

	return cmd
}

// buildEngine assembles the engine from configuration. The returned feed is
// nil when no feed URL is configured.
func buildEngine(app *App, noSync bool) (*engine.Engine, *market.Feed, error) {
	clk, err := clock.New(app.Config.Session)
	if err != nil {
		return nil, nil, err
	}

	st, err := app.OpenStore()
	if err != nil {
		return nil, nil, err
	}

	opts := engine.Options{
		Config: app.Config,
		Clock:  clk,
		Store:  st,
		Logger: app.Logger,
	}

	if !noSync {
		opts.Syncer = market.NewNTPSyncer("")
	}

	var feed *market.Feed
	if app.Config.Feed.URL != "" {
		feed = market.NewFeed(app.Config.Feed.URL)
		opts.Quotes = feed
		opts.Candidates = feed
	} else {
		opts.Quotes = market.NewSimMarket()
	}

	return engine.New(opts), feed, nil
}

func printSummary(output *Output, eng *engine.Engine) {
	summary := eng.Summary()
	if output.IsJSON() {
		output.JSON(summary)
		return
	}
	output.Printf("Cash:     %s\n", output.Won(summary.Cash, false))
	output.Printf("Invested: %s\n", output.Won(summary.Invested, false))
	output.Printf("Total:    %s\n", output.Won(summary.Total, false))
	output.Printf("Day P&L:  %s (%s)\n", output.Won(summary.DailyPnL, true), output.Percent(summary.DailyReturn))
}

package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"krx-scalper/internal/config"
	"krx-scalper/internal/logging"
	"krx-scalper/internal/store"
	"krx-scalper/pkg/utils"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies shared across commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  store.SnapshotStore
}

// OpenStore opens the snapshot store lazily. Commands that only read
// configuration never touch the database.
func (a *App) OpenStore() (store.SnapshotStore, error) {
	if a.Store != nil {
		return a.Store, nil
	}
	st, err := store.NewSQLiteStore(a.Config.Store.DBPath)
	if err != nil {
		return nil, err
	}
	a.Store = st
	return st, nil
}

// CloseStore closes the store if a command opened it.
func (a *App) CloseStore() {
	if a.Store != nil {
		a.Store.Close()
		a.Store = nil
	}
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "krx-scalper",
		Short: "Virtual scalping simulator for the Korea Exchange",
		Long: `krx-scalper runs a virtual intraday scalping book against the Korea
Exchange session. It screens candidates, enters positions with virtual
capital, exits on profit target or stop loss, force-liquidates before the
close, and records daily compounding returns.

No real orders are ever placed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.CloseStore()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/krx-scalper)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newStatusCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))
	rootCmd.AddCommand(newDayCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
			} else {
				output.Printf("krx-scalper v%s\n", Version)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the simulator configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Capital")
	output.Printf("  Initial:          %s\n", utils.FormatWon(cfg.Capital.Initial))
	output.Printf("  Min Order:        %s\n", utils.FormatWon(cfg.Capital.MinOrderAmount))
	output.Printf("  Scale-down Ratio: %.2f\n", cfg.Capital.ScaleDownRatio)
	output.Println()

	output.Bold("Risk")
	output.Printf("  Profit Target:    %+.2f%%\n", cfg.Risk.ProfitTargetPct)
	output.Printf("  Stop Loss:        %+.2f%%\n", cfg.Risk.StopLossPct)
	output.Printf("  Max Positions:    %d\n", cfg.Risk.MaxPositions)
	output.Printf("  Tiered Strategy:  %v\n", cfg.Risk.TieredStrategy)
	output.Println()

	output.Bold("Session")
	output.Printf("  Timezone:         %s\n", cfg.Session.Timezone)
	output.Printf("  Open:             %s\n", cfg.Session.Open)
	output.Printf("  Entry Window:     %s - %s\n", cfg.Session.EntryOpen, cfg.Session.EntryCutoff)
	output.Printf("  Force Exit:       %s\n", cfg.Session.ForceExit)
	output.Printf("  Close:            %s\n", cfg.Session.Close)
	output.Printf("  Holidays:         %d configured\n", len(cfg.Session.Holidays))
	output.Println()

	output.Bold("Engine")
	output.Printf("  Tick Interval:    %s\n", cfg.Engine.TickInterval)
	output.Printf("  Quote Workers:    %d\n", cfg.Engine.QuoteWorkers)
	output.Printf("  Screen Tag:       %s\n", cfg.Engine.ScreenTag)
	output.Println()

	output.Bold("Store")
	output.Printf("  Database:         %s\n", cfg.Store.DBPath)
	output.Println()

	output.Bold("Feed")
	if cfg.Feed.URL == "" {
		output.Printf("  URL:              %s\n", output.DimText("(not set, replay mode)"))
	} else {
		output.Printf("  URL:              %s\n", cfg.Feed.URL)
	}
}

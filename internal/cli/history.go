package cli

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"krx-scalper/internal/models"
	"krx-scalper/internal/returns"
	"krx-scalper/internal/store"
	"krx-scalper/pkg/utils"
)

func newHistoryCmd(app *App) *cobra.Command {
	var (
		from    string
		to      string
		limit   int
		csvPath string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show finalized daily returns",
		Long: `Show finalized daily returns with compounding statistics.

Dates use the YYYYMMDD key format. Use --csv to export the filtered rows to
a file instead of rendering a table.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			st, err := app.OpenStore()
			if err != nil {
				return err
			}

			history, err := st.History(cmd.Context(), store.HistoryFilter{
				From:  from,
				To:    to,
				Limit: limit,
			})
			if err != nil {
				return err
			}

			if csvPath != "" {
				return exportCSV(output, csvPath, history)
			}

			if output.IsJSON() {
				return output.JSON(history)
			}

			if len(history) == 0 {
				output.Dim("No finalized trading days")
				return nil
			}

			table := NewTable(output, "DATE", "START", "END", "P&L", "DAILY", "CUMULATIVE", "TRADES")
			for _, d := range history {
				table.AddRow(
					d.Date,
					utils.FormatWon(d.StartCapital),
					utils.FormatWon(d.EndCapital),
					output.Won(d.DailyPnL, true),
					output.Percent(d.DailyReturn),
					output.Percent(d.CumulativeReturn),
					fmt.Sprintf("%d", d.TradeCount),
				)
			}
			table.Render()
			output.Println()

			printAnalysis(output, history)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "start date (YYYYMMDD, inclusive)")
	cmd.Flags().StringVar(&to, "to", "", "end date (YYYYMMDD, inclusive)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of days (0 = all)")
	cmd.Flags().StringVar(&csvPath, "csv", "", "export to CSV file")

	return cmd
}

func printAnalysis(output *Output, history []models.DailySnapshot) {
	calc := returns.New(0)
	analysis := calc.AnalyzeHistory(history)

	last := history[len(history)-1]
	geometric := calc.GeometricDailyAverage(
		last.EndCapital, history[0].StartCapital, analysis.Days, last.DailyReturn)
	annualized := calc.AnnualizedProjection(geometric)

	output.Bold("Period Analysis (%d days)", analysis.Days)
	output.Printf("  Arithmetic Avg:   %s\n", output.Percent(analysis.ArithmeticAvg))
	output.Printf("  Geometric Avg:    %s\n", output.Percent(geometric))
	output.Printf("  Annualized:       %s\n", output.Percent(annualized))
	output.Printf("  Volatility:       %.2f%%\n", analysis.Volatility)
	output.Printf("  Sharpe (daily):   %.2f\n", analysis.Sharpe)
	output.Printf("  Positive Days:    %.1f%%\n", analysis.PositiveDayRatio)
	output.Printf("  Best Day:         %s (%s)\n", analysis.BestDay.Date, output.Percent(analysis.BestDay.DailyReturn))
	output.Printf("  Worst Day:        %s (%s)\n", analysis.WorstDay.Date, output.Percent(analysis.WorstDay.DailyReturn))
}

func exportCSV(output *Output, path string, history []models.DailySnapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&history, f); err != nil {
		return err
	}
	output.Success("Exported %d days to %s", len(history), path)
	return nil
}

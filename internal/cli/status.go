package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"krx-scalper/internal/clock"
	"krx-scalper/internal/returns"
	"krx-scalper/pkg/utils"
)

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show today's portfolio state",
		Long:  "Show the persisted portfolio state for the current trading day.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			clk, err := clock.New(app.Config.Session)
			if err != nil {
				return err
			}

			st, err := app.OpenStore()
			if err != nil {
				return err
			}

			now := clk.Now()
			date := utils.DateKey(now)

			state, txs, err := st.LoadDayState(cmd.Context(), date)
			if err != nil {
				return err
			}

			if state == nil {
				if output.IsJSON() {
					return output.JSON(map[string]interface{}{"date": date, "active": false})
				}
				output.Printf("Session:  %s\n", output.SessionBadge(string(clk.StateAt(now))))
				output.Dim("No activity recorded for %s", date)
				return nil
			}

			calc := returns.New(0)
			dailyReturn := calc.DailyReturn(state.DailyPnL, state.StartCapital)
			cumulative := calc.CumulativeReturn(state.Total(), state.OriginalCapital)
			winRate := calc.WinRate(txs)

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"date":              date,
					"active":            true,
					"state":             state,
					"daily_return":      dailyReturn,
					"cumulative_return": cumulative,
					"win_rate":          winRate,
				})
			}

			output.Bold("Portfolio %s", date)
			output.Printf("Session:     %s\n", output.SessionBadge(string(clk.StateAt(now))))
			output.Printf("Cash:        %s\n", output.Won(state.Cash, false))
			output.Printf("Invested:    %s\n", output.Won(state.Invested, false))
			output.Printf("Total:       %s\n", output.Won(state.Total(), false))
			output.Printf("Day P&L:     %s (%s)\n", output.Won(state.DailyPnL, true), output.Percent(dailyReturn))
			output.Printf("Cumulative:  %s\n", output.Percent(cumulative))
			output.Printf("Win Rate:    %.1f%%\n", winRate)
			output.Printf("Traded:      %d codes today\n", len(state.TradedToday))
			output.Println()

			if len(state.Positions) == 0 {
				output.Dim("No open positions")
				return nil
			}

			table := NewTable(output, "CODE", "NAME", "QTY", "ENTRY", "COST", "ENTERED")
			for _, p := range state.Positions {
				table.AddRow(
					p.Code,
					p.Name,
					fmt.Sprintf("%d", p.Quantity),
					utils.FormatWon(p.EntryPrice),
					utils.FormatWon(p.Cost),
					p.EntryTime.In(clk.Location()).Format("15:04:05"),
				)
			}
			table.Render()
			return nil
		},
	}
}

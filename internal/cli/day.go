package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	errs "krx-scalper/internal/errors"
	"krx-scalper/internal/models"
	"krx-scalper/internal/returns"
	"krx-scalper/pkg/utils"
)

func newDayCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "day",
		Short: "Inspect and close trading days",
	}

	cmd.AddCommand(newDayShowCmd(app))
	cmd.AddCommand(newDayFinalizeCmd(app))
	cmd.AddCommand(newDayResetCmd(app))

	return cmd
}

func newDayShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <date>",
		Short: "Show the transaction log for a day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			date := args[0]

			st, err := app.OpenStore()
			if err != nil {
				return err
			}

			state, txs, err := st.LoadDayState(cmd.Context(), date)
			if err != nil {
				return err
			}
			if state == nil {
				return errs.Wrapf(errs.ErrDataNotFound, "no state for %s", date)
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"state":        state,
					"transactions": txs,
				})
			}

			output.Bold("Day %s", date)
			output.Printf("Start Capital: %s\n", utils.FormatWon(state.StartCapital))
			output.Printf("Ending Total:  %s\n", utils.FormatWon(state.Total()))
			output.Printf("Day P&L:       %s\n", output.Won(state.DailyPnL, true))
			output.Println()

			if len(txs) == 0 {
				output.Dim("No transactions")
				return nil
			}

			table := NewTable(output, "TIME", "KIND", "CODE", "QTY", "PRICE", "AMOUNT", "PROFIT", "EXIT")
			for _, tx := range txs {
				profit := ""
				exitReason := ""
				if tx.Kind == models.TxSell {
					profit = output.Won(tx.Profit, true)
					exitReason = string(tx.ExitReason)
				}
				table.AddRow(
					tx.Timestamp.Format("15:04:05"),
					string(tx.Kind),
					tx.Code,
					fmt.Sprintf("%d", tx.Quantity),
					utils.FormatWon(tx.Price),
					utils.FormatWon(tx.Amount),
					profit,
					exitReason,
				)
			}
			table.Render()
			return nil
		},
	}
}

func newDayFinalizeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "finalize <date>",
		Short: "Finalize a day from its persisted state",
		Long: `Finalize a day from its persisted state.

Writes the daily return record computed from the saved snapshot. Safe to
repeat; re-finalizing a date replaces the record with the same values.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			date := args[0]

			st, err := app.OpenStore()
			if err != nil {
				return err
			}

			state, txs, err := st.LoadDayState(cmd.Context(), date)
			if err != nil {
				return err
			}
			if state == nil {
				return errs.Wrapf(errs.ErrDataNotFound, "no state for %s", date)
			}

			sells := 0
			for _, tx := range txs {
				if tx.Kind == models.TxSell {
					sells++
				}
			}

			calc := returns.New(0)
			snap := models.DailySnapshot{
				Date:             date,
				StartCapital:     state.StartCapital,
				EndCapital:       state.Total(),
				DailyPnL:         state.DailyPnL,
				DailyReturn:      calc.DailyReturn(state.DailyPnL, state.StartCapital),
				CumulativeReturn: calc.CumulativeReturn(state.Total(), state.OriginalCapital),
				TradeCount:       sells,
			}

			if err := st.FinalizeDay(cmd.Context(), snap); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(snap)
			}
			output.Success("Finalized %s: end capital %s (%s)",
				date, utils.FormatWon(snap.EndCapital), utils.FormatPercent(snap.DailyReturn))
			return nil
		},
	}
}

func newDayResetCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset <date>",
		Short: "Delete a day's saved state so it can be replayed",
		Long: `Delete a day's saved state so it can be replayed.

Removes the mid-day snapshot and its transactions. The finalized daily
return record, if one exists, is kept; re-run "day finalize" after
replaying to overwrite it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			date := args[0]

			st, err := app.OpenStore()
			if err != nil {
				return err
			}

			state, txs, err := st.LoadDayState(cmd.Context(), date)
			if err != nil {
				return err
			}
			if state == nil {
				return errs.Wrapf(errs.ErrDataNotFound, "no state for %s", date)
			}

			if !yes {
				return errs.NewValidationError("yes", false,
					fmt.Sprintf("refusing to delete %s (%d transactions); pass --yes to confirm", date, len(txs)))
			}

			if err := st.DeleteDayState(cmd.Context(), date); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"date":    date,
					"deleted": len(txs),
				})
			}
			output.Success("Deleted state for %s (%d transactions)", date, len(txs))
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation check")

	return cmd
}

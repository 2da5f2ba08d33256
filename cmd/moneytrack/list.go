package main

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"moneytrack/internal/core"
	"moneytrack/internal/services"
)

func newListCmd(a *app) *cobra.Command {
	var page, limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one page of transactions",
		Example: `  # First page
  moneytrack list

  # Third page of 10
  moneytrack list --page 3 --limit 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := a.backend.Store.Load(cmd.Context(), page, limit)
			if err != nil {
				return fmt.Errorf("%s: %w", services.MsgLoadFailed, err)
			}
			pterm.DefaultSection.Printf("Transactions (page %d, limit %d)", page, limit)
			if len(items) == 0 {
				pterm.Warning.Println("No transactions found")
				return nil
			}
			renderTransactions(items)
			pterm.Info.Printf("Total: %d transactions\n", len(items))
			return nil
		},
	}

	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number, starting at 1")
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "maximum number of transactions per page")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <transaction-id>",
		Short: "Delete a transaction locally and on the remote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := core.ParseID(args[0])
			if err != nil {
				return fmt.Errorf("invalid transaction ID: %s", args[0])
			}
			a.backend.Refresh(cmd.Context())
			if err := a.backend.Store.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("%s: %w", services.MsgDeleteFailed, err)
			}
			pterm.Success.Printf("Transaction #%s deleted\n", id)
			return nil
		},
	}
}

func renderTransactions(items []core.Transaction) {
	tableData := pterm.TableData{
		{"ID", "Date", "Title", "Amount", "Receipt", "Location", "Synced"},
	}
	for _, tx := range items {
		date := tx.Date
		if ts := tx.Time(); !ts.IsZero() {
			date = ts.Local().Format("2006-01-02 15:04")
		}
		receipt := "-"
		if tx.HasReceipt() {
			receipt = "yes"
		}
		location := "-"
		if tx.Location != nil {
			location = fmt.Sprintf("%.4f, %.4f", tx.Location.Latitude, tx.Location.Longitude)
		}
		synced := pterm.Yellow("no")
		if tx.IsSynced {
			synced = pterm.Green("yes")
		}
		tableData = append(tableData, []string{
			tx.ID.String(),
			date,
			tx.Title,
			pterm.Red(core.FormatAmount(tx.Amount)),
			receipt,
			location,
			synced,
		})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
}

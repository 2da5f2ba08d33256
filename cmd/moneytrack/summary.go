package main

import (
	"fmt"
	"math"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"moneytrack/internal/core"
	"moneytrack/internal/services"
)

func newSummaryCmd(a *app) *cobra.Command {
	var page, limit int

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show spending per title as a bar chart",
		Long: `Load one page of transactions and show the total spent per title.

Totals are summed as exact decimals; the chart rounds to whole units.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.backend.Store.Load(cmd.Context(), page, limit); err != nil {
				return fmt.Errorf("%s: %w", services.MsgLoadFailed, err)
			}
			totals := a.backend.Store.Totals()
			if len(totals) == 0 {
				pterm.Warning.Println("No transactions to summarise")
				return nil
			}
			renderSummary(totals)
			return nil
		},
	}

	cmd.Flags().IntVarP(&page, "page", "p", 1, "page to summarise")
	cmd.Flags().IntVarP(&limit, "limit", "l", 100, "page size")
	return cmd
}

func renderSummary(totals []core.CategoryTotal) {
	chart := core.NewChartData(totals)

	tableData := pterm.TableData{{"Title", "Amount"}}
	bars := make(pterm.Bars, 0, len(chart.Labels))
	for i, label := range chart.Labels {
		tableData = append(tableData, []string{label, totals[i].Amount.StringFixed(2)})
		bars = append(bars, pterm.Bar{
			Label: label,
			Value: int(math.Round(chart.Datasets[0].Data[i])),
		})
	}

	pterm.DefaultSection.Println("Spending by title")
	_ = pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
	_ = pterm.DefaultBarChart.WithBars(bars).WithHorizontal().WithShowValue().Render()
	pterm.Info.Printf("Total: %s\n", core.GrandTotal(totals).StringFixed(2))
}

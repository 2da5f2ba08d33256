package core

import "github.com/shopspring/decimal"

// CategoryTotal is the amount spent under one title.
type CategoryTotal struct {
	Title  string
	Amount decimal.Decimal
}

// ChartData is the labels/datasets shape consumed by bar chart renderers.
type ChartData struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

type Dataset struct {
	Data []float64 `json:"data"`
}

// CategoryTotals sums amounts by title, keeping titles in first-seen order.
// Sums are exact decimals so 0.1 + 0.2 renders as 0.3.
func CategoryTotals(txs []Transaction) []CategoryTotal {
	index := map[string]int{}
	out := make([]CategoryTotal, 0)
	for _, tx := range txs {
		amt := decimal.NewFromFloat(tx.Amount)
		if i, ok := index[tx.Title]; ok {
			out[i].Amount = out[i].Amount.Add(amt)
			continue
		}
		index[tx.Title] = len(out)
		out = append(out, CategoryTotal{Title: tx.Title, Amount: amt})
	}
	return out
}

// TotalsByTitle is CategoryTotals as a map.
func TotalsByTitle(txs []Transaction) map[string]float64 {
	m := map[string]float64{}
	for _, ct := range CategoryTotals(txs) {
		m[ct.Title] = ct.Amount.InexactFloat64()
	}
	return m
}

// GrandTotal sums all category totals.
func GrandTotal(totals []CategoryTotal) decimal.Decimal {
	sum := decimal.Zero
	for _, ct := range totals {
		sum = sum.Add(ct.Amount)
	}
	return sum
}

func NewChartData(totals []CategoryTotal) ChartData {
	cd := ChartData{
		Labels:   make([]string, len(totals)),
		Datasets: []Dataset{{Data: make([]float64, len(totals))}},
	}
	for i, ct := range totals {
		cd.Labels[i] = ct.Title
		cd.Datasets[0].Data[i] = ct.Amount.InexactFloat64()
	}
	return cd
}

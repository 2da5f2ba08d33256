package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"moneytrack/internal/core"
)

type errorResponse struct {
	Error string `json:"error"`
}

// summaryResponse is the chart data plus the grand total.
type summaryResponse struct {
	core.ChartData
	Total float64 `json:"total"`
}

func newSummaryResponse(totals []core.CategoryTotal) summaryResponse {
	return summaryResponse{
		ChartData: core.NewChartData(totals),
		Total:     core.GrandTotal(totals).InexactFloat64(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err, "status_code", status)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"signal-trade-bot-go/internal/database"
	"signal-trade-bot-go/internal/models"
	"signal-trade-bot-go/internal/risk"

	"go.uber.org/zap"
)

const defaultTradeLimit = 100

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log  *zap.Logger
	repo *database.Repository
	now  func() time.Time
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, repo *database.Repository) *APIHandler {
	return &APIHandler{log: log, repo: repo, now: time.Now}
}

// Routes registers the dashboard endpoints.
func (h *APIHandler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/trades", h.TradesHandler)
	mux.HandleFunc("/api/statistics", h.StatisticsHandler)
	mux.HandleFunc("/api/snapshots", h.SnapshotsHandler)
	mux.HandleFunc("/api/signals/latest", h.LatestSignalHandler)
	return mux
}

// TradesHandler returns trades, most recent first. Accepts ?since=<timestamp>
// and ?limit=<n>.
func (h *APIHandler) TradesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var since time.Time
	if s := q.Get("since"); s != "" {
		since = risk.ParseTimestamp(s)
		if since.IsZero() {
			http.Error(w, "invalid since timestamp", http.StatusBadRequest)
			return
		}
	}
	limit, ok := parseLimit(q.Get("limit"))
	if !ok {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return
	}

	trades, err := h.repo.ListTrades(r.Context(), since, limit)
	if err != nil {
		h.log.Error("Failed to get trades from database", zap.Error(err))
		http.Error(w, "Failed to get trades", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.log, trades)
}

// StatsDetail holds calculated statistics for a given period.
type StatsDetail struct {
	TotalTrades      int64   `json:"total_trades"`
	ProfitableTrades int64   `json:"profitable_trades"`
	WinRate          float64 `json:"win_rate"`
	TotalProfit      float64 `json:"total_profit"`
}

func (s *StatsDetail) add(pnl float64) {
	s.TotalTrades++
	if pnl > 0 {
		s.ProfitableTrades++
	}
	s.TotalProfit += pnl
}

func (s *StatsDetail) finish() {
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.ProfitableTrades) / float64(s.TotalTrades)
	}
}

// StatisticsResponse is the structure for the /api/statistics endpoint.
type StatisticsResponse struct {
	Since24h StatsDetail `json:"since_24h"`
	AllTime  StatsDetail `json:"all_time"`
}

// StatisticsHandler calculates realized statistics over closed trades.
func (h *APIHandler) StatisticsHandler(w http.ResponseWriter, r *http.Request) {
	closed, err := h.repo.ListClosedTrades(r.Context())
	if err != nil {
		h.log.Error("Failed to get trades for statistics", zap.Error(err))
		http.Error(w, "Failed to calculate statistics", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.log, buildStatistics(closed, h.now()))
}

func buildStatistics(closed []models.Trade, now time.Time) StatisticsResponse {
	since24h := now.Add(-24 * time.Hour)
	var resp StatisticsResponse
	for _, trade := range closed {
		pnl := trade.RealizedPnL()
		resp.AllTime.add(pnl)
		if trade.ClosedAt != nil && trade.ClosedAt.After(since24h) {
			resp.Since24h.add(pnl)
		}
	}
	resp.AllTime.finish()
	resp.Since24h.finish()
	return resp
}

// SnapshotsHandler returns the most recent portfolio snapshots.
func (h *APIHandler) SnapshotsHandler(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r.URL.Query().Get("limit"))
	if !ok {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return
	}
	snaps, err := h.repo.ListSnapshots(r.Context(), limit)
	if err != nil {
		h.log.Error("Failed to get snapshots", zap.Error(err))
		http.Error(w, "Failed to get snapshots", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.log, snaps)
}

// LatestSignalHandler returns the newest signal recorded for ?symbol=.
func (h *APIHandler) LatestSignalHandler(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}
	sig, err := h.repo.GetLatestSignal(r.Context(), symbol)
	if err != nil {
		h.log.Error("Failed to get latest signal", zap.String("symbol", symbol), zap.Error(err))
		http.Error(w, "Failed to get signal", http.StatusInternalServerError)
		return
	}
	if sig == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, h.log, sig)
}

func parseLimit(s string) (int, bool) {
	if s == "" {
		return defaultTradeLimit, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, log *zap.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to write response", zap.Error(err))
	}
}

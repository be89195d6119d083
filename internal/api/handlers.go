package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/BTreeMap/OrderPipe/internal/models"
)

// HealthStatus is the result payload of GET /health.
type HealthStatus struct {
	ActiveSessions int                  `json:"active_sessions"`
	ByStage        map[models.Stage]int `json:"by_stage"`
	Uptime         string               `json:"uptime"`
}

// OrderRow is one order in the GET /orders payload.
type OrderRow struct {
	ID        string `json:"id"`
	Requester string `json:"requester"`
	Phone     string `json:"phone"`
	Timestamp string `json:"timestamp"`
	Name      string `json:"name"`
	Model     string `json:"model"`
	Memory    string `json:"memory"`
	Colors    string `json:"colors"`
}

func allowGet(w http.ResponseWriter, r *http.Request, handler string) bool {
	if r.Method == http.MethodGet {
		return true
	}
	w.Header().Set("Allow", http.MethodGet)
	slog.Warn("Server."+handler+": method not allowed", "method", r.Method)
	writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
	return false
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r, "healthHandler") {
		return
	}
	status := HealthStatus{
		ActiveSessions: s.sessions.ActiveCount(),
		ByStage:        s.sessions.CountByStage(),
		Uptime:         time.Since(s.started).Round(time.Second).String(),
	}
	writeJSONResponse(w, http.StatusOK, models.Success(status))
}

func (s *Server) ordersHandler(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r, "ordersHandler") {
		return
	}
	if s.orders == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Order log not configured"))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			slog.Warn("Server.ordersHandler: invalid limit", "limit", raw)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("limit must be a positive integer"))
			return
		}
		limit = n
	}

	records, err := s.orders.ListOrders(r.Context(), limit)
	if err != nil {
		slog.Error("Server.ordersHandler: listing orders failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list orders"))
		return
	}
	rows := make([]OrderRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, OrderRow{
			ID:        rec.ID,
			Requester: rec.Requester,
			Phone:     rec.Phone,
			Timestamp: rec.Timestamp(),
			Name:      rec.Name,
			Model:     rec.Model,
			Memory:    rec.Memory,
			Colors:    rec.Colors,
		})
	}
	slog.Debug("Server.ordersHandler: orders listed", "count", len(rows), "limit", limit)
	writeJSONResponse(w, http.StatusOK, models.Success(rows))
}

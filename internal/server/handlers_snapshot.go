package server

import (
	"fmt"
	"net/http"

	"github.com/mstolarski/folio/internal/common"
	"github.com/mstolarski/folio/internal/models"
)

// handleSnapshots handles GET /api/snapshots: ordered snapshot rows.
func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	scope, portfolioID, ok := queryScope(w, r)
	if !ok {
		return
	}
	days, ok := queryDays(w, r)
	if !ok {
		return
	}

	userID := common.ResolveUserID(r.Context())
	rows, err := s.app.SnapshotService.GetSeries(r.Context(), userID, scope, portfolioID, days)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Error reading snapshots: %v", err))
		return
	}
	if rows == nil {
		rows = []models.SnapshotRow{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"snapshots": rows,
	})
}

// handleSnapshotChart handles GET /api/snapshots/chart: the value series
// rendered as a PNG line chart.
func (s *Server) handleSnapshotChart(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	scope, portfolioID, ok := queryScope(w, r)
	if !ok {
		return
	}
	days, ok := queryDays(w, r)
	if !ok {
		return
	}
	currency, ok := queryCurrency(w, r)
	if !ok {
		return
	}

	userID := common.ResolveUserID(r.Context())
	png, err := s.app.SnapshotService.RenderValueChart(r.Context(), userID, scope, portfolioID, currency, days)
	if err != nil {
		WriteError(w, http.StatusUnprocessableEntity, fmt.Sprintf("Error rendering chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// handleReturns handles GET /api/returns: the daily and cumulative
// time-weighted return series.
func (s *Server) handleReturns(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	scope, portfolioID, ok := queryScope(w, r)
	if !ok {
		return
	}
	days, ok := queryDays(w, r)
	if !ok {
		return
	}
	currency, ok := queryCurrency(w, r)
	if !ok {
		return
	}

	userID := common.ResolveUserID(r.Context())
	returns, err := s.app.SnapshotService.GetReturns(r.Context(), userID, scope, portfolioID, currency, days)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Error computing returns: %v", err))
		return
	}
	if returns == nil {
		returns = []models.DailyReturn{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"currency": currency,
		"returns":  returns,
	})
}

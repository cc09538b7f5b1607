package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mstolarski/folio/internal/common"
	"github.com/mstolarski/folio/internal/interfaces"
	"github.com/mstolarski/folio/internal/models"
	"github.com/mstolarski/folio/internal/services/rebuild"
)

// rebuildResponse is the trigger/status payload: the state snapshot plus a
// suggested next-poll delay.
type rebuildResponse struct {
	State       *models.RebuildState `json:"state"`
	PollDelayMS int64                `json:"poll_delay_ms"`
}

func writeRebuildState(w http.ResponseWriter, state *models.RebuildState) {
	WriteJSON(w, http.StatusOK, rebuildResponse{
		State:       state,
		PollDelayMS: rebuild.SuggestPollDelay(state, time.Now()).Milliseconds(),
	})
}

// handleRebuildRun handles POST /api/rebuild: run one bounded rebuild step.
func (s *Server) handleRebuildRun(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Scope         string `json:"scope"`
		PortfolioID   string `json:"portfolio_id"`
		MaxDaysPerRun int    `json:"max_days_per_run"`
		TimeBudgetMS  int64  `json:"time_budget_ms"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	scope := models.Scope(req.Scope)
	if scope == "" {
		scope = models.ScopeAll
	}

	userID := common.ResolveUserID(r.Context())
	opts := interfaces.RunOptions{
		MaxDaysPerRun: req.MaxDaysPerRun,
		TimeBudget:    time.Duration(req.TimeBudgetMS) * time.Millisecond,
	}
	state, err := s.app.RebuildService.RunStep(r.Context(), userID, scope, req.PortfolioID, opts)
	if err != nil && state != nil && state.Status == models.RebuildFailed && s.claimFailureRetry(state) {
		s.logger.Warn().Str("series", state.Key()).Str("error", state.Message).
			Msg("Retrying failed rebuild once")
		state, err = s.app.RebuildService.RunStep(r.Context(), userID, scope, req.PortfolioID, opts)
	}
	if err != nil {
		if state != nil {
			// The step failed but left a state snapshot; surface both.
			writeRebuildState(w, state)
			return
		}
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Error running rebuild: %v", err))
		return
	}

	writeRebuildState(w, state)
}

// claimFailureRetry reports whether this failure may be retried, recording it
// so the same failed stamp is only retried once.
func (s *Server) claimFailureRetry(state *models.RebuildState) bool {
	s.retryMu.Lock()
	defer s.retryMu.Unlock()
	if stamp, ok := s.retried[state.Key()]; ok && stamp.Equal(state.UpdatedAt) {
		return false
	}
	s.retried[state.Key()] = state.UpdatedAt
	return true
}

// handleRebuildStatus handles GET /api/rebuild/status.
func (s *Server) handleRebuildStatus(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	scope, portfolioID, ok := queryScope(w, r)
	if !ok {
		return
	}

	userID := common.ResolveUserID(r.Context())
	state, err := s.app.RebuildService.Status(r.Context(), userID, scope, portfolioID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Error reading rebuild state: %v", err))
		return
	}

	writeRebuildState(w, state)
}

package server

import (
	"fmt"
	"net/http"

	"github.com/mstolarski/folio/internal/common"
)

// handlePortfolioSummary handles GET /api/portfolio/summary: live valuation
// of today's holdings in the requested base currency.
func (s *Server) handlePortfolioSummary(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	scope, portfolioID, ok := queryScope(w, r)
	if !ok {
		return
	}
	base, ok := queryCurrency(w, r)
	if !ok {
		return
	}

	userID := common.ResolveUserID(r.Context())
	summary, err := s.app.ValuationService.Summary(r.Context(), userID, scope, portfolioID, base)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Error computing summary: %v", err))
		return
	}

	WriteJSON(w, http.StatusOK, summary)
}

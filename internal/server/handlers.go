package server

import (
	"net/http"
	"strconv"

	"github.com/mstolarski/folio/internal/common"
	"github.com/mstolarski/folio/internal/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, common.GetBuildInfo())
}

// queryScope reads the scope and portfolio query parameters. Scope defaults
// to "all"; a bad combination writes a 400 and returns ok=false.
func queryScope(w http.ResponseWriter, r *http.Request) (models.Scope, string, bool) {
	scope := models.Scope(r.URL.Query().Get("scope"))
	if scope == "" {
		scope = models.ScopeAll
	}
	portfolioID := r.URL.Query().Get("portfolio")

	switch scope {
	case models.ScopeAll:
		if portfolioID != "" {
			WriteError(w, http.StatusBadRequest, "portfolio is only valid with scope=portfolio")
			return "", "", false
		}
	case models.ScopePortfolio:
		if portfolioID == "" {
			WriteError(w, http.StatusBadRequest, "scope=portfolio requires a portfolio")
			return "", "", false
		}
	default:
		WriteError(w, http.StatusBadRequest, "scope must be all or portfolio")
		return "", "", false
	}

	return scope, portfolioID, true
}

// queryDays reads the optional days bound; zero means unbounded.
func queryDays(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return 0, true
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 0 {
		WriteError(w, http.StatusBadRequest, "days must be a non-negative integer")
		return 0, false
	}
	return days, true
}

// queryCurrency reads the currency parameter, defaulting to the base
// reporting currency.
func queryCurrency(w http.ResponseWriter, r *http.Request) (models.Currency, bool) {
	raw := r.URL.Query().Get("currency")
	if raw == "" {
		return models.DefaultCurrency, true
	}
	currency, ok := models.ParseCurrency(raw)
	if !ok {
		WriteError(w, http.StatusBadRequest, "unsupported currency")
		return "", false
	}
	return currency, true
}

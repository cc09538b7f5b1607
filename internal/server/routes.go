package server

import (
	"net/http"
	"time"
)

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down gracefully...\n"))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	// Auth
	mux.HandleFunc("/api/auth/login", s.handleAuthLogin)

	// Ledger
	mux.HandleFunc("/api/transactions", s.routeTransactions)
	mux.HandleFunc("/api/transactions/", s.handleTransactionDelete)

	// Valuation
	mux.HandleFunc("/api/portfolio/summary", s.handlePortfolioSummary)

	// Snapshots and returns
	mux.HandleFunc("/api/snapshots", s.handleSnapshots)
	mux.HandleFunc("/api/snapshots/chart", s.handleSnapshotChart)
	mux.HandleFunc("/api/returns", s.handleReturns)

	// Rebuild
	mux.HandleFunc("/api/rebuild", s.handleRebuildRun)
	mux.HandleFunc("/api/rebuild/status", s.handleRebuildStatus)
}

package server

import (
	"fmt"
	"net/http"

	"github.com/mstolarski/folio/internal/common"
	"github.com/mstolarski/folio/internal/models"
)

// routeTransactions dispatches /api/transactions.
func (s *Server) routeTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleTransactionList(w, r)
	case http.MethodPost:
		s.handleTransactionCreate(w, r)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleTransactionList(w http.ResponseWriter, r *http.Request) {
	scope, portfolioID, ok := queryScope(w, r)
	if !ok {
		return
	}

	userID := common.ResolveUserID(r.Context())
	txs, err := s.app.LedgerService.ListTransactions(r.Context(), userID, scope, portfolioID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Error listing transactions: %v", err))
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
	})
}

func (s *Server) handleTransactionCreate(w http.ResponseWriter, r *http.Request) {
	var tx models.Transaction
	if !DecodeJSON(w, r, &tx) {
		return
	}

	// Identity comes from the token, never the body.
	tx.UserID = common.ResolveUserID(r.Context())
	tx.ID = ""
	tx.Seq = 0

	saved, err := s.app.LedgerService.AddTransaction(r.Context(), &tx)
	if err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Error adding transaction: %v", err))
		return
	}

	WriteJSON(w, http.StatusCreated, saved)
}

// handleTransactionDelete handles DELETE /api/transactions/{id}.
func (s *Server) handleTransactionDelete(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	id := PathParam(r, "/api/transactions/", "")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "transaction id is required")
		return
	}

	userID := common.ResolveUserID(r.Context())
	if err := s.app.LedgerService.DeleteTransaction(r.Context(), userID, id); err != nil {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("Error deleting transaction: %v", err))
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted", "transaction_id": id})
}

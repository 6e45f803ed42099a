// backend/src/handlers/reconciliation_handler.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/username/contaflow/src/logger"
	"github.com/username/contaflow/src/model"
	"github.com/username/contaflow/src/services"
	"github.com/username/contaflow/src/utils"
)

type ReconciliationHandler struct {
	reconService services.ReconciliationService
}

func NewReconciliationHandler(service services.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{reconService: service}
}

// HandleListUnmatched lists transactions with no active match, date ascending.
// Query params: from/to (YYYY-MM-DD), include_ignored, limit, offset.
func (h *ReconciliationHandler) HandleListUnmatched(w http.ResponseWriter, r *http.Request) {
	businessID, err := businessIDFromRequest(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	filter := model.TransactionFilter{
		IncludeIgnored: r.URL.Query().Get("include_ignored") == "true",
	}
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			utils.SendJSONError(w, "invalid 'from' date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		filter.From = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			utils.SendJSONError(w, "invalid 'to' date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		filter.To = t
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	transactions, err := h.reconService.ListUnmatched(r.Context(), businessID, filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, transactions, http.StatusOK)
}

// HandleSuggest computes ranked match candidates for one transaction and
// returns them in confirmation-ready order.
func (h *ReconciliationHandler) HandleSuggest(w http.ResponseWriter, r *http.Request) {
	businessID, err := businessIDFromRequest(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	transactionID, err := transactionIDParam(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	matches, err := h.reconService.Suggest(r.Context(), businessID, transactionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, matches, http.StatusOK)
}

// HandleConfirm promotes one suggested candidate to a confirmed match.
func (h *ReconciliationHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	businessID, err := businessIDFromRequest(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	transactionID, err := transactionIDParam(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	matchID, err := strconv.ParseInt(chi.URLParam(r, "matchID"), 10, 64)
	if err != nil || matchID <= 0 {
		utils.SendJSONError(w, "invalid match ID", http.StatusBadRequest)
		return
	}

	match, err := h.reconService.Confirm(r.Context(), businessID, transactionID, matchID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	ctxLogger.Info("Match confirmed", "businessID", businessID, "transactionID", transactionID, "matchID", matchID)
	utils.SendJSON(w, match, http.StatusOK)
}

// HandleUnmatch reverts a confirmed match, returning the transaction to the
// unmatched pool.
func (h *ReconciliationHandler) HandleUnmatch(w http.ResponseWriter, r *http.Request) {
	businessID, err := businessIDFromRequest(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	transactionID, err := transactionIDParam(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.reconService.Unmatch(r.Context(), businessID, transactionID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, map[string]string{"message": "Match reverted successfully"}, http.StatusOK)
}

// HandleIgnore marks the transaction's current suggestions as ignored.
func (h *ReconciliationHandler) HandleIgnore(w http.ResponseWriter, r *http.Request) {
	businessID, err := businessIDFromRequest(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	transactionID, err := transactionIDParam(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.reconService.Ignore(r.Context(), businessID, transactionID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, map[string]string{"message": "Suggestions ignored"}, http.StatusOK)
}

var errInvalidTransactionID = errors.New("invalid transaction ID")

func transactionIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "transactionID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidTransactionID
	}
	return id, nil
}

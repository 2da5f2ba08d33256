package http

import (
	"errors"
	"net/http"

	"moneytrack/internal/core"
	applog "moneytrack/internal/log"
	"moneytrack/internal/services"
)

// handleListTransactions loads one page into the store and returns it.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	page, limit, err := parsePagination(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := s.store.Load(r.Context(), page, limit)
	if err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Load transactions failed",
			applog.FieldPage, page, applog.FieldLimit, limit, applog.FieldError, err)
		writeError(w, http.StatusServiceUnavailable, services.MsgLoadFailed)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// handleCurrentTransactions returns the in-memory list without any I/O.
func (s *Server) handleCurrentTransactions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Transactions())
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	draft, err := decodeDraft(w, r)
	switch {
	case errors.Is(err, errBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	tx, err := s.store.Create(r.Context(), draft)
	if err != nil {
		if cause := validationCause(err); cause != nil {
			writeError(w, http.StatusUnprocessableEntity, cause.Error())
			return
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Create transaction failed",
			applog.FieldOperation, applog.OpAdd, applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, services.MsgAddFailed)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	if err := s.store.Delete(r.Context(), id); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Delete transaction failed",
			applog.FieldOperation, applog.OpDelete, applog.FieldID, id, applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, services.MsgDeleteFailed)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newSummaryResponse(s.store.Totals()))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Status())
}

// handleClearError dismisses the user-visible error message.
func (s *Server) handleClearError(w http.ResponseWriter, r *http.Request) {
	s.store.ClearError()
	w.WriteHeader(http.StatusNoContent)
}

// Package server exposes the engine over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/haifischbank/backoffice/internal/accounts"
	"github.com/haifischbank/backoffice/internal/credit"
	"github.com/haifischbank/backoffice/internal/interfaces"
	"github.com/haifischbank/backoffice/internal/ledger"
	"github.com/haifischbank/backoffice/internal/models"
	"github.com/haifischbank/backoffice/internal/processing"
)

type Server struct {
	processor *processing.Processor
	accounts  *accounts.Service
	credits   *credit.Engine
	books     *ledger.Ledger
	directory interfaces.CustomerDirectory
	log       *zap.Logger
}

func New(processor *processing.Processor, accountsSvc *accounts.Service, credits *credit.Engine,
	books *ledger.Ledger, directory interfaces.CustomerDirectory, log *zap.Logger) *Server {
	return &Server{
		processor: processor,
		accounts:  accountsSvc,
		credits:   credits,
		books:     books,
		directory: directory,
		log:       log,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string `json:"name"`
		Address   string `json:"address"`
		BirthDate string `json:"birth_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	out := s.processor.Process(r.Context(), processing.Request{
		Type:      processing.ReqCreateCustomer,
		Name:      req.Name,
		Address:   req.Address,
		BirthDate: req.BirthDate,
	})
	s.respondOutcome(w, out, http.StatusCreated)
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := s.directory.GetCustomer(r.Context(), chi.URLParam(r, "customerID"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var updates map[string]string
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	out := s.processor.Process(r.Context(), processing.Request{
		Type:       processing.ReqUpdateCustomer,
		CustomerID: chi.URLParam(r, "customerID"),
		Updates:    updates,
	})
	s.respondOutcome(w, out, http.StatusOK)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID string `json:"customer_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	out := s.processor.Process(r.Context(), processing.Request{
		Type:       processing.ReqCreateAccount,
		CustomerID: req.CustomerID,
	})
	s.respondOutcome(w, out, http.StatusCreated)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.accounts.Get(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (s *Server) handleGetTransactions(w http.ResponseWriter, r *http.Request) {
	account, err := s.accounts.Get(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	txs := account.Transactions
	if txs == nil {
		txs = []models.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleGetCredit(w http.ResponseWriter, r *http.Request) {
	cr, err := s.credits.Get(r.Context(), "CR"+chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, cr)
}

// handleTransaction accepts any single operational request; the type
// field selects the operation.
func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	var req processing.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	out := s.processor.Process(r.Context(), req)
	s.respondOutcome(w, out, http.StatusCreated)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var reqs []processing.Request
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res := s.processor.ProcessBatch(r.Context(), reqs)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTimeEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	out := s.processor.Process(r.Context(), processing.Request{
		Type: processing.ReqTimeEvent,
		Date: req.Date,
	})
	s.respondOutcome(w, out, http.StatusOK)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.books.Snapshot())
}

func (s *Server) handleValidation(w http.ResponseWriter, r *http.Request) {
	report, err := s.books.Validate(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// respondOutcome maps a processing outcome onto an HTTP status. Rejected
// operations are recorded state, not client errors, so they return 200
// with the rejected record.
func (s *Server) respondOutcome(w http.ResponseWriter, out processing.Outcome, okStatus int) {
	switch out.Status {
	case processing.OutcomeCompleted:
		writeJSON(w, okStatus, out)
	case processing.OutcomeRejected:
		writeJSON(w, http.StatusOK, out)
	default:
		writeError(w, http.StatusUnprocessableEntity, errors.New(out.Error))
	}
}

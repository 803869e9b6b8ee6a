package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router wires the HTTP surface. All mutations go through the processor,
// which serializes them; reads go straight to the services.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Post("/customers", s.handleCreateCustomer)
	r.Get("/customers/{customerID}", s.handleGetCustomer)
	r.Patch("/customers/{customerID}", s.handleUpdateCustomer)

	r.Post("/accounts", s.handleCreateAccount)
	r.Get("/accounts/{accountID}", s.handleGetAccount)
	r.Get("/accounts/{accountID}/transactions", s.handleGetTransactions)
	r.Get("/accounts/{accountID}/credit", s.handleGetCredit)

	r.Post("/transactions", s.handleTransaction)
	r.Post("/transactions/batch", s.handleBatch)
	r.Post("/time-events", s.handleTimeEvent)

	r.Get("/ledger", s.handleLedger)
	r.Get("/ledger/validation", s.handleValidation)

	return r
}

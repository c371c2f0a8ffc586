// Package v1 wires the HTTP surface of the finance service.
// It keeps handlers thin, delegating business rules to the service layer.
package v1

import (
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/folahanmi/orgledger/internal/service/balance"
	"github.com/folahanmi/orgledger/internal/service/category"
	"github.com/folahanmi/orgledger/internal/service/liability"
	"github.com/folahanmi/orgledger/internal/service/orchestrator"
	"github.com/folahanmi/orgledger/internal/service/reconcile"
)

// Server wires handlers and middleware using Chi.
type Server struct {
	store    Store
	idem     orchestrator.IdemStore
	ledger   balance.Service
	liab     liability.Service
	recon    reconcile.Service
	cats     category.Service
	orch     *orchestrator.Service
	validate *validator.Validate
	log      *slog.Logger
	rt       *chi.Mux
}

// Options tune optional server behavior.
type Options struct {
	// CORSOrigins lists allowed origins; empty disables CORS handling.
	CORSOrigins []string
}

// New constructs the HTTP server with routes and middleware. idem may be nil,
// in which case the entity store's own idempotency table is used.
func New(store Store, idem orchestrator.IdemStore, logger *slog.Logger, opts Options) *Server {
	if idem == nil {
		idem = store
	}
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key"},
			MaxAge:         300,
		}))
	}

	ledger := balance.New(store, store, logger)
	liab := liability.New(store, store)
	s := &Server{
		store:    store,
		idem:     idem,
		ledger:   ledger,
		liab:     liab,
		recon:    reconcile.New(store, store, ledger),
		cats:     category.New(store, store),
		orch:     orchestrator.New(store, idem, ledger, liab, logger),
		validate: validator.New(),
		log:      logger,
		rt:       r,
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints and attaches per-route middleware.
func (s *Server) routes() {
	v := s.validate
	// Accounts (v1)
	s.rt.With(validateBody[postAccountRequest](v, ctxKeyPostAccount)).Post("/v1/accounts", s.postAccount)
	s.rt.With(requireOrgID).Get("/v1/accounts", s.listAccounts)
	s.rt.With(requireOrgID).Get("/v1/accounts/{id}", s.getAccount)
	s.rt.With(requireOrgID).Patch("/v1/accounts/{id}", s.updateAccount)
	s.rt.With(requireOrgID).Delete("/v1/accounts/{id}", s.deactivateAccount)
	s.rt.With(requireOrgID).Get("/v1/accounts/{id}/ledger", s.getAccountLedger)
	s.rt.With(requireOrgID).Post("/v1/accounts/{id}/recalculate", s.recalculateAccount)
	// Postings (v1)
	s.rt.With(validateBody[postPostingRequest](v, ctxKeyPostPosting)).Post("/v1/postings", s.postPosting)
	s.rt.With(requireOrgID).Get("/v1/postings", s.listPostings)
	s.rt.With(requireOrgID).Get("/v1/postings/{id}", s.getPosting)
	s.rt.With(requireOrgID).Delete("/v1/postings/{id}", s.deletePosting)
	// Liabilities (v1)
	s.rt.With(validateBody[postLiabilityRequest](v, ctxKeyPostLiability)).Post("/v1/liabilities", s.postLiability)
	s.rt.With(requireOrgID).Get("/v1/liabilities", s.listLiabilities)
	s.rt.With(requireOrgID).Get("/v1/liabilities/{id}", s.getLiability)
	s.rt.With(requireOrgID).Patch("/v1/liabilities/{id}", s.updateLiability)
	s.rt.With(validateBody[paymentRequest](v, ctxKeyPayment)).With(requireOrgID).Post("/v1/liabilities/{id}/payments", s.payLiability)
	// Transfers (v1)
	s.rt.With(validateBody[postTransferRequest](v, ctxKeyPostTransfer)).Post("/v1/transfers", s.postTransfer)
	s.rt.With(requireOrgID).Get("/v1/transfers", s.listTransfers)
	s.rt.With(requireOrgID).Get("/v1/transfers/{id}", s.getTransfer)
	// Reconciliations (v1)
	s.rt.With(validateBody[postReconciliationRequest](v, ctxKeyPostReconciliation)).Post("/v1/reconciliations", s.postReconciliation)
	s.rt.With(requireOrgID).Get("/v1/reconciliations", s.listReconciliations)
	s.rt.With(requireOrgID).Get("/v1/reconciliations/{id}", s.getReconciliation)
	s.rt.With(requireOrgID).Post("/v1/reconciliations/{id}/postings/{postingID}/toggle", s.toggleReconciliationEntry)
	s.rt.With(requireOrgID).Post("/v1/reconciliations/{id}/select-all", s.selectAllReconciliation)
	s.rt.With(validateBody[addEntryRequest](v, ctxKeyAddEntry)).With(requireOrgID).Post("/v1/reconciliations/{id}/entries", s.addReconciliationEntry)
	s.rt.With(requireOrgID).Post("/v1/reconciliations/{id}/refresh", s.refreshReconciliation)
	s.rt.With(requireOrgID).Delete("/v1/reconciliations/{id}", s.deleteReconciliation)
	// Categories (v1)
	s.rt.With(validateBody[postCategoryRequest](v, ctxKeyPostCategory)).Post("/v1/categories", s.postCategory)
	s.rt.With(requireOrgID).Get("/v1/categories", s.listCategories)
	s.rt.With(requireOrgID).Delete("/v1/categories/{id}", s.deleteCategory)
	s.rt.With(requireOrgID).Post("/v1/categories/defaults", s.ensureDefaultCategories)
	// Health and metrics (unversioned)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Method(http.MethodGet, "/metrics", metricsHandler())
}

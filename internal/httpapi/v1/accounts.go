package v1

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/folahanmi/orgledger/internal/meta"
	"github.com/folahanmi/orgledger/internal/service/orchestrator"
)

// postAccount creates an account, recording any opening balance as an
// opening_balance posting so the ledger carries it from the first row.
func (s *Server) postAccount(w http.ResponseWriter, r *http.Request) {
	req := bodyFrom[postAccountRequest](r, ctxKeyPostAccount)

	in := orchestrator.CreateAccountInput{
		OrgID:               req.OrgID,
		Name:                req.Name,
		Type:                accountTypeFrom(req.Type),
		Currency:            req.Currency,
		OpeningBalanceMinor: req.OpeningBalanceMinor,
		Metadata:            meta.New(req.Metadata),
		IdempotencyKey:      idempotencyKey(r),
	}
	if req.Date != nil {
		in.Date = *req.Date
	}
	if req.OpeningBalanceMinor > 0 {
		cat, err := s.cats.BySlug(r.Context(), req.OrgID, "opening_balance")
		if err == nil {
			in.OpeningCategoryID = cat.ID
		}
	}
	res, err := s.orch.CreateAccountWithOpeningBalance(r.Context(), in)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toAccountResponse(res.Account))
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.store.ListAccounts(r.Context(), orgIDFrom(r))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid account id")
		return
	}
	a, err := s.store.GetAccount(r.Context(), orgIDFrom(r), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toAccountResponse(a))
}

// updateAccount patches name, metadata and the active flag. Balance fields are
// not accepted here; they move only through postings.
func (s *Server) updateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid account id")
		return
	}
	if !requireJSON(w, r) {
		return
	}
	var req patchAccountRequest
	if err := decodeStrict(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeErr(w, http.StatusUnprocessableEntity, err.Error(), "validation_error")
		return
	}
	a, err := s.store.GetAccount(r.Context(), orgIDFrom(r), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if req.Name != nil {
		a.Name = *req.Name
	}
	if req.Metadata != nil {
		a.Metadata = meta.New(req.Metadata)
	}
	if req.Active != nil {
		a.Active = *req.Active
	}
	updated, err := s.store.UpdateAccount(r.Context(), a)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toAccountResponse(updated))
}

// deactivateAccount soft-deletes by clearing the active flag. Postings against
// the account are history and stay untouched.
func (s *Server) deactivateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid account id")
		return
	}
	a, err := s.store.GetAccount(r.Context(), orgIDFrom(r), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	a.Active = false
	updated, err := s.store.UpdateAccount(r.Context(), a)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toAccountResponse(updated))
}

// getAccountLedger lists the account's postings in commit order with a running
// balance column derived from the opening balance.
func (s *Server) getAccountLedger(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid account id")
		return
	}
	orgID := orgIDFrom(r)
	a, err := s.store.GetAccount(r.Context(), orgID, id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	postings, err := s.store.ListPostingsByAccount(r.Context(), orgID, id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	type ledgerRow struct {
		postingResponse
		RunningBalanceMinor int64 `json:"running_balance_minor"`
	}
	rows := make([]ledgerRow, 0, len(postings))
	running := a.OpeningBalanceMinor
	for _, p := range postings {
		running += p.EffectMinor()
		rows = append(rows, ledgerRow{
			postingResponse:     toPostingResponse(p, a.Currency),
			RunningBalanceMinor: running,
		})
	}
	toJSON(w, http.StatusOK, map[string]any{
		"account": toAccountResponse(a),
		"rows":    rows,
	})
}

// recalculateAccount re-derives the balance from the posting set, self-healing
// drift, and reports whether a correction was needed.
func (s *Server) recalculateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid account id")
		return
	}
	a, drifted, err := s.ledger.Recalculate(r.Context(), orgIDFrom(r), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if drifted {
		balanceDriftHealed.Inc()
	}
	toJSON(w, http.StatusOK, recalculateResponse{Account: toAccountResponse(a), Drifted: drifted})
}

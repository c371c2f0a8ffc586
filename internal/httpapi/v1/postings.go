package v1

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/folahanmi/orgledger/internal/finance"
	"github.com/folahanmi/orgledger/internal/service/orchestrator"
)

// postPosting records an income or expenditure. The posting and the balance
// update commit together or not at all.
func (s *Server) postPosting(w http.ResponseWriter, r *http.Request) {
	req := bodyFrom[postPostingRequest](r, ctxKeyPostPosting)

	in := orchestrator.RecordPostingInput{
		OrgID:          req.OrgID,
		AccountID:      req.AccountID,
		Kind:           postingKindFrom(req.Kind),
		Amount:         req.AmountMinor,
		Memo:           req.Memo,
		CategoryID:     req.CategoryID,
		IdempotencyKey: idempotencyKey(r),
	}
	if req.Date != nil {
		in.Date = *req.Date
	}
	res, err := s.orch.RecordPosting(r.Context(), in)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, postingResult{
		Posting: toPostingResponse(res.Posting, res.Account.Currency),
		Account: toAccountResponse(res.Account),
	})
}

// listPostings returns the org's postings in commit order, optionally filtered
// by account, kind, liability, reconciliation or reconciled state.
func (s *Server) listPostings(w http.ResponseWriter, r *http.Request) {
	orgID := orgIDFrom(r)
	q := r.URL.Query()
	var f finance.PostingFilter
	if raw := q.Get("account_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(w, "invalid account_id")
			return
		}
		f.AccountID = &id
	}
	if raw := q.Get("liability_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(w, "invalid liability_id")
			return
		}
		f.LiabilityID = &id
	}
	if raw := q.Get("reconciliation_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(w, "invalid reconciliation_id")
			return
		}
		f.ReconciliationID = &id
	}
	if raw := q.Get("kind"); raw != "" {
		k := postingKindFrom(raw)
		f.Kind = &k
	}
	if raw := q.Get("reconciled"); raw != "" {
		rec := raw == "true" || raw == "1"
		f.Reconciled = &rec
	}
	if raw := q.Get("include_reversed"); raw != "" {
		f.IncludeReversed = raw == "true" || raw == "1"
	}

	postings, err := s.store.ListPostings(r.Context(), orgID, f)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	currencies, err := s.accountCurrencies(r, orgID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]postingResponse, 0, len(postings))
	for _, p := range postings {
		out = append(out, toPostingResponse(p, currencies[p.AccountID]))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) getPosting(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid posting id")
		return
	}
	orgID := orgIDFrom(r)
	p, err := s.store.GetPosting(r.Context(), orgID, id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	currency := ""
	if a, aerr := s.store.GetAccount(r.Context(), orgID, p.AccountID); aerr == nil {
		currency = a.Currency
	}
	toJSON(w, http.StatusOK, toPostingResponse(p, currency))
}

// deletePosting reverses the posting's ledger effect and marks it reversed.
// Reconciled postings and transfer legs are rejected.
func (s *Server) deletePosting(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid posting id")
		return
	}
	res, err := s.orch.DeletePosting(r.Context(), orchestrator.DeletePostingInput{
		OrgID:          orgIDFrom(r),
		PostingID:      id,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := deletePostingResult{
		Posting: toPostingResponse(res.Posting, res.Account.Currency),
		Account: toAccountResponse(res.Account),
	}
	if res.Liability != nil {
		lr := toLiabilityResponse(*res.Liability)
		out.Liability = &lr
	}
	toJSON(w, http.StatusOK, out)
}

// accountCurrencies maps account IDs to their currency for display formatting.
func (s *Server) accountCurrencies(r *http.Request, orgID uuid.UUID) (map[uuid.UUID]string, error) {
	accounts, err := s.store.ListAccounts(r.Context(), orgID)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]string, len(accounts))
	for _, a := range accounts {
		out[a.ID] = a.Currency
	}
	return out, nil
}

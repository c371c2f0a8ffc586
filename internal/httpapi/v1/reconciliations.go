package v1

import (
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/folahanmi/orgledger/internal/service/reconcile"
)

// postReconciliation opens a session snapshotting the account's live balance
// as the book balance.
func (s *Server) postReconciliation(w http.ResponseWriter, r *http.Request) {
	req := bodyFrom[postReconciliationRequest](r, ctxKeyPostReconciliation)

	var date time.Time
	if req.Date != nil {
		date = *req.Date
	}
	rec, err := s.recon.Create(r.Context(), req.OrgID, req.AccountID, req.BankBalanceMinor, date, req.Notes)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toReconciliationResponse(rec))
}

func (s *Server) listReconciliations(w http.ResponseWriter, r *http.Request) {
	recs, err := s.recon.List(r.Context(), orgIDFrom(r))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]reconciliationResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toReconciliationResponse(rec))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) getReconciliation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid reconciliation id")
		return
	}
	rec, err := s.recon.Get(r.Context(), orgIDFrom(r), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toReconciliationResponse(rec))
}

// toggleReconciliationEntry flips a posting's matched membership in the session.
func (s *Server) toggleReconciliationEntry(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid reconciliation id")
		return
	}
	postingID, err := uuid.Parse(chi.URLParam(r, "postingID"))
	if err != nil {
		badRequest(w, "invalid posting id")
		return
	}
	rec, err := s.recon.ToggleEntry(r.Context(), orgIDFrom(r), id, postingID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toReconciliationResponse(rec))
}

func (s *Server) selectAllReconciliation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid reconciliation id")
		return
	}
	if !requireJSON(w, r) {
		return
	}
	var req selectAllRequest
	if err := decodeStrict(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	rec, err := s.recon.SelectAll(r.Context(), orgIDFrom(r), id, req.Reconciled)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toReconciliationResponse(rec))
}

// addReconciliationEntry records a posting discovered mid-session (e.g. a bank
// fee) against the account being reconciled. The ledger effect applies
// immediately; a rejected debit leaves the session untouched.
func (s *Server) addReconciliationEntry(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid reconciliation id")
		return
	}
	req := bodyFrom[addEntryRequest](r, ctxKeyAddEntry)
	in := reconcile.AddEntryInput{
		Side:       sideFrom(req.Side),
		Kind:       postingKindFrom(req.Kind),
		Amount:     req.AmountMinor,
		Memo:       req.Memo,
		CategoryID: req.CategoryID,
	}
	if req.Date != nil {
		in.Date = *req.Date
	}
	orgID := orgIDFrom(r)
	rec, posting, err := s.recon.AddEntry(r.Context(), orgID, id, in)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	currency := ""
	if a, aerr := s.store.GetAccount(r.Context(), orgID, posting.AccountID); aerr == nil {
		currency = a.Currency
	}
	toJSON(w, http.StatusCreated, addEntryResponse{
		Reconciliation: toReconciliationResponse(rec),
		Posting:        toPostingResponse(posting, currency),
	})
}

func (s *Server) refreshReconciliation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid reconciliation id")
		return
	}
	rec, err := s.recon.Refresh(r.Context(), orgIDFrom(r), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toReconciliationResponse(rec))
}

// deleteReconciliation removes the session and unmarks its matched postings.
// Postings added during the session keep their ledger effect.
func (s *Server) deleteReconciliation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid reconciliation id")
		return
	}
	if err := s.recon.Delete(r.Context(), orgIDFrom(r), id); err != nil {
		writeDomainErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

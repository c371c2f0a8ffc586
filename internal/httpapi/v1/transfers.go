package v1

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/folahanmi/orgledger/internal/service/orchestrator"
)

// postTransfer moves money between two accounts: exactly one debit leg on the
// source and one credit leg on the destination, both-or-neither.
func (s *Server) postTransfer(w http.ResponseWriter, r *http.Request) {
	req := bodyFrom[postTransferRequest](r, ctxKeyPostTransfer)

	in := orchestrator.CreateTransferInput{
		OrgID:          req.OrgID,
		FromAccountID:  req.FromAccountID,
		ToAccountID:    req.ToAccountID,
		Amount:         req.AmountMinor,
		Memo:           req.Memo,
		CategoryID:     req.CategoryID,
		IdempotencyKey: idempotencyKey(r),
	}
	if req.Date != nil {
		in.Date = *req.Date
	}
	res, err := s.orch.CreateTransfer(r.Context(), in)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, transferResult{
		Transfer: toTransferResponse(res.Transfer),
		From:     toAccountResponse(res.From),
		To:       toAccountResponse(res.To),
	})
}

func (s *Server) listTransfers(w http.ResponseWriter, r *http.Request) {
	transfers, err := s.store.ListTransfers(r.Context(), orgIDFrom(r))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]transferResponse, 0, len(transfers))
	for _, t := range transfers {
		out = append(out, toTransferResponse(t))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) getTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid transfer id")
		return
	}
	t, err := s.store.GetTransfer(r.Context(), orgIDFrom(r), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toTransferResponse(t))
}

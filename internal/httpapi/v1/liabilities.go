package v1

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/folahanmi/orgledger/internal/finance"
	"github.com/folahanmi/orgledger/internal/service/orchestrator"
)

// postLiability creates a liability, optionally with an initial payment in the
// same sequence so a failed payment rolls the liability back out.
func (s *Server) postLiability(w http.ResponseWriter, r *http.Request) {
	req := bodyFrom[postLiabilityRequest](r, ctxKeyPostLiability)

	in := orchestrator.CreateLiabilityInput{
		OrgID:               req.OrgID,
		Creditor:            req.Creditor,
		Description:         req.Description,
		OriginalAmountMinor: req.OriginalAmountMinor,
		CategoryID:          req.CategoryID,
		IdempotencyKey:      idempotencyKey(r),
	}
	if req.Date != nil {
		in.Date = *req.Date
	}
	if req.InitialPayment != nil {
		pay := orchestrator.PaymentInput{
			AccountID:  req.InitialPayment.AccountID,
			Amount:     req.InitialPayment.AmountMinor,
			Memo:       req.InitialPayment.Memo,
			CategoryID: req.InitialPayment.CategoryID,
		}
		if req.InitialPayment.Date != nil {
			pay.Date = *req.InitialPayment.Date
		}
		in.InitialPayment = &pay
	}
	res, err := s.orch.CreateLiabilityWithInitialPayment(r.Context(), in)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, s.toLiabilityResult(res))
}

func (s *Server) listLiabilities(w http.ResponseWriter, r *http.Request) {
	liabilities, err := s.liab.List(r.Context(), orgIDFrom(r))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]liabilityResponse, 0, len(liabilities))
	for _, l := range liabilities {
		out = append(out, toLiabilityResponse(l))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) getLiability(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid liability id")
		return
	}
	l, err := s.liab.Get(r.Context(), orgIDFrom(r), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toLiabilityResponse(l))
}

// updateLiability patches descriptive fields. amount_paid is derived and
// rejected once payments exist; original_amount freezes at the first payment.
func (s *Server) updateLiability(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid liability id")
		return
	}
	if !requireJSON(w, r) {
		return
	}
	var req patchLiabilityRequest
	if err := decodeStrict(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeErr(w, http.StatusUnprocessableEntity, err.Error(), "validation_error")
		return
	}
	orgID := orgIDFrom(r)
	cur, err := s.liab.Get(r.Context(), orgID, id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	next := finance.Liability{
		ID:                  cur.ID,
		OrgID:               orgID,
		Creditor:            cur.Creditor,
		Description:         cur.Description,
		OriginalAmountMinor: cur.OriginalAmountMinor,
		AmountPaidMinor:     cur.AmountPaidMinor,
		Date:                cur.Date,
		CategoryID:          cur.CategoryID,
	}
	if req.Creditor != nil {
		next.Creditor = *req.Creditor
	}
	if req.Description != nil {
		next.Description = *req.Description
	}
	if req.OriginalAmountMinor != nil {
		next.OriginalAmountMinor = *req.OriginalAmountMinor
	}
	if req.AmountPaidMinor != nil {
		next.AmountPaidMinor = *req.AmountPaidMinor
	}
	if req.Date != nil {
		next.Date = *req.Date
	}
	if req.CategoryID != nil {
		next.CategoryID = *req.CategoryID
	}
	updated, err := s.liab.Update(r.Context(), next)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toLiabilityResponse(updated))
}

// payLiability runs the payment recipe: posting, account debit, link.
func (s *Server) payLiability(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid liability id")
		return
	}
	req := bodyFrom[paymentRequest](r, ctxKeyPayment)
	pay := orchestrator.PaymentInput{
		AccountID:  req.AccountID,
		Amount:     req.AmountMinor,
		Memo:       req.Memo,
		CategoryID: req.CategoryID,
	}
	if req.Date != nil {
		pay.Date = *req.Date
	}
	res, err := s.orch.PayLiability(r.Context(), orchestrator.PayLiabilityInput{
		OrgID:          orgIDFrom(r),
		LiabilityID:    id,
		Payment:        pay,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, s.toLiabilityResult(res))
}

func (s *Server) toLiabilityResult(res orchestrator.LiabilityResult) liabilityResult {
	out := liabilityResult{Liability: toLiabilityResponse(res.Liability)}
	if res.Account != nil {
		ar := toAccountResponse(*res.Account)
		out.Account = &ar
		if res.Payment != nil {
			pr := toPostingResponse(*res.Payment, res.Account.Currency)
			out.Payment = &pr
		}
	} else if res.Payment != nil {
		pr := toPostingResponse(*res.Payment, "")
		out.Payment = &pr
	}
	return out
}

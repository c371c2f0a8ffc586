// Package liability implements the liability tracker. A liability's amountPaid,
// balance and status are a derived view over its linked payment postings:
// once at least one payment exists they are recomputed from the payment set
// and are never directly settable.
package liability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/folahanmi/orgledger/internal/errs"
	"github.com/folahanmi/orgledger/internal/finance"
)

// Repo defines read operations needed by the service.
type Repo interface {
	GetLiability(ctx context.Context, orgID, liabilityID uuid.UUID) (finance.Liability, error)
	ListLiabilities(ctx context.Context, orgID uuid.UUID) ([]finance.Liability, error)
	GetPosting(ctx context.Context, orgID, postingID uuid.UUID) (finance.Posting, error)
	ListPostingsByLiability(ctx context.Context, orgID, liabilityID uuid.UUID) ([]finance.Posting, error)
}

// Writer defines write operations needed by the service.
type Writer interface {
	CreateLiability(ctx context.Context, l finance.Liability) (finance.Liability, error)
	UpdateLiability(ctx context.Context, l finance.Liability) (finance.Liability, error)
	UpdatePosting(ctx context.Context, p finance.Posting) (finance.Posting, error)
}

// Service exposes liability lifecycle and the payment-linkage operations.
type Service interface {
	Create(ctx context.Context, l finance.Liability) (finance.Liability, error)
	Get(ctx context.Context, orgID, liabilityID uuid.UUID) (finance.Liability, error)
	List(ctx context.Context, orgID uuid.UUID) ([]finance.Liability, error)
	Update(ctx context.Context, l finance.Liability) (finance.Liability, error)
	RecordPayment(ctx context.Context, orgID, liabilityID, postingID uuid.UUID) (finance.Liability, error)
	UnlinkPayment(ctx context.Context, orgID, liabilityID, postingID uuid.UUID) (finance.Liability, error)
	Recompute(ctx context.Context, orgID, liabilityID uuid.UUID) (finance.Liability, error)
}

type service struct {
	repo   Repo
	writer Writer
}

func New(repo Repo, writer Writer) Service { return &service{repo: repo, writer: writer} }

func (s *service) Create(ctx context.Context, l finance.Liability) (finance.Liability, error) {
	if l.OrgID == uuid.Nil {
		return finance.Liability{}, errs.ErrInvalid
	}
	if l.Creditor == "" {
		return finance.Liability{}, fmt.Errorf("%w: creditor is required", errs.ErrInvalid)
	}
	if l.OriginalAmountMinor <= 0 {
		return finance.Liability{}, fmt.Errorf("%w: original amount must be > 0", errs.ErrInvalid)
	}
	// amountPaid on entry is ignored; payments are the only driver.
	l.ID = uuid.New()
	l.AmountPaidMinor = 0
	if l.Date.IsZero() {
		l.Date = time.Now().UTC()
	}
	return s.writer.CreateLiability(ctx, l)
}

func (s *service) Get(ctx context.Context, orgID, liabilityID uuid.UUID) (finance.Liability, error) {
	if orgID == uuid.Nil || liabilityID == uuid.Nil {
		return finance.Liability{}, errs.ErrInvalid
	}
	return s.repo.GetLiability(ctx, orgID, liabilityID)
}

func (s *service) List(ctx context.Context, orgID uuid.UUID) ([]finance.Liability, error) {
	if orgID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	return s.repo.ListLiabilities(ctx, orgID)
}

// Update applies changes to descriptive fields. OriginalAmountMinor may only
// change while no payment is linked; AmountPaidMinor is never directly
// settable once a payment exists.
func (s *service) Update(ctx context.Context, l finance.Liability) (finance.Liability, error) {
	if l.OrgID == uuid.Nil || l.ID == uuid.Nil {
		return finance.Liability{}, errs.ErrInvalid
	}
	cur, err := s.repo.GetLiability(ctx, l.OrgID, l.ID)
	if err != nil {
		return finance.Liability{}, err
	}
	payments, err := s.repo.ListPostingsByLiability(ctx, l.OrgID, l.ID)
	if err != nil {
		return finance.Liability{}, err
	}
	if len(payments) > 0 {
		if l.AmountPaidMinor != cur.AmountPaidMinor {
			return finance.Liability{}, fmt.Errorf("%w: amount_paid is derived from payments", errs.ErrImmutable)
		}
		if l.OriginalAmountMinor != cur.OriginalAmountMinor {
			return finance.Liability{}, fmt.Errorf("%w: original amount is frozen once payments exist", errs.ErrImmutable)
		}
	}
	cur.Creditor = l.Creditor
	cur.Description = l.Description
	cur.CategoryID = l.CategoryID
	cur.Date = l.Date
	if len(payments) == 0 {
		if l.OriginalAmountMinor <= 0 {
			return finance.Liability{}, fmt.Errorf("%w: original amount must be > 0", errs.ErrInvalid)
		}
		cur.OriginalAmountMinor = l.OriginalAmountMinor
	}
	return s.writer.UpdateLiability(ctx, cur)
}

// RecordPayment links a posting to the liability and recomputes the derived
// fields from the full payment set. Fails with ErrOverpayment before any write
// when the resulting amountPaid would exceed the original amount.
func (s *service) RecordPayment(ctx context.Context, orgID, liabilityID, postingID uuid.UUID) (finance.Liability, error) {
	if orgID == uuid.Nil || liabilityID == uuid.Nil || postingID == uuid.Nil {
		return finance.Liability{}, errs.ErrInvalid
	}
	l, err := s.repo.GetLiability(ctx, orgID, liabilityID)
	if err != nil {
		return finance.Liability{}, err
	}
	p, err := s.repo.GetPosting(ctx, orgID, postingID)
	if err != nil {
		return finance.Liability{}, err
	}
	if p.Kind != finance.PostingKindLiabilityPayment {
		return finance.Liability{}, fmt.Errorf("%w: posting is not a liability payment", errs.ErrInvalid)
	}
	if p.LiabilityID != nil && *p.LiabilityID != liabilityID {
		return finance.Liability{}, fmt.Errorf("%w: posting already linked to another liability", errs.ErrConflict)
	}
	paid, err := s.sumPayments(ctx, orgID, liabilityID)
	if err != nil {
		return finance.Liability{}, err
	}
	if p.LiabilityID == nil {
		if paid+p.Amount > l.OriginalAmountMinor {
			return finance.Liability{}, fmt.Errorf("%w: payment of %d exceeds outstanding %d",
				errs.ErrOverpayment, p.Amount, l.OriginalAmountMinor-paid)
		}
		lid := liabilityID
		p.LiabilityID = &lid
		if _, err := s.writer.UpdatePosting(ctx, p); err != nil {
			return finance.Liability{}, err
		}
		paid += p.Amount
	}
	return s.applyDerived(ctx, l, paid)
}

// UnlinkPayment detaches a posting (e.g. when it is deleted or reversed) and
// recomputes the derived fields. Paid is not terminal: reversing a payment
// returns the liability to partially paid.
func (s *service) UnlinkPayment(ctx context.Context, orgID, liabilityID, postingID uuid.UUID) (finance.Liability, error) {
	if orgID == uuid.Nil || liabilityID == uuid.Nil || postingID == uuid.Nil {
		return finance.Liability{}, errs.ErrInvalid
	}
	l, err := s.repo.GetLiability(ctx, orgID, liabilityID)
	if err != nil {
		return finance.Liability{}, err
	}
	p, err := s.repo.GetPosting(ctx, orgID, postingID)
	if err != nil {
		return finance.Liability{}, err
	}
	if p.LiabilityID != nil && *p.LiabilityID == liabilityID {
		p.LiabilityID = nil
		if _, err := s.writer.UpdatePosting(ctx, p); err != nil {
			return finance.Liability{}, err
		}
	}
	paid, err := s.sumPayments(ctx, orgID, liabilityID)
	if err != nil {
		return finance.Liability{}, err
	}
	return s.applyDerived(ctx, l, paid)
}

// Recompute re-derives amountPaid from the payment set and persists only when
// the stored value drifted.
func (s *service) Recompute(ctx context.Context, orgID, liabilityID uuid.UUID) (finance.Liability, error) {
	l, err := s.repo.GetLiability(ctx, orgID, liabilityID)
	if err != nil {
		return finance.Liability{}, err
	}
	paid, err := s.sumPayments(ctx, orgID, liabilityID)
	if err != nil {
		return finance.Liability{}, err
	}
	return s.applyDerived(ctx, l, paid)
}

func (s *service) sumPayments(ctx context.Context, orgID, liabilityID uuid.UUID) (int64, error) {
	payments, err := s.repo.ListPostingsByLiability(ctx, orgID, liabilityID)
	if err != nil {
		return 0, err
	}
	var paid int64
	for _, p := range payments {
		paid += p.Amount
	}
	return paid, nil
}

func (s *service) applyDerived(ctx context.Context, l finance.Liability, paid int64) (finance.Liability, error) {
	if paid == l.AmountPaidMinor {
		return l, nil
	}
	l.AmountPaidMinor = paid
	return s.writer.UpdateLiability(ctx, l)
}

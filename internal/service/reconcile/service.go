// Package reconcile implements the reconciliation engine: sessions comparing an
// account's book balance against the bank-reported balance, tracking which
// postings have been matched, and re-deriving status reactively.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/folahanmi/orgledger/internal/errs"
	"github.com/folahanmi/orgledger/internal/finance"
	"github.com/folahanmi/orgledger/internal/service/balance"
)

// Repo defines read operations needed by the service.
type Repo interface {
	GetAccount(ctx context.Context, orgID, accountID uuid.UUID) (finance.Account, error)
	GetReconciliation(ctx context.Context, orgID, recID uuid.UUID) (finance.Reconciliation, error)
	ListReconciliations(ctx context.Context, orgID uuid.UUID) ([]finance.Reconciliation, error)
	GetPosting(ctx context.Context, orgID, postingID uuid.UUID) (finance.Posting, error)
	ListPostingsByAccount(ctx context.Context, orgID, accountID uuid.UUID) ([]finance.Posting, error)
}

// Writer defines write operations needed by the service.
type Writer interface {
	CreateReconciliation(ctx context.Context, r finance.Reconciliation) (finance.Reconciliation, error)
	UpdateReconciliation(ctx context.Context, r finance.Reconciliation) (finance.Reconciliation, error)
	DeleteReconciliation(ctx context.Context, orgID, recID uuid.UUID) error
	CreatePosting(ctx context.Context, p finance.Posting) (finance.Posting, error)
	UpdatePosting(ctx context.Context, p finance.Posting) (finance.Posting, error)
}

// AddEntryInput describes a posting discovered during a reconciliation session
// (e.g. a bank fee) to be recorded against the account being reconciled.
type AddEntryInput struct {
	Side       finance.Side
	Kind       finance.PostingKind
	Amount     int64
	Date       time.Time
	Memo       string
	CategoryID uuid.UUID
}

// Service exposes the reconciliation session lifecycle.
type Service interface {
	Create(ctx context.Context, orgID, accountID uuid.UUID, bankBalanceMinor int64, date time.Time, notes string) (finance.Reconciliation, error)
	Get(ctx context.Context, orgID, recID uuid.UUID) (finance.Reconciliation, error)
	List(ctx context.Context, orgID uuid.UUID) ([]finance.Reconciliation, error)
	ToggleEntry(ctx context.Context, orgID, recID, postingID uuid.UUID) (finance.Reconciliation, error)
	SelectAll(ctx context.Context, orgID, recID uuid.UUID, reconciled bool) (finance.Reconciliation, error)
	AddEntry(ctx context.Context, orgID, recID uuid.UUID, in AddEntryInput) (finance.Reconciliation, finance.Posting, error)
	Delete(ctx context.Context, orgID, recID uuid.UUID) error
	Refresh(ctx context.Context, orgID, recID uuid.UUID) (finance.Reconciliation, error)
}

type service struct {
	repo   Repo
	writer Writer
	ledger balance.Service
}

func New(repo Repo, writer Writer, ledger balance.Service) Service {
	return &service{repo: repo, writer: writer, ledger: ledger}
}

// Create snapshots the account's live balance as the book balance and opens a
// session. The session starts Reconciled only in the edge case where the
// difference is zero and the account has no unreconciled postings.
func (s *service) Create(ctx context.Context, orgID, accountID uuid.UUID, bankBalanceMinor int64, date time.Time, notes string) (finance.Reconciliation, error) {
	if orgID == uuid.Nil || accountID == uuid.Nil {
		return finance.Reconciliation{}, errs.ErrInvalid
	}
	acc, err := s.repo.GetAccount(ctx, orgID, accountID)
	if err != nil {
		return finance.Reconciliation{}, err
	}
	if date.IsZero() {
		date = time.Now().UTC()
	}
	r := finance.Reconciliation{
		ID:               uuid.New(),
		OrgID:            orgID,
		AccountID:        accountID,
		Date:             date,
		Notes:            notes,
		BookBalanceMinor: acc.BalanceMinor,
		BankBalanceMinor: bankBalanceMinor,
		DifferenceMinor:  bankBalanceMinor - acc.BalanceMinor,
		Status:           finance.ReconciliationStatusPending,
		Reconciled:       map[uuid.UUID]struct{}{},
		Added:            map[uuid.UUID]struct{}{},
	}
	if r.DifferenceMinor == 0 {
		postings, err := s.repo.ListPostingsByAccount(ctx, orgID, accountID)
		if err != nil {
			return finance.Reconciliation{}, err
		}
		if unreconciledCount(postings, r) == 0 {
			r.Status = finance.ReconciliationStatusReconciled
		}
	}
	return s.writer.CreateReconciliation(ctx, r)
}

func (s *service) Get(ctx context.Context, orgID, recID uuid.UUID) (finance.Reconciliation, error) {
	if orgID == uuid.Nil || recID == uuid.Nil {
		return finance.Reconciliation{}, errs.ErrInvalid
	}
	r, err := s.repo.GetReconciliation(ctx, orgID, recID)
	if err != nil {
		return finance.Reconciliation{}, err
	}
	// Serve the latest derived state, never a stale snapshot.
	return s.refresh(ctx, r)
}

func (s *service) List(ctx context.Context, orgID uuid.UUID) ([]finance.Reconciliation, error) {
	if orgID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	return s.repo.ListReconciliations(ctx, orgID)
}

// ToggleEntry flips a posting's membership in the session's matched set.
func (s *service) ToggleEntry(ctx context.Context, orgID, recID, postingID uuid.UUID) (finance.Reconciliation, error) {
	if orgID == uuid.Nil || recID == uuid.Nil || postingID == uuid.Nil {
		return finance.Reconciliation{}, errs.ErrInvalid
	}
	r, err := s.repo.GetReconciliation(ctx, orgID, recID)
	if err != nil {
		return finance.Reconciliation{}, err
	}
	p, err := s.repo.GetPosting(ctx, orgID, postingID)
	if err != nil {
		return finance.Reconciliation{}, err
	}
	if p.AccountID != r.AccountID {
		return finance.Reconciliation{}, fmt.Errorf("%w: posting belongs to a different account", errs.ErrInvalid)
	}
	if p.Reversed {
		return finance.Reconciliation{}, fmt.Errorf("%w: posting is reversed", errs.ErrInvalid)
	}
	if p.ReconciliationID != nil && *p.ReconciliationID != recID {
		return finance.Reconciliation{}, fmt.Errorf("%w: posting matched in another session", errs.ErrConflict)
	}
	if _, ok := r.Reconciled[postingID]; ok {
		delete(r.Reconciled, postingID)
		p.Reconciled = false
		p.ReconciliationID = nil
	} else {
		r.Reconciled[postingID] = struct{}{}
		p.Reconciled = true
		rid := recID
		p.ReconciliationID = &rid
	}
	if _, err := s.writer.UpdatePosting(ctx, p); err != nil {
		return finance.Reconciliation{}, err
	}
	if _, err := s.writer.UpdateReconciliation(ctx, r); err != nil {
		return finance.Reconciliation{}, err
	}
	return s.refresh(ctx, r)
}

// SelectAll bulk-sets matched membership for every posting currently
// attributable to the account.
func (s *service) SelectAll(ctx context.Context, orgID, recID uuid.UUID, reconciled bool) (finance.Reconciliation, error) {
	if orgID == uuid.Nil || recID == uuid.Nil {
		return finance.Reconciliation{}, errs.ErrInvalid
	}
	r, err := s.repo.GetReconciliation(ctx, orgID, recID)
	if err != nil {
		return finance.Reconciliation{}, err
	}
	postings, err := s.repo.ListPostingsByAccount(ctx, orgID, r.AccountID)
	if err != nil {
		return finance.Reconciliation{}, err
	}
	for _, p := range postings {
		if p.ReconciliationID != nil && *p.ReconciliationID != recID {
			continue // owned by another session
		}
		_, member := r.Reconciled[p.ID]
		if member == reconciled {
			continue
		}
		if reconciled {
			r.Reconciled[p.ID] = struct{}{}
			p.Reconciled = true
			rid := recID
			p.ReconciliationID = &rid
		} else {
			delete(r.Reconciled, p.ID)
			p.Reconciled = false
			p.ReconciliationID = nil
		}
		if _, err := s.writer.UpdatePosting(ctx, p); err != nil {
			return finance.Reconciliation{}, err
		}
	}
	if _, err := s.writer.UpdateReconciliation(ctx, r); err != nil {
		return finance.Reconciliation{}, err
	}
	return s.refresh(ctx, r)
}

// AddEntry records a posting discovered during the session (e.g. a bank fee),
// applies it to the ledger immediately, then re-derives the session state.
// A debit that exceeds the balance is rejected outright, never clamped.
func (s *service) AddEntry(ctx context.Context, orgID, recID uuid.UUID, in AddEntryInput) (finance.Reconciliation, finance.Posting, error) {
	if orgID == uuid.Nil || recID == uuid.Nil {
		return finance.Reconciliation{}, finance.Posting{}, errs.ErrInvalid
	}
	if in.Amount <= 0 {
		return finance.Reconciliation{}, finance.Posting{}, fmt.Errorf("%w: amount must be > 0", errs.ErrInvalid)
	}
	if in.Side != finance.SideCredit && in.Side != finance.SideDebit {
		return finance.Reconciliation{}, finance.Posting{}, fmt.Errorf("%w: side must be credit or debit", errs.ErrInvalid)
	}
	if in.Kind != finance.PostingKindIncome && in.Kind != finance.PostingKindExpenditure {
		return finance.Reconciliation{}, finance.Posting{}, fmt.Errorf("%w: kind must be income or expenditure", errs.ErrInvalid)
	}
	r, err := s.repo.GetReconciliation(ctx, orgID, recID)
	if err != nil {
		return finance.Reconciliation{}, finance.Posting{}, err
	}
	if in.Date.IsZero() {
		in.Date = time.Now().UTC()
	}
	// Ledger first: if the debit is rejected the session is untouched.
	if in.Side == finance.SideDebit {
		if _, err := s.ledger.Debit(ctx, orgID, r.AccountID, in.Amount); err != nil {
			return finance.Reconciliation{}, finance.Posting{}, err
		}
	} else {
		if _, err := s.ledger.Credit(ctx, orgID, r.AccountID, in.Amount); err != nil {
			return finance.Reconciliation{}, finance.Posting{}, err
		}
	}
	p := finance.Posting{
		ID:             uuid.New(),
		OrgID:          orgID,
		AccountID:      r.AccountID,
		Side:           in.Side,
		Kind:           in.Kind,
		Amount:         in.Amount,
		Date:           in.Date,
		Memo:           in.Memo,
		CategoryID:     in.CategoryID,
		AddedInSession: true,
	}
	created, err := s.writer.CreatePosting(ctx, p)
	if err != nil {
		// Undo the balance effect so the ledger never carries a phantom posting.
		if _, rerr := s.ledger.Reverse(ctx, p); rerr != nil {
			return finance.Reconciliation{}, finance.Posting{}, fmt.Errorf("%w: posting create failed and balance rollback failed: %v", errs.ErrPartialCommit, rerr)
		}
		return finance.Reconciliation{}, finance.Posting{}, err
	}
	r.Added[created.ID] = struct{}{}
	if _, err := s.writer.UpdateReconciliation(ctx, r); err != nil {
		return finance.Reconciliation{}, finance.Posting{}, err
	}
	out, err := s.refresh(ctx, r)
	if err != nil {
		return finance.Reconciliation{}, finance.Posting{}, err
	}
	return out, created, nil
}

// Delete unmarks every posting matched in the session and removes it. Postings
// added during the session keep their ledger effect; only the matched flags
// are cleared.
func (s *service) Delete(ctx context.Context, orgID, recID uuid.UUID) error {
	if orgID == uuid.Nil || recID == uuid.Nil {
		return errs.ErrInvalid
	}
	r, err := s.repo.GetReconciliation(ctx, orgID, recID)
	if err != nil {
		return err
	}
	for id := range r.Reconciled {
		p, err := s.repo.GetPosting(ctx, orgID, id)
		if err != nil {
			continue // already gone; nothing to unmark
		}
		p.Reconciled = false
		p.ReconciliationID = nil
		if _, err := s.writer.UpdatePosting(ctx, p); err != nil {
			return err
		}
	}
	return s.writer.DeleteReconciliation(ctx, orgID, recID)
}

// Refresh re-derives bookBalance/difference/status from the latest committed
// account balance and posting set.
func (s *service) Refresh(ctx context.Context, orgID, recID uuid.UUID) (finance.Reconciliation, error) {
	if orgID == uuid.Nil || recID == uuid.Nil {
		return finance.Reconciliation{}, errs.ErrInvalid
	}
	r, err := s.repo.GetReconciliation(ctx, orgID, recID)
	if err != nil {
		return finance.Reconciliation{}, err
	}
	return s.refresh(ctx, r)
}

// refresh recomputes the derived tuple and writes it back only when changed.
// Repeated identical recomputation is a no-op, which guards against the
// update loops that reactive recomputation invites.
func (s *service) refresh(ctx context.Context, r finance.Reconciliation) (finance.Reconciliation, error) {
	acc, err := s.repo.GetAccount(ctx, r.OrgID, r.AccountID)
	if err != nil {
		return finance.Reconciliation{}, err
	}
	postings, err := s.repo.ListPostingsByAccount(ctx, r.OrgID, r.AccountID)
	if err != nil {
		return finance.Reconciliation{}, err
	}
	book := acc.BalanceMinor
	diff := r.BankBalanceMinor - book
	status := finance.ReconciliationStatusPending
	if diff == 0 && unreconciledCount(postings, r) == 0 {
		status = finance.ReconciliationStatusReconciled
	}
	if book == r.BookBalanceMinor && diff == r.DifferenceMinor && status == r.Status {
		return r, nil
	}
	r.BookBalanceMinor = book
	r.DifferenceMinor = diff
	r.Status = status
	return s.writer.UpdateReconciliation(ctx, r)
}

// unreconciledCount counts postings still outstanding for the session. Postings
// owned by another session are already settled history, not outstanding work,
// so they do not hold this session open.
func unreconciledCount(postings []finance.Posting, r finance.Reconciliation) int {
	n := 0
	for _, p := range postings {
		if p.ReconciliationID != nil && *p.ReconciliationID != r.ID {
			continue
		}
		if _, ok := r.Reconciled[p.ID]; !ok {
			n++
		}
	}
	return n
}

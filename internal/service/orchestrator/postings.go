package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/folahanmi/orgledger/internal/errs"
	"github.com/folahanmi/orgledger/internal/finance"
)

// RecordPostingInput describes the RecordPosting recipe for plain income and
// expenditure records.
type RecordPostingInput struct {
	OrgID          uuid.UUID
	AccountID      uuid.UUID
	Kind           finance.PostingKind
	Amount         int64
	Date           time.Time
	Memo           string
	CategoryID     uuid.UUID
	IdempotencyKey string
}

// PostingResult is the outcome of the RecordPosting recipe.
type PostingResult struct {
	Posting finance.Posting `json:"posting"`
	Account finance.Account `json:"account"`
}

// RecordPosting creates an income (credit) or expenditure (debit) posting and
// applies it to the account balance, both-or-neither. The side is implied by
// the kind so callers cannot post an expenditure that credits the account.
func (s *Service) RecordPosting(ctx context.Context, in RecordPostingInput) (PostingResult, error) {
	if in.OrgID == uuid.Nil || in.AccountID == uuid.Nil {
		return PostingResult{}, errs.ErrInvalid
	}
	if in.Amount <= 0 {
		return PostingResult{}, fmt.Errorf("%w: amount must be > 0", errs.ErrInvalid)
	}
	var side finance.Side
	switch in.Kind {
	case finance.PostingKindIncome:
		side = finance.SideCredit
	case finance.PostingKindExpenditure:
		side = finance.SideDebit
	default:
		return PostingResult{}, fmt.Errorf("%w: kind must be income or expenditure", errs.ErrInvalid)
	}
	acc, err := s.store.GetAccount(ctx, in.OrgID, in.AccountID)
	if err != nil {
		return PostingResult{}, err
	}
	if side == finance.SideDebit && acc.BalanceMinor < in.Amount {
		return PostingResult{}, fmt.Errorf("%w: balance %d is below expenditure %d",
			errs.ErrInsufficientFunds, acc.BalanceMinor, in.Amount)
	}
	if in.Date.IsZero() {
		in.Date = time.Now().UTC()
	}

	return runIdempotent(ctx, s, in.OrgID, in.IdempotencyKey, func(ctx context.Context) (PostingResult, error) {
		var res PostingResult
		postingID := uuid.New()
		steps := []step{
			{
				name: "create_posting",
				run: func(ctx context.Context) error {
					created, err := s.store.CreatePosting(ctx, finance.Posting{
						ID:         postingID,
						OrgID:      in.OrgID,
						AccountID:  in.AccountID,
						Side:       side,
						Kind:       in.Kind,
						Amount:     in.Amount,
						Date:       in.Date,
						Memo:       in.Memo,
						CategoryID: in.CategoryID,
					})
					if err != nil {
						return err
					}
					res.Posting = created
					return nil
				},
				undo: func(ctx context.Context) error {
					return s.store.DeletePosting(ctx, in.OrgID, postingID)
				},
			},
			{
				name: "apply_balance",
				run: func(ctx context.Context) error {
					var (
						updated finance.Account
						err     error
					)
					if side == finance.SideCredit {
						updated, err = s.ledger.Credit(ctx, in.OrgID, in.AccountID, in.Amount)
					} else {
						updated, err = s.ledger.Debit(ctx, in.OrgID, in.AccountID, in.Amount)
					}
					if err != nil {
						return err
					}
					res.Account = updated
					return nil
				},
				undo: func(ctx context.Context) error {
					if side == finance.SideCredit {
						_, err := s.ledger.Debit(ctx, in.OrgID, in.AccountID, in.Amount)
						return err
					}
					_, err := s.ledger.Credit(ctx, in.OrgID, in.AccountID, in.Amount)
					return err
				},
			},
		}
		if err := s.runSteps(ctx, "RecordPosting", steps); err != nil {
			return PostingResult{}, err
		}
		return res, nil
	})
}

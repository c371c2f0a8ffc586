// Package balance implements the balance ledger: every mutation of an account's
// running balance goes through Credit/Debit/Reverse here, and Recalculate
// self-heals drift from the store's lack of cross-row transactions.
package balance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/folahanmi/orgledger/internal/errs"
	"github.com/folahanmi/orgledger/internal/finance"
)

// Repo defines read operations needed by the service.
type Repo interface {
	GetAccount(ctx context.Context, orgID, accountID uuid.UUID) (finance.Account, error)
	ListPostingsByAccount(ctx context.Context, orgID, accountID uuid.UUID) ([]finance.Posting, error)
}

// Writer defines write operations needed by the service. AdjustAccountBalance
// must apply the delta atomically and reject a negative result with
// errs.ErrInsufficientFunds; the store is the final authority under
// concurrent debits, not the caller's earlier read.
type Writer interface {
	AdjustAccountBalance(ctx context.Context, orgID, accountID uuid.UUID, deltaMinor int64) (finance.Account, error)
	SetAccountBalance(ctx context.Context, orgID, accountID uuid.UUID, balanceMinor int64) (finance.Account, error)
}

// Service exposes the atomic balance operations of the ledger.
type Service interface {
	Credit(ctx context.Context, orgID, accountID uuid.UUID, amountMinor int64) (finance.Account, error)
	Debit(ctx context.Context, orgID, accountID uuid.UUID, amountMinor int64) (finance.Account, error)
	Reverse(ctx context.Context, posting finance.Posting) (finance.Account, error)
	Recalculate(ctx context.Context, orgID, accountID uuid.UUID) (finance.Account, bool, error)
}

type service struct {
	repo   Repo
	writer Writer
	log    *slog.Logger
}

func New(repo Repo, writer Writer, logger *slog.Logger) Service {
	return &service{repo: repo, writer: writer, log: logger}
}

// Credit increases the account balance by amountMinor.
func (s *service) Credit(ctx context.Context, orgID, accountID uuid.UUID, amountMinor int64) (finance.Account, error) {
	if err := validateAdjust(orgID, accountID, amountMinor); err != nil {
		return finance.Account{}, err
	}
	return s.writer.AdjustAccountBalance(ctx, orgID, accountID, amountMinor)
}

// Debit decreases the account balance by amountMinor. A debit exceeding the
// balance is rejected in its entirety with ErrInsufficientFunds; there is no
// clamp-to-zero path.
func (s *service) Debit(ctx context.Context, orgID, accountID uuid.UUID, amountMinor int64) (finance.Account, error) {
	if err := validateAdjust(orgID, accountID, amountMinor); err != nil {
		return finance.Account{}, err
	}
	acc, err := s.writer.AdjustAccountBalance(ctx, orgID, accountID, -amountMinor)
	if err != nil {
		return finance.Account{}, err
	}
	return acc, nil
}

// Reverse applies the bit-exact inverse effect of a committed posting: same
// magnitude, opposite sign. Used when a posting is edited or deleted.
func (s *service) Reverse(ctx context.Context, posting finance.Posting) (finance.Account, error) {
	if posting.OrgID == uuid.Nil || posting.AccountID == uuid.Nil {
		return finance.Account{}, errs.ErrInvalid
	}
	if posting.Amount <= 0 {
		return finance.Account{}, fmt.Errorf("%w: posting amount must be > 0", errs.ErrInvalid)
	}
	return s.writer.AdjustAccountBalance(ctx, posting.OrgID, posting.AccountID, -posting.EffectMinor())
}

// Recalculate recomputes the balance from the opening balance plus all
// non-reversed postings and writes it back only when it differs from the
// stored value. Idempotent; safe to run concurrently with new postings, the
// result converges to the correct sum. The second return reports drift.
func (s *service) Recalculate(ctx context.Context, orgID, accountID uuid.UUID) (finance.Account, bool, error) {
	if orgID == uuid.Nil || accountID == uuid.Nil {
		return finance.Account{}, false, errs.ErrInvalid
	}
	acc, err := s.repo.GetAccount(ctx, orgID, accountID)
	if err != nil {
		return finance.Account{}, false, err
	}
	postings, err := s.repo.ListPostingsByAccount(ctx, orgID, accountID)
	if err != nil {
		return finance.Account{}, false, err
	}
	expected := acc.OpeningBalanceMinor
	for _, p := range postings {
		expected += p.EffectMinor()
	}
	if expected == acc.BalanceMinor {
		return acc, false, nil
	}
	s.log.Warn("consistency violation: balance drift detected, self-healing",
		"org_id", orgID.String(), "account_id", accountID.String(),
		"stored_minor", acc.BalanceMinor, "expected_minor", expected)
	healed, err := s.writer.SetAccountBalance(ctx, orgID, accountID, expected)
	if err != nil {
		return finance.Account{}, true, err
	}
	return healed, true, nil
}

func validateAdjust(orgID, accountID uuid.UUID, amountMinor int64) error {
	if orgID == uuid.Nil || accountID == uuid.Nil {
		return errs.ErrInvalid
	}
	if amountMinor <= 0 {
		return fmt.Errorf("%w: amount must be > 0", errs.ErrInvalid)
	}
	return nil
}

package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/folahanmi/orgledger/internal/errs"
	"github.com/folahanmi/orgledger/internal/finance"
	"github.com/folahanmi/orgledger/internal/meta"
)

// CreateAccountInput describes the CreateAccountWithOpeningBalance recipe.
type CreateAccountInput struct {
	OrgID               uuid.UUID
	Name                string
	Type                finance.AccountType
	Currency            string
	OpeningBalanceMinor int64
	OpeningCategoryID   uuid.UUID
	Metadata            meta.Metadata
	Date                time.Time
	IdempotencyKey      string
}

// AccountResult is the outcome of the account-creation recipe.
type AccountResult struct {
	Account        finance.Account  `json:"account"`
	OpeningPosting *finance.Posting `json:"opening_posting,omitempty"`
}

// CreateAccountWithOpeningBalance creates an account and, when an opening
// balance is given, records it as an opening_balance credit posting so that the
// balance invariant holds from the first row: the running balance is exactly
// the sum of postings, with nothing seeded outside the ledger.
func (s *Service) CreateAccountWithOpeningBalance(ctx context.Context, in CreateAccountInput) (AccountResult, error) {
	if in.OrgID == uuid.Nil {
		return AccountResult{}, errs.ErrInvalid
	}
	if in.Name == "" {
		return AccountResult{}, fmt.Errorf("%w: name is required", errs.ErrInvalid)
	}
	switch in.Type {
	case finance.AccountTypeCash, finance.AccountTypeBank, finance.AccountTypeMobileMoney:
	default:
		return AccountResult{}, fmt.Errorf("%w: invalid account type", errs.ErrInvalid)
	}
	if _, err := money.NewAmountFromMinorUnits(in.Currency, 0); err != nil {
		return AccountResult{}, fmt.Errorf("%w: unknown currency %q", errs.ErrInvalid, in.Currency)
	}
	if in.OpeningBalanceMinor < 0 {
		return AccountResult{}, fmt.Errorf("%w: opening balance must be >= 0", errs.ErrInvalid)
	}
	if err := in.Metadata.Validate(); err != nil {
		return AccountResult{}, fmt.Errorf("%w: %v", errs.ErrInvalid, err)
	}
	if in.Date.IsZero() {
		in.Date = time.Now().UTC()
	}

	return runIdempotent(ctx, s, in.OrgID, in.IdempotencyKey, func(ctx context.Context) (AccountResult, error) {
		acc := finance.Account{
			ID:       uuid.New(),
			OrgID:    in.OrgID,
			Name:     in.Name,
			Type:     in.Type,
			Currency: in.Currency,
			Metadata: in.Metadata.Clone(),
			Active:   true,
		}
		var res AccountResult
		steps := []step{
			{
				name: "create_account",
				run: func(ctx context.Context) error {
					created, err := s.store.CreateAccount(ctx, acc)
					if err != nil {
						return err
					}
					res.Account = created
					return nil
				},
				undo: func(ctx context.Context) error {
					return s.store.DeleteAccount(ctx, in.OrgID, acc.ID)
				},
			},
		}
		if in.OpeningBalanceMinor > 0 {
			posting := finance.Posting{
				ID:         uuid.New(),
				OrgID:      in.OrgID,
				AccountID:  acc.ID,
				Side:       finance.SideCredit,
				Kind:       finance.PostingKindOpeningBalance,
				Amount:     in.OpeningBalanceMinor,
				Date:       in.Date,
				Memo:       "Opening balance",
				CategoryID: in.OpeningCategoryID,
			}
			steps = append(steps,
				step{
					name: "post_opening_balance",
					run: func(ctx context.Context) error {
						created, err := s.store.CreatePosting(ctx, posting)
						if err != nil {
							return err
						}
						res.OpeningPosting = &created
						return nil
					},
					undo: func(ctx context.Context) error {
						return s.store.DeletePosting(ctx, in.OrgID, posting.ID)
					},
				},
				step{
					name: "credit_opening_balance",
					run: func(ctx context.Context) error {
						updated, err := s.ledger.Credit(ctx, in.OrgID, acc.ID, in.OpeningBalanceMinor)
						if err != nil {
							return err
						}
						res.Account = updated
						return nil
					},
					undo: func(ctx context.Context) error {
						_, err := s.ledger.Debit(ctx, in.OrgID, acc.ID, in.OpeningBalanceMinor)
						return err
					},
				},
			)
		}
		if err := s.runSteps(ctx, "CreateAccountWithOpeningBalance", steps); err != nil {
			return AccountResult{}, err
		}
		return res, nil
	})
}

// PaymentInput describes one liability payment.
type PaymentInput struct {
	AccountID  uuid.UUID
	Amount     int64
	Date       time.Time
	Memo       string
	CategoryID uuid.UUID
}

// CreateLiabilityInput describes the CreateLiabilityWithInitialPayment recipe.
// InitialPayment is optional; without it the recipe is a plain liability create.
type CreateLiabilityInput struct {
	OrgID               uuid.UUID
	Creditor            string
	Description         string
	OriginalAmountMinor int64
	Date                time.Time
	CategoryID          uuid.UUID
	InitialPayment      *PaymentInput
	IdempotencyKey      string
}

// LiabilityResult is the outcome of the liability recipes.
type LiabilityResult struct {
	Liability finance.Liability `json:"liability"`
	Payment   *finance.Posting  `json:"payment,omitempty"`
	Account   *finance.Account  `json:"account,omitempty"`
}

// CreateLiabilityWithInitialPayment creates the liability and, when an initial
// payment is supplied, runs the payment legs in the same sequence so a failed
// payment rolls the liability back out.
func (s *Service) CreateLiabilityWithInitialPayment(ctx context.Context, in CreateLiabilityInput) (LiabilityResult, error) {
	if in.OrgID == uuid.Nil {
		return LiabilityResult{}, errs.ErrInvalid
	}
	if in.InitialPayment != nil {
		if in.InitialPayment.Amount <= 0 {
			return LiabilityResult{}, fmt.Errorf("%w: payment amount must be > 0", errs.ErrInvalid)
		}
		if in.InitialPayment.Amount > in.OriginalAmountMinor {
			return LiabilityResult{}, fmt.Errorf("%w: initial payment exceeds liability amount", errs.ErrOverpayment)
		}
		if _, err := s.store.GetAccount(ctx, in.OrgID, in.InitialPayment.AccountID); err != nil {
			return LiabilityResult{}, err
		}
	}

	return runIdempotent(ctx, s, in.OrgID, in.IdempotencyKey, func(ctx context.Context) (LiabilityResult, error) {
		var res LiabilityResult
		steps := []step{
			{
				name: "create_liability",
				run: func(ctx context.Context) error {
					l, err := s.liab.Create(ctx, finance.Liability{
						OrgID:               in.OrgID,
						Creditor:            in.Creditor,
						Description:         in.Description,
						OriginalAmountMinor: in.OriginalAmountMinor,
						Date:                in.Date,
						CategoryID:          in.CategoryID,
					})
					if err != nil {
						return err
					}
					res.Liability = l
					return nil
				},
				undo: func(ctx context.Context) error {
					return s.store.DeleteLiability(ctx, in.OrgID, res.Liability.ID)
				},
			},
		}
		if in.InitialPayment != nil {
			steps = append(steps, s.paymentSteps(in.OrgID, func() uuid.UUID { return res.Liability.ID }, *in.InitialPayment, &res)...)
		}
		if err := s.runSteps(ctx, "CreateLiabilityWithInitialPayment", steps); err != nil {
			return LiabilityResult{}, err
		}
		return res, nil
	})
}

// PayLiabilityInput describes the PayLiability recipe.
type PayLiabilityInput struct {
	OrgID          uuid.UUID
	LiabilityID    uuid.UUID
	Payment        PaymentInput
	IdempotencyKey string
}

// PayLiability creates the payment posting, debits the paying account, and
// links the posting to the liability. Insufficient funds and overpayment are
// rejected before any write; the ledger and tracker re-check at commit time.
func (s *Service) PayLiability(ctx context.Context, in PayLiabilityInput) (LiabilityResult, error) {
	if in.OrgID == uuid.Nil || in.LiabilityID == uuid.Nil {
		return LiabilityResult{}, errs.ErrInvalid
	}
	if in.Payment.Amount <= 0 {
		return LiabilityResult{}, fmt.Errorf("%w: payment amount must be > 0", errs.ErrInvalid)
	}
	l, err := s.store.GetLiability(ctx, in.OrgID, in.LiabilityID)
	if err != nil {
		return LiabilityResult{}, err
	}
	if l.AmountPaidMinor+in.Payment.Amount > l.OriginalAmountMinor {
		return LiabilityResult{}, fmt.Errorf("%w: payment of %d exceeds outstanding %d",
			errs.ErrOverpayment, in.Payment.Amount, l.BalanceMinor())
	}
	acc, err := s.store.GetAccount(ctx, in.OrgID, in.Payment.AccountID)
	if err != nil {
		return LiabilityResult{}, err
	}
	if acc.BalanceMinor < in.Payment.Amount {
		return LiabilityResult{}, fmt.Errorf("%w: balance %d is below payment %d",
			errs.ErrInsufficientFunds, acc.BalanceMinor, in.Payment.Amount)
	}

	return runIdempotent(ctx, s, in.OrgID, in.IdempotencyKey, func(ctx context.Context) (LiabilityResult, error) {
		res := LiabilityResult{Liability: l}
		steps := s.paymentSteps(in.OrgID, func() uuid.UUID { return in.LiabilityID }, in.Payment, &res)
		if err := s.runSteps(ctx, "PayLiability", steps); err != nil {
			return LiabilityResult{}, err
		}
		return res, nil
	})
}

// paymentSteps builds the shared payment legs: posting, debit, link. liabilityID
// is resolved lazily so the create-liability recipe can reference the ID minted
// in its first step.
func (s *Service) paymentSteps(orgID uuid.UUID, liabilityID func() uuid.UUID, pay PaymentInput, res *LiabilityResult) []step {
	postingID := uuid.New()
	return []step{
		{
			name: "create_payment_posting",
			run: func(ctx context.Context) error {
				date := pay.Date
				if date.IsZero() {
					date = time.Now().UTC()
				}
				created, err := s.store.CreatePosting(ctx, finance.Posting{
					ID:         postingID,
					OrgID:      orgID,
					AccountID:  pay.AccountID,
					Side:       finance.SideDebit,
					Kind:       finance.PostingKindLiabilityPayment,
					Amount:     pay.Amount,
					Date:       date,
					Memo:       pay.Memo,
					CategoryID: pay.CategoryID,
				})
				if err != nil {
					return err
				}
				res.Payment = &created
				return nil
			},
			undo: func(ctx context.Context) error {
				return s.store.DeletePosting(ctx, orgID, postingID)
			},
		},
		{
			name: "debit_account",
			run: func(ctx context.Context) error {
				updated, err := s.ledger.Debit(ctx, orgID, pay.AccountID, pay.Amount)
				if err != nil {
					return err
				}
				res.Account = &updated
				return nil
			},
			undo: func(ctx context.Context) error {
				_, err := s.ledger.Credit(ctx, orgID, pay.AccountID, pay.Amount)
				return err
			},
		},
		{
			name: "link_payment",
			run: func(ctx context.Context) error {
				l, err := s.liab.RecordPayment(ctx, orgID, liabilityID(), postingID)
				if err != nil {
					return err
				}
				res.Liability = l
				return nil
			},
			undo: func(ctx context.Context) error {
				l, err := s.liab.UnlinkPayment(ctx, orgID, liabilityID(), postingID)
				if err != nil {
					return err
				}
				res.Liability = l
				return nil
			},
		},
	}
}

// CreateTransferInput describes the CreateTransfer recipe.
type CreateTransferInput struct {
	OrgID          uuid.UUID
	FromAccountID  uuid.UUID
	ToAccountID    uuid.UUID
	Amount         int64
	Date           time.Time
	Memo           string
	CategoryID     uuid.UUID
	IdempotencyKey string
}

// TransferResult is the outcome of the CreateTransfer recipe.
type TransferResult struct {
	Transfer finance.Transfer `json:"transfer"`
	From     finance.Account  `json:"from"`
	To       finance.Account  `json:"to"`
}

// CreateTransfer moves money between two accounts: exactly one debit posting on
// the source and one credit posting on the destination, both-or-neither.
func (s *Service) CreateTransfer(ctx context.Context, in CreateTransferInput) (TransferResult, error) {
	if in.OrgID == uuid.Nil || in.FromAccountID == uuid.Nil || in.ToAccountID == uuid.Nil {
		return TransferResult{}, errs.ErrInvalid
	}
	if in.FromAccountID == in.ToAccountID {
		return TransferResult{}, fmt.Errorf("%w: source and destination must differ", errs.ErrInvalid)
	}
	if in.Amount <= 0 {
		return TransferResult{}, fmt.Errorf("%w: amount must be > 0", errs.ErrInvalid)
	}
	from, err := s.store.GetAccount(ctx, in.OrgID, in.FromAccountID)
	if err != nil {
		return TransferResult{}, err
	}
	if _, err := s.store.GetAccount(ctx, in.OrgID, in.ToAccountID); err != nil {
		return TransferResult{}, err
	}
	if from.BalanceMinor < in.Amount {
		return TransferResult{}, fmt.Errorf("%w: balance %d is below transfer %d",
			errs.ErrInsufficientFunds, from.BalanceMinor, in.Amount)
	}
	if in.Date.IsZero() {
		in.Date = time.Now().UTC()
	}

	return runIdempotent(ctx, s, in.OrgID, in.IdempotencyKey, func(ctx context.Context) (TransferResult, error) {
		var res TransferResult
		transferID := uuid.New()
		debitID := uuid.New()
		creditID := uuid.New()
		steps := []step{
			{
				name: "debit_source",
				run: func(ctx context.Context) error {
					updated, err := s.ledger.Debit(ctx, in.OrgID, in.FromAccountID, in.Amount)
					if err != nil {
						return err
					}
					res.From = updated
					return nil
				},
				undo: func(ctx context.Context) error {
					_, err := s.ledger.Credit(ctx, in.OrgID, in.FromAccountID, in.Amount)
					return err
				},
			},
			{
				name: "create_debit_posting",
				run: func(ctx context.Context) error {
					_, err := s.store.CreatePosting(ctx, finance.Posting{
						ID:         debitID,
						OrgID:      in.OrgID,
						AccountID:  in.FromAccountID,
						Side:       finance.SideDebit,
						Kind:       finance.PostingKindTransferOut,
						Amount:     in.Amount,
						Date:       in.Date,
						Memo:       in.Memo,
						CategoryID: in.CategoryID,
					})
					return err
				},
				undo: func(ctx context.Context) error {
					return s.store.DeletePosting(ctx, in.OrgID, debitID)
				},
			},
			{
				name: "credit_destination",
				run: func(ctx context.Context) error {
					updated, err := s.ledger.Credit(ctx, in.OrgID, in.ToAccountID, in.Amount)
					if err != nil {
						return err
					}
					res.To = updated
					return nil
				},
				undo: func(ctx context.Context) error {
					_, err := s.ledger.Debit(ctx, in.OrgID, in.ToAccountID, in.Amount)
					return err
				},
			},
			{
				name: "create_credit_posting",
				run: func(ctx context.Context) error {
					_, err := s.store.CreatePosting(ctx, finance.Posting{
						ID:         creditID,
						OrgID:      in.OrgID,
						AccountID:  in.ToAccountID,
						Side:       finance.SideCredit,
						Kind:       finance.PostingKindTransferIn,
						Amount:     in.Amount,
						Date:       in.Date,
						Memo:       in.Memo,
						CategoryID: in.CategoryID,
					})
					return err
				},
				undo: func(ctx context.Context) error {
					return s.store.DeletePosting(ctx, in.OrgID, creditID)
				},
			},
			{
				name: "create_transfer",
				run: func(ctx context.Context) error {
					t, err := s.store.CreateTransfer(ctx, finance.Transfer{
						ID:              transferID,
						OrgID:           in.OrgID,
						FromAccountID:   in.FromAccountID,
						ToAccountID:     in.ToAccountID,
						Amount:          in.Amount,
						Date:            in.Date,
						Memo:            in.Memo,
						DebitPostingID:  debitID,
						CreditPostingID: creditID,
					})
					if err != nil {
						return err
					}
					res.Transfer = t
					return nil
				},
			},
		}
		if err := s.runSteps(ctx, "CreateTransfer", steps); err != nil {
			return TransferResult{}, err
		}
		return res, nil
	})
}

// DeletePostingInput describes the DeletePosting recipe.
type DeletePostingInput struct {
	OrgID          uuid.UUID
	PostingID      uuid.UUID
	IdempotencyKey string
}

// DeletePostingResult is the outcome of the DeletePosting recipe.
type DeletePostingResult struct {
	Posting   finance.Posting    `json:"posting"`
	Account   finance.Account    `json:"account"`
	Liability *finance.Liability `json:"liability,omitempty"`
}

// DeletePosting reverses a posting's ledger effect and marks it reversed; a
// linked liability is recomputed from the remaining payment set. Reconciled
// postings are immutable and transfer legs can only go away with their
// transfer, so both are rejected.
func (s *Service) DeletePosting(ctx context.Context, in DeletePostingInput) (DeletePostingResult, error) {
	if in.OrgID == uuid.Nil || in.PostingID == uuid.Nil {
		return DeletePostingResult{}, errs.ErrInvalid
	}
	p, err := s.store.GetPosting(ctx, in.OrgID, in.PostingID)
	if err != nil {
		return DeletePostingResult{}, err
	}
	if p.Reconciled {
		return DeletePostingResult{}, errs.ErrReconciledPosting
	}
	if p.Kind == finance.PostingKindTransferIn || p.Kind == finance.PostingKindTransferOut {
		return DeletePostingResult{}, fmt.Errorf("%w: transfer legs cannot be deleted individually", errs.ErrInvalid)
	}
	if p.Reversed {
		return DeletePostingResult{}, fmt.Errorf("%w: posting already reversed", errs.ErrConflict)
	}

	return runIdempotent(ctx, s, in.OrgID, in.IdempotencyKey, func(ctx context.Context) (DeletePostingResult, error) {
		var res DeletePostingResult
		steps := []step{
			{
				name: "reverse_balance",
				run: func(ctx context.Context) error {
					updated, err := s.ledger.Reverse(ctx, p)
					if err != nil {
						return err
					}
					res.Account = updated
					return nil
				},
				undo: func(ctx context.Context) error {
					delta := p.EffectMinor()
					if delta >= 0 {
						_, err := s.ledger.Credit(ctx, in.OrgID, p.AccountID, delta)
						return err
					}
					_, err := s.ledger.Debit(ctx, in.OrgID, p.AccountID, -delta)
					return err
				},
			},
			{
				name: "mark_reversed",
				run: func(ctx context.Context) error {
					p.Reversed = true
					updated, err := s.store.UpdatePosting(ctx, p)
					if err != nil {
						return err
					}
					res.Posting = updated
					return nil
				},
				undo: func(ctx context.Context) error {
					p.Reversed = false
					_, err := s.store.UpdatePosting(ctx, p)
					return err
				},
			},
		}
		if p.LiabilityID != nil {
			lid := *p.LiabilityID
			recompute := func(ctx context.Context) error {
				l, err := s.liab.Recompute(ctx, in.OrgID, lid)
				if err != nil {
					return err
				}
				res.Liability = &l
				return nil
			}
			steps = append(steps, step{name: "recompute_liability", run: recompute, undo: recompute})
		}
		if err := s.runSteps(ctx, "DeletePosting", steps); err != nil {
			return DeletePostingResult{}, err
		}
		return res, nil
	})
}

package v1

import (
	"time"

	"github.com/google/uuid"

	"github.com/folahanmi/orgledger/internal/finance"
)

func accountTypeFrom(s string) finance.AccountType { return finance.AccountType(s) }
func postingKindFrom(s string) finance.PostingKind { return finance.PostingKind(s) }
func sideFrom(s string) finance.Side               { return finance.Side(s) }
func categoryTypeFrom(s string) finance.CategoryType {
	return finance.CategoryType(s)
}

// Accounts

type postAccountRequest struct {
	OrgID               uuid.UUID         `json:"org_id" validate:"required"`
	Name                string            `json:"name" validate:"required,max=120"`
	Type                string            `json:"type" validate:"required,oneof=cash bank mobile_money"`
	Currency            string            `json:"currency" validate:"required,len=3,alpha"`
	OpeningBalanceMinor int64             `json:"opening_balance_minor" validate:"gte=0"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	Date                *time.Time        `json:"date,omitempty"`
}

type patchAccountRequest struct {
	Name     *string           `json:"name,omitempty" validate:"omitempty,max=120"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Active   *bool             `json:"active,omitempty"`
}

type accountResponse struct {
	ID                  uuid.UUID         `json:"id"`
	OrgID               uuid.UUID         `json:"org_id"`
	Name                string            `json:"name"`
	Type                string            `json:"type"`
	Currency            string            `json:"currency"`
	OpeningBalanceMinor int64             `json:"opening_balance_minor"`
	BalanceMinor        int64             `json:"balance_minor"`
	Balance             string            `json:"balance"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	Active              bool              `json:"active"`
}

func toAccountResponse(a finance.Account) accountResponse {
	return accountResponse{
		ID:                  a.ID,
		OrgID:               a.OrgID,
		Name:                a.Name,
		Type:                string(a.Type),
		Currency:            a.Currency,
		OpeningBalanceMinor: a.OpeningBalanceMinor,
		BalanceMinor:        a.BalanceMinor,
		Balance:             formatMinor(a.Currency, a.BalanceMinor),
		Metadata:            map[string]string(a.Metadata),
		Active:              a.Active,
	}
}

type recalculateResponse struct {
	Account accountResponse `json:"account"`
	Drifted bool            `json:"drifted"`
}

// Postings

type postPostingRequest struct {
	OrgID       uuid.UUID  `json:"org_id" validate:"required"`
	AccountID   uuid.UUID  `json:"account_id" validate:"required"`
	Kind        string     `json:"kind" validate:"required,oneof=income expenditure"`
	AmountMinor int64      `json:"amount_minor" validate:"required,gt=0"`
	Date        *time.Time `json:"date,omitempty"`
	Memo        string     `json:"memo,omitempty" validate:"max=500"`
	CategoryID  uuid.UUID  `json:"category_id,omitempty"`
}

type postingResponse struct {
	ID               uuid.UUID  `json:"id"`
	OrgID            uuid.UUID  `json:"org_id"`
	AccountID        uuid.UUID  `json:"account_id"`
	Side             string     `json:"side"`
	Kind             string     `json:"kind"`
	AmountMinor      int64      `json:"amount_minor"`
	Amount           string     `json:"amount,omitempty"`
	Date             time.Time  `json:"date"`
	Memo             string     `json:"memo,omitempty"`
	CategoryID       uuid.UUID  `json:"category_id,omitempty"`
	LiabilityID      *uuid.UUID `json:"liability_id,omitempty"`
	ReconciliationID *uuid.UUID `json:"reconciliation_id,omitempty"`
	Reconciled       bool       `json:"reconciled"`
	AddedInSession   bool       `json:"added_in_session,omitempty"`
	Reversed         bool       `json:"reversed"`
}

func toPostingResponse(p finance.Posting, currency string) postingResponse {
	return postingResponse{
		ID:               p.ID,
		OrgID:            p.OrgID,
		AccountID:        p.AccountID,
		Side:             string(p.Side),
		Kind:             string(p.Kind),
		AmountMinor:      p.Amount,
		Amount:           formatMinor(currency, p.Amount),
		Date:             p.Date,
		Memo:             p.Memo,
		CategoryID:       p.CategoryID,
		LiabilityID:      p.LiabilityID,
		ReconciliationID: p.ReconciliationID,
		Reconciled:       p.Reconciled,
		AddedInSession:   p.AddedInSession,
		Reversed:         p.Reversed,
	}
}

type postingResult struct {
	Posting postingResponse `json:"posting"`
	Account accountResponse `json:"account"`
}

type deletePostingResult struct {
	Posting   postingResponse    `json:"posting"`
	Account   accountResponse    `json:"account"`
	Liability *liabilityResponse `json:"liability,omitempty"`
}

// Liabilities

type paymentRequest struct {
	AccountID   uuid.UUID  `json:"account_id" validate:"required"`
	AmountMinor int64      `json:"amount_minor" validate:"required,gt=0"`
	Date        *time.Time `json:"date,omitempty"`
	Memo        string     `json:"memo,omitempty" validate:"max=500"`
	CategoryID  uuid.UUID  `json:"category_id,omitempty"`
}

type postLiabilityRequest struct {
	OrgID               uuid.UUID       `json:"org_id" validate:"required"`
	Creditor            string          `json:"creditor" validate:"required,max=120"`
	Description         string          `json:"description,omitempty" validate:"max=500"`
	OriginalAmountMinor int64           `json:"original_amount_minor" validate:"required,gt=0"`
	Date                *time.Time      `json:"date,omitempty"`
	CategoryID          uuid.UUID       `json:"category_id,omitempty"`
	InitialPayment      *paymentRequest `json:"initial_payment,omitempty" validate:"omitempty"`
}

type patchLiabilityRequest struct {
	Creditor            *string    `json:"creditor,omitempty" validate:"omitempty,max=120"`
	Description         *string    `json:"description,omitempty" validate:"omitempty,max=500"`
	OriginalAmountMinor *int64     `json:"original_amount_minor,omitempty"`
	AmountPaidMinor     *int64     `json:"amount_paid_minor,omitempty"`
	Date                *time.Time `json:"date,omitempty"`
	CategoryID          *uuid.UUID `json:"category_id,omitempty"`
}

type liabilityResponse struct {
	ID                  uuid.UUID `json:"id"`
	OrgID               uuid.UUID `json:"org_id"`
	Creditor            string    `json:"creditor"`
	Description         string    `json:"description,omitempty"`
	OriginalAmountMinor int64     `json:"original_amount_minor"`
	AmountPaidMinor     int64     `json:"amount_paid_minor"`
	BalanceMinor        int64     `json:"balance_minor"`
	Status              string    `json:"status"`
	Date                time.Time `json:"date"`
	CategoryID          uuid.UUID `json:"category_id,omitempty"`
}

func toLiabilityResponse(l finance.Liability) liabilityResponse {
	return liabilityResponse{
		ID:                  l.ID,
		OrgID:               l.OrgID,
		Creditor:            l.Creditor,
		Description:         l.Description,
		OriginalAmountMinor: l.OriginalAmountMinor,
		AmountPaidMinor:     l.AmountPaidMinor,
		BalanceMinor:        l.BalanceMinor(),
		Status:              string(l.Status()),
		Date:                l.Date,
		CategoryID:          l.CategoryID,
	}
}

type liabilityResult struct {
	Liability liabilityResponse `json:"liability"`
	Payment   *postingResponse  `json:"payment,omitempty"`
	Account   *accountResponse  `json:"account,omitempty"`
}

// Transfers

type postTransferRequest struct {
	OrgID          uuid.UUID  `json:"org_id" validate:"required"`
	FromAccountID  uuid.UUID  `json:"from_account_id" validate:"required"`
	ToAccountID    uuid.UUID  `json:"to_account_id" validate:"required,nefield=FromAccountID"`
	AmountMinor    int64      `json:"amount_minor" validate:"required,gt=0"`
	Date           *time.Time `json:"date,omitempty"`
	Memo           string     `json:"memo,omitempty" validate:"max=500"`
	CategoryID     uuid.UUID  `json:"category_id,omitempty"`
}

type transferResponse struct {
	ID              uuid.UUID `json:"id"`
	OrgID           uuid.UUID `json:"org_id"`
	FromAccountID   uuid.UUID `json:"from_account_id"`
	ToAccountID     uuid.UUID `json:"to_account_id"`
	AmountMinor     int64     `json:"amount_minor"`
	Date            time.Time `json:"date"`
	Memo            string    `json:"memo,omitempty"`
	DebitPostingID  uuid.UUID `json:"debit_posting_id"`
	CreditPostingID uuid.UUID `json:"credit_posting_id"`
}

func toTransferResponse(t finance.Transfer) transferResponse {
	return transferResponse{
		ID:              t.ID,
		OrgID:           t.OrgID,
		FromAccountID:   t.FromAccountID,
		ToAccountID:     t.ToAccountID,
		AmountMinor:     t.Amount,
		Date:            t.Date,
		Memo:            t.Memo,
		DebitPostingID:  t.DebitPostingID,
		CreditPostingID: t.CreditPostingID,
	}
}

type transferResult struct {
	Transfer transferResponse `json:"transfer"`
	From     accountResponse  `json:"from"`
	To       accountResponse  `json:"to"`
}

// Reconciliations

type postReconciliationRequest struct {
	OrgID            uuid.UUID  `json:"org_id" validate:"required"`
	AccountID        uuid.UUID  `json:"account_id" validate:"required"`
	BankBalanceMinor int64      `json:"bank_balance_minor"`
	Date             *time.Time `json:"date,omitempty"`
	Notes            string     `json:"notes,omitempty" validate:"max=1000"`
}

type selectAllRequest struct {
	Reconciled bool `json:"reconciled"`
}

type addEntryRequest struct {
	Side        string     `json:"side" validate:"required,oneof=credit debit"`
	Kind        string     `json:"kind" validate:"required,oneof=income expenditure"`
	AmountMinor int64      `json:"amount_minor" validate:"required,gt=0"`
	Date        *time.Time `json:"date,omitempty"`
	Memo        string     `json:"memo,omitempty" validate:"max=500"`
	CategoryID  uuid.UUID  `json:"category_id,omitempty"`
}

type reconciliationResponse struct {
	ID               uuid.UUID   `json:"id"`
	OrgID            uuid.UUID   `json:"org_id"`
	AccountID        uuid.UUID   `json:"account_id"`
	Date             time.Time   `json:"date"`
	Notes            string      `json:"notes,omitempty"`
	BookBalanceMinor int64       `json:"book_balance_minor"`
	BankBalanceMinor int64       `json:"bank_balance_minor"`
	DifferenceMinor  int64       `json:"difference_minor"`
	Status           string      `json:"status"`
	ReconciledIDs    []uuid.UUID `json:"reconciled_posting_ids"`
	AddedIDs         []uuid.UUID `json:"added_posting_ids"`
}

func toReconciliationResponse(r finance.Reconciliation) reconciliationResponse {
	reconciled := make([]uuid.UUID, 0, len(r.Reconciled))
	for id := range r.Reconciled {
		reconciled = append(reconciled, id)
	}
	added := make([]uuid.UUID, 0, len(r.Added))
	for id := range r.Added {
		added = append(added, id)
	}
	return reconciliationResponse{
		ID:               r.ID,
		OrgID:            r.OrgID,
		AccountID:        r.AccountID,
		Date:             r.Date,
		Notes:            r.Notes,
		BookBalanceMinor: r.BookBalanceMinor,
		BankBalanceMinor: r.BankBalanceMinor,
		DifferenceMinor:  r.DifferenceMinor,
		Status:           string(r.Status),
		ReconciledIDs:    reconciled,
		AddedIDs:         added,
	}
}

type addEntryResponse struct {
	Reconciliation reconciliationResponse `json:"reconciliation"`
	Posting        postingResponse        `json:"posting"`
}

// Categories

type postCategoryRequest struct {
	OrgID        uuid.UUID `json:"org_id" validate:"required"`
	Name         string    `json:"name" validate:"required,max=120"`
	Type         string    `json:"type" validate:"required,oneof=income expense liability"`
	TrackMembers bool      `json:"track_members"`
}

type categoryResponse struct {
	ID           uuid.UUID `json:"id"`
	OrgID        uuid.UUID `json:"org_id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Type         string    `json:"type"`
	TrackMembers bool      `json:"track_members"`
	System       bool      `json:"system"`
}

func toCategoryResponse(c finance.Category) categoryResponse {
	return categoryResponse{
		ID:           c.ID,
		OrgID:        c.OrgID,
		Name:         c.Name,
		Slug:         c.Slug,
		Type:         string(c.Type),
		TrackMembers: c.TrackMembers,
		System:       c.System,
	}
}

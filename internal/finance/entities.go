package finance

import (
	"time"

	"github.com/google/uuid"

	"github.com/folahanmi/orgledger/internal/meta"
)

// Side represents the effect of a posting on an account balance.
type Side string

const (
	// SideCredit increases the account balance.
	SideCredit Side = "credit"
	// SideDebit decreases the account balance.
	SideDebit Side = "debit"
)

// AccountType enumerates the kinds of money accounts an organization holds.
type AccountType string

const (
	AccountTypeCash        AccountType = "cash"
	AccountTypeBank        AccountType = "bank"
	AccountTypeMobileMoney AccountType = "mobile_money"
)

// PostingKind identifies the business operation that produced a posting.
type PostingKind string

const (
	PostingKindIncome           PostingKind = "income"
	PostingKindExpenditure      PostingKind = "expenditure"
	PostingKindTransferIn       PostingKind = "transfer_in"
	PostingKindTransferOut      PostingKind = "transfer_out"
	PostingKindLiabilityPayment PostingKind = "liability_payment"
	PostingKindOpeningBalance   PostingKind = "opening_balance"
)

// LiabilityStatus is derived from the payment ledger, never set directly.
type LiabilityStatus string

const (
	LiabilityStatusNotPaid       LiabilityStatus = "not_paid"
	LiabilityStatusPartiallyPaid LiabilityStatus = "partially_paid"
	LiabilityStatusPaid          LiabilityStatus = "paid"
)

// ReconciliationStatus tracks whether a reconciliation session has fully matched
// the account's ledger against the bank statement.
type ReconciliationStatus string

const (
	ReconciliationStatusPending    ReconciliationStatus = "pending"
	ReconciliationStatusReconciled ReconciliationStatus = "reconciled"
)

// CategoryType scopes a category to one record type.
type CategoryType string

const (
	CategoryTypeIncome    CategoryType = "income"
	CategoryTypeExpense   CategoryType = "expense"
	CategoryTypeLiability CategoryType = "liability"
)

// Organization is the tenant owning all finance data. Currency is the tenant's
// reporting currency (ISO 4217); the core only deals in minor units of it.
type Organization struct {
	ID       uuid.UUID
	Name     string
	Currency string
}

// Account represents a money account belonging to an organization.
// BalanceMinor is the authoritative running total and is mutated only through
// the balance service; OpeningBalanceMinor is the balance the account was
// seeded with before any posting existed.
type Account struct {
	ID                  uuid.UUID
	OrgID               uuid.UUID
	Name                string
	Type                AccountType
	Currency            string
	OpeningBalanceMinor int64
	BalanceMinor        int64
	// Metadata holds bank/mobile-money attributes (bank_name, account_number,
	// provider, phone_number).
	Metadata meta.Metadata `json:"metadata,omitempty"`
	// Active indicates whether the account is active (soft-delete when false).
	Active bool
}

// Posting is a single signed monetary entry against an account: an income or
// expenditure record, one leg of a transfer, or a liability payment.
type Posting struct {
	ID         uuid.UUID
	OrgID      uuid.UUID
	AccountID  uuid.UUID
	Side       Side
	Kind       PostingKind
	Amount     int64 // minor units, always > 0; sign carried by Side
	Date       time.Time
	Memo       string
	CategoryID uuid.UUID
	// LiabilityID links a liability_payment posting to its liability.
	LiabilityID *uuid.UUID
	// ReconciliationID and Reconciled mark membership in a reconciliation's
	// matched set. A reconciled posting is immutable.
	ReconciliationID *uuid.UUID
	Reconciled       bool
	// AddedInSession marks postings created from inside a reconciliation drawer.
	AddedInSession bool
	// Reversed marks that this posting's ledger effect has been undone.
	Reversed bool
}

// EffectMinor returns the signed balance effect of the posting.
func (p Posting) EffectMinor() int64 {
	if p.Side == SideDebit {
		return -p.Amount
	}
	return p.Amount
}

// Liability is a debt owed by the organization. AmountPaidMinor, BalanceMinor
// and Status are derived from the linked payment postings once at least one
// payment exists.
type Liability struct {
	ID                  uuid.UUID
	OrgID               uuid.UUID
	Creditor            string
	Description         string
	OriginalAmountMinor int64
	AmountPaidMinor     int64
	Date                time.Time
	CategoryID          uuid.UUID
}

// BalanceMinor returns the outstanding amount.
func (l Liability) BalanceMinor() int64 { return l.OriginalAmountMinor - l.AmountPaidMinor }

// Status derives the liability state from its balance.
func (l Liability) Status() LiabilityStatus {
	switch {
	case l.AmountPaidMinor <= 0:
		return LiabilityStatusNotPaid
	case l.AmountPaidMinor < l.OriginalAmountMinor:
		return LiabilityStatusPartiallyPaid
	default:
		return LiabilityStatusPaid
	}
}

// Reconciliation is a session comparing an account's book balance against the
// bank-reported balance. BookBalanceMinor tracks the account's live balance;
// DifferenceMinor = BankBalanceMinor - BookBalanceMinor.
type Reconciliation struct {
	ID               uuid.UUID
	OrgID            uuid.UUID
	AccountID        uuid.UUID
	Date             time.Time
	Notes            string
	BookBalanceMinor int64
	BankBalanceMinor int64
	DifferenceMinor  int64
	Status           ReconciliationStatus
	// Reconciled holds the IDs of postings matched in this session.
	Reconciled map[uuid.UUID]struct{}
	// Added holds the IDs of postings created during this session. Their ledger
	// effect persists when the session is deleted.
	Added map[uuid.UUID]struct{}
}

// CloneSets returns deep copies of the membership sets so callers can mutate
// a working copy without aliasing stored state.
func (r Reconciliation) CloneSets() (reconciled, added map[uuid.UUID]struct{}) {
	reconciled = make(map[uuid.UUID]struct{}, len(r.Reconciled))
	for id := range r.Reconciled {
		reconciled[id] = struct{}{}
	}
	added = make(map[uuid.UUID]struct{}, len(r.Added))
	for id := range r.Added {
		added[id] = struct{}{}
	}
	return reconciled, added
}

// Transfer moves money between two accounts of the same organization. It is
// exactly one debit posting on the source and one credit posting on the
// destination, created together or not at all.
type Transfer struct {
	ID              uuid.UUID
	OrgID           uuid.UUID
	FromAccountID   uuid.UUID
	ToAccountID     uuid.UUID
	Amount          int64 // minor units
	Date            time.Time
	Memo            string
	DebitPostingID  uuid.UUID
	CreditPostingID uuid.UUID
}

// Category labels postings and liabilities. System categories are the seeded
// defaults and are immutable and non-deletable.
type Category struct {
	ID    uuid.UUID
	OrgID uuid.UUID
	Name  string
	Slug  string
	Type  CategoryType
	// TrackMembers applies to income categories that attribute amounts to members.
	TrackMembers bool
	System       bool
}

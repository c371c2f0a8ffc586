package finance

import "github.com/google/uuid"

// PostingFilter narrows posting scans. Nil fields match everything.
type PostingFilter struct {
	AccountID        *uuid.UUID
	LiabilityID      *uuid.UUID
	ReconciliationID *uuid.UUID
	Kind             *PostingKind
	Reconciled       *bool
	// IncludeReversed includes reversed postings; by default they are skipped
	// since their ledger effect has been undone.
	IncludeReversed bool
}

// Match reports whether the posting satisfies the filter.
func (f PostingFilter) Match(p Posting) bool {
	if !f.IncludeReversed && p.Reversed {
		return false
	}
	if f.AccountID != nil && p.AccountID != *f.AccountID {
		return false
	}
	if f.LiabilityID != nil && (p.LiabilityID == nil || *p.LiabilityID != *f.LiabilityID) {
		return false
	}
	if f.ReconciliationID != nil && (p.ReconciliationID == nil || *p.ReconciliationID != *f.ReconciliationID) {
		return false
	}
	if f.Kind != nil && p.Kind != *f.Kind {
		return false
	}
	if f.Reconciled != nil && p.Reconciled != *f.Reconciled {
		return false
	}
	return true
}

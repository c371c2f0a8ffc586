package errs

import "errors"

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound = errors.New("not_found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid")
	// ErrUnprocessable is used for semantic validation failures (HTTP 422)
	ErrUnprocessable = errors.New("unprocessable")
	// ErrInsufficientFunds indicates a debit would drive an account balance negative.
	// The store is the final authority and re-checks at commit time.
	ErrInsufficientFunds = errors.New("insufficient_funds")
	// ErrOverpayment indicates a liability payment would exceed the original amount.
	ErrOverpayment = errors.New("overpayment")
	// ErrPartialCommit indicates a multi-step recipe failed after at least one step
	// committed and rollback did not fully restore prior state.
	ErrPartialCommit = errors.New("partial_commit")
	// ErrReconciledPosting indicates an attempt to edit or delete a posting that has
	// been matched in a reconciliation.
	ErrReconciledPosting = errors.New("posting_reconciled")
	// ErrSystemCategory indicates a default category cannot be modified or deleted.
	ErrSystemCategory = errors.New("system_category")
	// ErrImmutable indicates an attempt to change immutable or derived fields
	ErrImmutable = errors.New("immutable")
)

package v1

import (
	"errors"
	"net/http"

	"github.com/folahanmi/orgledger/internal/errs"
	"github.com/folahanmi/orgledger/internal/service/orchestrator"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	// Committed lists the steps left in place when a multi-step write could
	// not be rolled back. Present only for partial_commit errors.
	Committed []string `json:"committed_steps,omitempty"`
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) { writeErr(w, http.StatusBadRequest, msg, "") }
func notFound(w http.ResponseWriter)               { writeErr(w, http.StatusNotFound, "not_found", "not_found") }

// writeDomainErr maps domain sentinels onto HTTP statuses and stable codes.
func writeDomainErr(w http.ResponseWriter, err error) {
	var pce *orchestrator.PartialCommitError
	if errors.As(err, &pce) {
		toJSON(w, http.StatusInternalServerError, errorResponse{
			Error:     pce.Error(),
			Code:      "partial_commit",
			Committed: pce.Committed,
		})
		return
	}
	switch {
	case errors.Is(err, errs.ErrNotFound):
		notFound(w)
	case errors.Is(err, errs.ErrInsufficientFunds):
		writeErr(w, http.StatusUnprocessableEntity, err.Error(), "insufficient_funds")
	case errors.Is(err, errs.ErrOverpayment):
		writeErr(w, http.StatusUnprocessableEntity, err.Error(), "overpayment")
	case errors.Is(err, errs.ErrReconciledPosting):
		writeErr(w, http.StatusConflict, err.Error(), "posting_reconciled")
	case errors.Is(err, errs.ErrSystemCategory):
		writeErr(w, http.StatusConflict, err.Error(), "system_category")
	case errors.Is(err, errs.ErrImmutable):
		writeErr(w, http.StatusUnprocessableEntity, err.Error(), "immutable_field")
	case errors.Is(err, errs.ErrConflict):
		writeErr(w, http.StatusConflict, err.Error(), "conflict")
	case errors.Is(err, errs.ErrInvalid):
		writeErr(w, http.StatusBadRequest, err.Error(), "invalid_request")
	case errors.Is(err, errs.ErrUnprocessable):
		writeErr(w, http.StatusUnprocessableEntity, err.Error(), "validation_error")
	case errors.Is(err, errs.ErrPartialCommit):
		writeErr(w, http.StatusInternalServerError, err.Error(), "partial_commit")
	default:
		writeErr(w, http.StatusInternalServerError, "internal error", "internal")
	}
}

package v1

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type ctxKey string

const (
	ctxKeyPostAccount        ctxKey = "validatedPostAccount"
	ctxKeyPostPosting        ctxKey = "validatedPostPosting"
	ctxKeyPostLiability      ctxKey = "validatedPostLiability"
	ctxKeyPostTransfer       ctxKey = "validatedPostTransfer"
	ctxKeyPostReconciliation ctxKey = "validatedPostReconciliation"
	ctxKeyAddEntry           ctxKey = "validatedAddEntry"
	ctxKeyPayment            ctxKey = "validatedPayment"
	ctxKeyPostCategory       ctxKey = "validatedPostCategory"
	ctxKeyOrgID              ctxKey = "orgID"
)

// validateBody decodes the JSON body into T, runs struct validation, and stores
// the result in the request context under key for the handler to pick up.
func validateBody[T any](v *validator.Validate, key ctxKey) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requireJSON(w, r) {
				return
			}
			var req T
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				badRequest(w, "invalid JSON: "+err.Error())
				return
			}
			if err := v.Struct(req); err != nil {
				if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
					writeErr(w, http.StatusUnprocessableEntity, verrs[0].Error(), "validation_error")
					return
				}
				writeErr(w, http.StatusUnprocessableEntity, err.Error(), "validation_error")
				return
			}
			ctx := context.WithValue(r.Context(), key, req)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireOrgID parses the org_id query param on read endpoints and stores it in
// the request context.
func requireOrgID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("org_id")
		if raw == "" {
			badRequest(w, "org_id is required")
			return
		}
		orgID, err := uuid.Parse(raw)
		if err != nil {
			badRequest(w, "invalid org_id")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyOrgID, orgID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func orgIDFrom(r *http.Request) uuid.UUID {
	id, _ := r.Context().Value(ctxKeyOrgID).(uuid.UUID)
	return id
}

func bodyFrom[T any](r *http.Request, key ctxKey) T {
	v, _ := r.Context().Value(key).(T)
	return v
}

// idempotencyKey reads the caller-supplied replay key, if any.
func idempotencyKey(r *http.Request) string {
	return r.Header.Get("Idempotency-Key")
}

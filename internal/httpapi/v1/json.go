package v1

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/govalues/money"
)

// toJSON writes a JSON response with status code.
func toJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeStrict decodes the request body rejecting unknown fields.
func decodeStrict(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// requireJSON ensures the request has Content-Type application/json (optionally
// with params). Writes 415 and returns false otherwise.
func requireJSON(w http.ResponseWriter, r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		writeErr(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "unsupported_media_type")
		return false
	}
	mime := strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
	if mime != "application/json" {
		writeErr(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "unsupported_media_type")
		return false
	}
	return true
}

// formatMinor renders minor units as a display amount in the given currency.
// An unknown currency falls back to the empty string rather than failing the
// response; the minor-unit field is always present.
func formatMinor(currency string, minor int64) string {
	amt, err := money.NewAmountFromMinorUnits(currency, minor)
	if err != nil {
		return ""
	}
	return amt.String()
}

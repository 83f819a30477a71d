package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"

	"ConciliaMayorista/internal/registry"
)

// accountFromRequest pulls the reseller account out of the query string or,
// for JSON bodies, out of the payload. The body is restored so the handler
// can read it again.
func accountFromRequest(r *http.Request) string {
	if account := r.URL.Query().Get("account"); account != "" {
		return account
	}
	if r.Method == http.MethodPost || r.Method == http.MethodPut {
		if r.Header.Get("Content-Type") == "application/json" {
			bodyBytes, err := io.ReadAll(r.Body)
			if err == nil {
				r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
				var bodyMap map[string]interface{}
				if err := json.Unmarshal(bodyBytes, &bodyMap); err == nil {
					if account, ok := bodyMap["account"].(string); ok {
						return account
					}
				}
			}
		} else {
			return r.FormValue("account")
		}
	}
	return ""
}

// RequireAccountKey gates a handler behind the per-account access key
// (the password-per-sheet check of the old dashboard). The key travels in
// the X-Access-Key header.
func RequireAccountKey(db *sql.DB, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account := accountFromRequest(r)
		if account == "" {
			RespondWithError(w, http.StatusBadRequest, "account required")
			return
		}
		ok, err := registry.NewStore(db).AccessKeyValid(r.Context(), account, r.Header.Get("X-Access-Key"))
		if err != nil {
			RespondWithError(w, http.StatusInternalServerError, "failed to verify access key")
			return
		}
		if !ok {
			RespondWithError(w, http.StatusUnauthorized, "invalid access key for account "+account)
			return
		}
		next(w, r)
	}
}

package registry

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"ConciliaMayorista/api"
	"ConciliaMayorista/internal/billing"
	"ConciliaMayorista/internal/registry"
)

// ListClients returns every client billing profile.
func ListClients(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profiles, err := registry.NewStore(db).ListProfiles(r.Context())
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		api.RespondWithPayload(w, true, "", profiles)
	}
}

// UpsertClient creates or updates one client billing profile. The
// identification is the join key income records point at, so it is required.
func UpsertClient(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p billing.ClientBillingProfile
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		if p.Identification == "" {
			api.RespondWithError(w, http.StatusBadRequest, "identification required")
			return
		}
		if err := registry.NewStore(db).UpsertProfile(r.Context(), p); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		api.RespondWithResult(w, true, "")
	}
}

package billing

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"

	"ConciliaMayorista/api"
	"ConciliaMayorista/internal/billing"
	"ConciliaMayorista/internal/runner"
)

// RunBilling triggers one billing run for an account and returns the run
// report. A numbering-ceiling breach surfaces as an aborted report; the
// records completed before the abort stay committed.
func RunBilling(pool *pgxpool.Pool, db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Account string `json:"account"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Account == "" {
			api.RespondWithError(w, http.StatusBadRequest, "account required in body")
			return
		}

		report, err := runner.New(pool, db).RunAccount(r.Context(), req.Account)
		if err != nil && !errors.Is(err, billing.ErrNumberCeiling) && !report.Aborted {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		api.RespondWithPayload(w, !report.Aborted, report.AbortReason, report)
	}
}

// ListRuns returns recent run summaries for an account, newest first.
func ListRuns(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account := r.URL.Query().Get("account")
		if account == "" {
			api.RespondWithError(w, http.StatusBadRequest, "account required")
			return
		}
		limit := 0
		if s := r.URL.Query().Get("limit"); s != "" {
			limit, _ = strconv.Atoi(s)
		}
		runs, err := billing.NewRunHistory(pool).ListRuns(r.Context(), account, limit)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		api.RespondWithPayload(w, true, "", runs)
	}
}

// RunErrors returns the persisted failure log of one run.
func RunErrors(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := mux.Vars(r)["id"]
		if runID == "" {
			api.RespondWithError(w, http.StatusBadRequest, "run id required")
			return
		}
		failures, err := billing.NewRunHistory(pool).ListFailures(r.Context(), runID)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		api.RespondWithPayload(w, true, "", failures)
	}
}

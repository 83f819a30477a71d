package ledger

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"ConciliaMayorista/api"
	"ConciliaMayorista/api/utils"
	"ConciliaMayorista/internal/ledger"
)

// ListIncomes returns one page of an account's canonical ledger rows, all
// movement types included.
func ListIncomes(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		account := r.URL.Query().Get("account")
		if account == "" {
			api.RespondWithError(w, http.StatusBadRequest, "account required")
			return
		}
		params, err := utils.ExtractPagination(r)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		total, err := utils.CountTotal(ctx, pool,
			`SELECT COUNT(*) FROM recon.incomes WHERE account = $1`, account)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		params.SetPaginationStats(total)

		records, err := ledger.NewStore(pool).ListPageByAccount(ctx, account, params.Limit, params.Offset)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		api.RespondWithPayload(w, true, "", map[string]interface{}{
			"pagination": params,
			"records":    records,
		})
	}
}

type summaryRow struct {
	Tipo   string          `json:"tipo"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// AccountSummary aggregates one account's movements the way the old
// dashboard presented them: totals per movement type, open incomes awaiting
// an invoice, and the last upload date.
func AccountSummary(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		account := r.URL.Query().Get("account")
		if account == "" {
			api.RespondWithError(w, http.StatusBadRequest, "account required")
			return
		}

		rows, err := pool.Query(ctx, `
			SELECT tipo, COUNT(*), COALESCE(SUM(gross_amount), 0)::text
			FROM recon.incomes
			WHERE account = $1
			GROUP BY tipo
			ORDER BY tipo`, account)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "failed to aggregate movements: "+err.Error())
			return
		}
		defer rows.Close()

		var byTipo []summaryRow
		for rows.Next() {
			var row summaryRow
			var amount string
			if err := rows.Scan(&row.Tipo, &row.Count, &amount); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, "failed to scan summary: "+err.Error())
				return
			}
			row.Amount, err = decimal.NewFromString(amount)
			if err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, "bad summary amount: "+err.Error())
				return
			}
			byTipo = append(byTipo, row)
		}
		if err := rows.Err(); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}

		var pending int
		var lastUpload *time.Time
		err = pool.QueryRow(ctx, `
			SELECT COUNT(*) FILTER (WHERE tipo = 'Ingreso'
			                          AND COALESCE(client_id, '') <> ''
			                          AND COALESCE(invoice_number, '') = ''
			                          AND gross_amount >= 0),
			       MAX(uploaded_at)
			FROM recon.incomes
			WHERE account = $1`, account).Scan(&pending, &lastUpload)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "failed to compute pending count: "+err.Error())
			return
		}

		api.RespondWithPayload(w, true, "", map[string]interface{}{
			"account":          account,
			"by_tipo":          byTipo,
			"pending_invoices": pending,
			"last_upload":      lastUpload,
		})
	}
}

package billing

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RunHistory persists run summaries and per-record failures to Postgres so
// operators can review past runs from the report endpoints.
type RunHistory struct {
	pool *pgxpool.Pool
}

func NewRunHistory(pool *pgxpool.Pool) *RunHistory {
	return &RunHistory{pool: pool}
}

func (h *RunHistory) SaveRun(ctx context.Context, report RunReport) error {
	_, err := h.pool.Exec(ctx, `
		INSERT INTO recon.invoice_runs
			(run_id, account, started_at, finished_at, succeeded, failed, aborted, abort_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		report.RunID, report.Account, report.StartedAt, report.FinishedAt,
		report.Succeeded, report.Failed, report.Aborted, report.AbortReason)
	if err != nil {
		return fmt.Errorf("failed to insert invoice run %s: %w", report.RunID, err)
	}
	return nil
}

func (h *RunHistory) SaveFailures(ctx context.Context, runID string, failures []RecordFailure) error {
	rows := make([][]interface{}, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, []interface{}{runID, f.IncomeID, string(f.Category), f.Reason, f.At})
	}
	_, err := h.pool.CopyFrom(ctx,
		pgx.Identifier{"recon", "invoice_run_errors"},
		[]string{"run_id", "income_id", "category", "reason", "created_at"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to insert run errors for %s: %w", runID, err)
	}
	return nil
}

// ListRuns returns recent run summaries for an account, newest first.
func (h *RunHistory) ListRuns(ctx context.Context, account string, limit int) ([]RunReport, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.pool.Query(ctx, `
		SELECT run_id, account, started_at, finished_at, succeeded, failed, aborted, COALESCE(abort_reason, '')
		FROM recon.invoice_runs
		WHERE account = $1
		ORDER BY started_at DESC
		LIMIT $2`, account, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice runs: %w", err)
	}
	defer rows.Close()

	var out []RunReport
	for rows.Next() {
		var r RunReport
		if err := rows.Scan(&r.RunID, &r.Account, &r.StartedAt, &r.FinishedAt,
			&r.Succeeded, &r.Failed, &r.Aborted, &r.AbortReason); err != nil {
			return nil, fmt.Errorf("failed to scan invoice run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListFailures returns the persisted failures of one run.
func (h *RunHistory) ListFailures(ctx context.Context, runID string) ([]RecordFailure, error) {
	rows, err := h.pool.Query(ctx, `
		SELECT income_id, category, reason, created_at
		FROM recon.invoice_run_errors
		WHERE run_id = $1
		ORDER BY created_at, income_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run errors: %w", err)
	}
	defer rows.Close()

	var out []RecordFailure
	for rows.Next() {
		var f RecordFailure
		var category string
		if err := rows.Scan(&f.IncomeID, &category, &f.Reason, &f.At); err != nil {
			return nil, fmt.Errorf("failed to scan run error: %w", err)
		}
		f.Category = FailureCategory(category)
		out = append(out, f)
	}
	return out, rows.Err()
}

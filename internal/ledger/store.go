// Package ledger is the income-record store: the canonical Postgres table
// fed by workbook ingestion, plus the write-back path that mirrors assigned
// invoice numbers into the shared reseller workbook.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ConciliaMayorista/internal/billing"
)

// Store reads and mutates canonical income records. It satisfies
// billing.IncomeStore.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ListByAccount returns every income record of one account, ordered by
// income id. Egreso and Total movement rows live in the same table for the
// dashboard aggregates but are not income records.
func (s *Store) ListByAccount(ctx context.Context, account string) ([]billing.IncomeRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT income_id, account, COALESCE(client_id, ''), COALESCE(invoice_number, ''),
		       gross_amount, COALESCE(reference_text, ''), source_partition, fecha, uploaded_at
		FROM recon.incomes
		WHERE account = $1 AND tipo = 'Ingreso'
		ORDER BY income_id`, account)
	if err != nil {
		return nil, fmt.Errorf("failed to query incomes for %s: %w", account, err)
	}
	defer rows.Close()

	var out []billing.IncomeRecord
	for rows.Next() {
		var rec billing.IncomeRecord
		if err := rows.Scan(&rec.IncomeID, &rec.Account, &rec.ClientID, &rec.InvoiceNumber,
			&rec.GrossAmount, &rec.ReferenceText, &rec.SourcePartition, &rec.Fecha, &rec.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan income record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListPageByAccount is the paginated variant backing the listing endpoint.
// Unlike ListByAccount it returns every movement type, Egreso and Total rows
// included, because the listing mirrors the raw workbook.
func (s *Store) ListPageByAccount(ctx context.Context, account string, limit, offset int) ([]billing.IncomeRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT income_id, account, COALESCE(client_id, ''), COALESCE(invoice_number, ''),
		       gross_amount, COALESCE(reference_text, ''), source_partition, fecha, uploaded_at
		FROM recon.incomes
		WHERE account = $1
		ORDER BY income_id
		LIMIT $2 OFFSET $3`, account, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query incomes page for %s: %w", account, err)
	}
	defer rows.Close()

	var out []billing.IncomeRecord
	for rows.Next() {
		var rec billing.IncomeRecord
		if err := rows.Scan(&rec.IncomeID, &rec.Account, &rec.ClientID, &rec.InvoiceNumber,
			&rec.GrossAmount, &rec.ReferenceText, &rec.SourcePartition, &rec.Fecha, &rec.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan income record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SetInvoiceNumber closes one income record with its assigned number. The
// update is idempotent: re-applying the same number is a no-op, so a crashed
// and retried run never double-applies. A different number already on the
// record is refused.
func (s *Store) SetInvoiceNumber(ctx context.Context, incomeID, invoiceNumber string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE recon.incomes
		SET invoice_number = $2
		WHERE income_id = $1
		  AND (invoice_number IS NULL OR invoice_number = '' OR invoice_number = $2)`,
		incomeID, invoiceNumber)
	if err != nil {
		return fmt.Errorf("failed to write back invoice number for %s: %w", incomeID, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var existing string
	err = s.pool.QueryRow(ctx,
		`SELECT COALESCE(invoice_number, '') FROM recon.incomes WHERE income_id = $1`,
		incomeID).Scan(&existing)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("income record %s not found for write-back", incomeID)
	}
	if err != nil {
		return fmt.Errorf("failed to verify write-back for %s: %w", incomeID, err)
	}
	return fmt.Errorf("income record %s already carries invoice %s, refusing to overwrite with %s",
		incomeID, existing, invoiceNumber)
}

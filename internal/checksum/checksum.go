// Package checksum deduplicates ledger uploads. Resellers re-send the same
// workbook export more often than not; a file whose content digest was
// already ingested for the account is skipped instead of re-staged.
package checksum

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Digest returns the hex sha256 of an uploaded file's content.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Registry remembers which file digests have been ingested per account.
type Registry struct {
	pool *pgxpool.Pool
}

func NewRegistry(pool *pgxpool.Pool) *Registry {
	return &Registry{pool: pool}
}

func (r *Registry) AlreadyIngested(ctx context.Context, account, digest string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM recon.ingested_files WHERE account = $1 AND digest = $2)`,
		account, digest).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("digest lookup failed: %w", err)
	}
	return exists, nil
}

func (r *Registry) Record(ctx context.Context, account, digest, filename string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO recon.ingested_files (account, digest, filename, ingested_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account, digest) DO NOTHING`,
		account, digest, filename, time.Now())
	if err != nil {
		return fmt.Errorf("failed to record ingested file %s: %w", filename, err)
	}
	return nil
}

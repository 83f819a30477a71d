package ledger

import (
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"

	"ConciliaMayorista/internal/serviceiface"
)

type LedgerService struct {
	config map[string]interface{}
	pool   *pgxpool.Pool
	db     *sql.DB
}

func NewLedgerService(cfg map[string]interface{}, pool *pgxpool.Pool, db *sql.DB) serviceiface.Service {
	return &LedgerService{config: cfg, pool: pool, db: db}
}

func (s *LedgerService) Name() string {
	return "ledger"
}

func (s *LedgerService) Start() error {
	go StartLedgerService(s.pool, s.db)
	return nil
}

func (s *LedgerService) Stop() error {
	// Implement stop logic if needed
	return nil
}

package billing

import (
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"

	"ConciliaMayorista/internal/serviceiface"
)

type BillingService struct {
	config map[string]interface{}
	pool   *pgxpool.Pool
	db     *sql.DB
}

func NewBillingService(cfg map[string]interface{}, pool *pgxpool.Pool, db *sql.DB) serviceiface.Service {
	return &BillingService{config: cfg, pool: pool, db: db}
}

func (s *BillingService) Name() string {
	return "billing"
}

func (s *BillingService) Start() error {
	go StartBillingService(s.pool, s.db)
	return nil
}

func (s *BillingService) Stop() error {
	// Implement stop logic if needed
	return nil
}

// Package runner assembles one billing run from its parts: account config
// and profiles from the registry, incomes from the canonical ledger, a fresh
// authority client per run, and the workbook mirror afterwards.
package runner

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"ConciliaMayorista/internal/authority"
	"ConciliaMayorista/internal/billing"
	"ConciliaMayorista/internal/config"
	"ConciliaMayorista/internal/ledger"
	"ConciliaMayorista/internal/logger"
	"ConciliaMayorista/internal/registry"
)

type Runner struct {
	Pool *pgxpool.Pool
	DB   *sql.DB
}

func New(pool *pgxpool.Pool, db *sql.DB) *Runner {
	return &Runner{Pool: pool, DB: db}
}

// RunAccount executes one end-to-end billing pass for the account and
// mirrors the accepted numbers into the shared workbook. The authority
// client lives exactly as long as the run.
func (r *Runner) RunAccount(ctx context.Context, account string) (billing.RunReport, error) {
	reg := registry.NewStore(r.DB)
	cfg, err := reg.AccountConfig(ctx, account)
	if err != nil {
		return billing.RunReport{}, err
	}

	client := authority.NewClient(authority.ConfigFromEnv())
	orch := &billing.Orchestrator{
		Store:     ledger.NewStore(r.Pool),
		Profiles:  reg,
		Authority: client,
		Sink:      billing.NewRunHistory(r.Pool),
		Config:    cfg,
		Denylist:  billing.NewDenylist(config.DefaultReferenceDenylist),
		Allocator: billing.AllocatorConfig{
			Ceiling:      cfg.NumberCeiling,
			MaxAttempts:  config.DefaultMaxAttempts,
			SeedPageSize: config.DefaultSeedPageSize,
			SeedPatience: config.DefaultSeedPatience,
		},
	}

	report, runErr := orch.Run(ctx)
	r.mirrorWorkbook(ctx, report)
	return report, runErr
}

// mirrorWorkbook pushes accepted assignments into the reseller workbook.
// The canonical ledger already holds the numbers, so a mirror failure is
// logged for follow-up, never escalated.
func (r *Runner) mirrorWorkbook(ctx context.Context, report billing.RunReport) {
	if len(report.Assignments) == 0 {
		return
	}
	remotePath := os.Getenv("LEDGER_WORKBOOK_PATH")
	if remotePath == "" {
		return
	}
	blob, err := ledger.NewSupabaseBlobFromEnv()
	if err != nil {
		r.audit(fmt.Sprintf("[Runner][ERROR] run %s: workbook mirror skipped: %v", report.RunID, err))
		return
	}
	wb := &ledger.Workbook{Blob: blob, RemotePath: remotePath}
	applied, err := wb.ApplyAssignments(ctx, report.Assignments)
	if err != nil {
		r.audit(fmt.Sprintf("[Runner][ERROR] run %s: workbook mirror failed after %d cells: %v", report.RunID, applied, err))
		return
	}
	r.audit(fmt.Sprintf("[Runner] run %s: mirrored %d invoice numbers into %s", report.RunID, applied, remotePath))
}

func (r *Runner) audit(msg string) {
	if logger.GlobalLogger != nil {
		logger.GlobalLogger.LogAudit(msg)
		return
	}
	log.Println(msg)
}

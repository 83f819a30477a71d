// Package jobs runs the scheduled billing passes.
package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"

	"ConciliaMayorista/internal/config"
	"ConciliaMayorista/internal/logger"
	"ConciliaMayorista/internal/registry"
	"ConciliaMayorista/internal/runner"
	"ConciliaMayorista/internal/serviceiface"
)

// BillingRunConfig holds the scheduler settings.
type BillingRunConfig struct {
	Schedule string
	TimeZone string
}

func NewDefaultBillingRunConfig() BillingRunConfig {
	return BillingRunConfig{
		Schedule: config.DefaultRunSchedule,
		TimeZone: config.DefaultTimeZone,
	}
}

type CronService struct {
	config map[string]interface{}
	pool   *pgxpool.Pool
	db     *sql.DB
	cron   *cron.Cron
}

func NewCronService(cfg map[string]interface{}, pool *pgxpool.Pool, db *sql.DB) serviceiface.Service {
	return &CronService{config: cfg, pool: pool, db: db}
}

func (s *CronService) Name() string {
	return "cron"
}

func (s *CronService) Start() error {
	runCfg := NewDefaultBillingRunConfig()
	if s.config != nil {
		if schedule, ok := s.config["run_schedule"].(string); ok && schedule != "" {
			runCfg.Schedule = schedule
		}
		if tz, ok := s.config["time_zone"].(string); ok && tz != "" {
			runCfg.TimeZone = tz
		}
	}

	if err := s.scheduleBillingRuns(runCfg); err != nil {
		return fmt.Errorf("failed to start billing run scheduler: %v", err)
	}
	if logger.GlobalLogger != nil {
		logger.GlobalLogger.LogAudit("Cron service started — billing runs scheduled " + runCfg.Schedule)
	}
	log.Println("Cron service started — billing runs scheduled", runCfg.Schedule)
	return nil
}

func (s *CronService) scheduleBillingRuns(cfg BillingRunConfig) error {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return fmt.Errorf("invalid time zone %q: %w", cfg.TimeZone, err)
	}
	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(cfg.Schedule, func() { s.runAll() }); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
	}
	c.Start()
	s.cron = c
	return nil
}

// runAll bills every auto-run account, one at a time. Runs never overlap
// within a tick; the invoice-number sequence tolerates no concurrency.
func (s *CronService) runAll() {
	ctx := context.Background()
	accounts, err := registry.NewStore(s.db).AutoRunAccounts(ctx)
	if err != nil {
		log.Printf("[Cron][ERROR] failed to list auto-run accounts: %v", err)
		return
	}
	run := runner.New(s.pool, s.db)
	for _, account := range accounts {
		report, err := run.RunAccount(ctx, account)
		if err != nil {
			log.Printf("[Cron][ERROR] billing run for %s stopped: %v", account, err)
			continue
		}
		log.Printf("[Cron] billing run %s for %s: %d succeeded, %d failed",
			report.RunID, account, report.Succeeded, report.Failed)
	}
}

func (s *CronService) Stop() error {
	if s.cron != nil {
		s.cron.Stop()
	}
	log.Println("Cron service stopped.")
	return nil
}

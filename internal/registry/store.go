// Package registry holds the client billing profiles and the per-account
// billing configuration.
package registry

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"ConciliaMayorista/internal/billing"
	"ConciliaMayorista/internal/config"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ProfileByIdentification satisfies billing.ProfileSource.
func (s *Store) ProfileByIdentification(ctx context.Context, identification string) (billing.ClientBillingProfile, error) {
	var p billing.ClientBillingProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT identification, first_name, last_name, address,
		       city_code, state_code, country_code, phone, email
		FROM recon.client_profiles
		WHERE identification = $1`, identification).Scan(
		&p.Identification, &p.FirstName, &p.LastName, &p.Address,
		&p.CityCode, &p.StateCode, &p.CountryCode, &p.Phone, &p.Email)
	if err == sql.ErrNoRows {
		return billing.ClientBillingProfile{}, billing.ErrProfileNotFound
	}
	if err != nil {
		return billing.ClientBillingProfile{}, fmt.Errorf("failed to load profile %s: %w", identification, err)
	}
	return p, nil
}

// ListProfiles returns every registered client billing profile.
func (s *Store) ListProfiles(ctx context.Context) ([]billing.ClientBillingProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identification, first_name, last_name, address,
		       city_code, state_code, country_code, phone, email
		FROM recon.client_profiles
		ORDER BY identification`)
	if err != nil {
		return nil, fmt.Errorf("failed to query client profiles: %w", err)
	}
	defer rows.Close()

	var out []billing.ClientBillingProfile
	for rows.Next() {
		var p billing.ClientBillingProfile
		if err := rows.Scan(&p.Identification, &p.FirstName, &p.LastName, &p.Address,
			&p.CityCode, &p.StateCode, &p.CountryCode, &p.Phone, &p.Email); err != nil {
			return nil, fmt.Errorf("failed to scan client profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertProfile creates or replaces one client billing profile.
func (s *Store) UpsertProfile(ctx context.Context, p billing.ClientBillingProfile) error {
	if p.Identification == "" {
		return fmt.Errorf("client profile requires an identification")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recon.client_profiles
			(identification, first_name, last_name, address, city_code, state_code, country_code, phone, email)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (identification) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			address = EXCLUDED.address,
			city_code = EXCLUDED.city_code,
			state_code = EXCLUDED.state_code,
			country_code = EXCLUDED.country_code,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email`,
		p.Identification, p.FirstName, p.LastName, p.Address,
		p.CityCode, p.StateCode, p.CountryCode, p.Phone, p.Email)
	if err != nil {
		return fmt.Errorf("failed to upsert profile %s: %w", p.Identification, err)
	}
	return nil
}

// AccountConfig loads the billing configuration for one reseller account,
// falling back to package defaults for anything unset.
func (s *Store) AccountConfig(ctx context.Context, account string) (billing.AccountConfig, error) {
	cfg := billing.AccountConfig{Account: account, Split: billing.DefaultSplitPolicy()}
	var f1, f2, f3 sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT document_type_id, seller_id, payment_means_id, tax_id,
		       base_item_code, fee_item_code, observations, number_ceiling,
		       access_key, auto_run, pass_through_factor, commission_rate, tax_rate
		FROM recon.account_billing_config
		WHERE account = $1`, account).Scan(
		&cfg.DocumentTypeID, &cfg.SellerID, &cfg.PaymentMeansID, &cfg.TaxID,
		&cfg.BaseItemCode, &cfg.FeeItemCode, &cfg.Observations, &cfg.NumberCeiling,
		&cfg.AccessKey, &cfg.AutoRun, &f1, &f2, &f3)
	if err == sql.ErrNoRows {
		return cfg, fmt.Errorf("no billing configuration for account %s", account)
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to load billing config for %s: %w", account, err)
	}
	if cfg.NumberCeiling <= 0 {
		cfg.NumberCeiling = config.DefaultNumberCeiling
	}
	if f1.Valid && f1.String != "" {
		if d, err := decimal.NewFromString(f1.String); err == nil {
			cfg.Split.PassThroughFactor = d
		}
	}
	if f2.Valid && f2.String != "" {
		if d, err := decimal.NewFromString(f2.String); err == nil {
			cfg.Split.CommissionRate = d
		}
	}
	if f3.Valid && f3.String != "" {
		if d, err := decimal.NewFromString(f3.String); err == nil {
			cfg.Split.TaxRate = d
		}
	}
	return cfg, nil
}

// AutoRunAccounts lists the accounts the cron scheduler should bill.
func (s *Store) AutoRunAccounts(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT account FROM recon.account_billing_config WHERE auto_run ORDER BY account`)
	if err != nil {
		return nil, fmt.Errorf("failed to query auto-run accounts: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AccessKeyValid checks the per-account access key the original
// password-gated views used. Empty configured key means the gate is open.
func (s *Store) AccessKeyValid(ctx context.Context, account, key string) (bool, error) {
	var configured string
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(access_key, '') FROM recon.account_billing_config WHERE account = $1`,
		account).Scan(&configured)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check access key for %s: %w", account, err)
	}
	return configured == "" || configured == key, nil
}

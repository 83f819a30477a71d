package registry

import (
	"database/sql"

	"ConciliaMayorista/internal/serviceiface"
)

type RegistryService struct {
	config map[string]interface{}
	db     *sql.DB
}

func NewRegistryService(cfg map[string]interface{}, db *sql.DB) serviceiface.Service {
	return &RegistryService{config: cfg, db: db}
}

func (s *RegistryService) Name() string {
	return "registry"
}

func (s *RegistryService) Start() error {
	go StartRegistryService(s.db)
	return nil
}

func (s *RegistryService) Stop() error {
	// Implement stop logic if needed
	return nil
}

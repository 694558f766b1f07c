package metaapp

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/michal-palko/smart-claimer/internal/claimer"
	"github.com/michal-palko/smart-claimer/internal/config"
)

// Store is a CRM holding resources that must be released.
type Store interface {
	claimer.CRM
	Ping(ctx context.Context) error
	Close() error
}

// NewCRMFromConfig creates the CRM selected by cfg.Type.
// An empty type means MetaApp is disabled and returns nil, nil.
func NewCRMFromConfig(cfg config.MetaAppConfig, logger claimer.Logger) (Store, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "memory":
		return NewMemoryCRM(), nil
	case "postgres":
		if cfg.Host == "" || cfg.User == "" || cfg.Name == "" {
			return nil, fmt.Errorf("metaapp host, user and name are required for postgres")
		}
		db, err := sql.Open("pgx", cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open metaapp database: %w", err)
		}
		crm, err := NewSQLCRM(db, Options{
			Schema:      cfg.Schema,
			ImportLimit: cfg.ImportLimit,
			Timeout:     cfg.Timeout.Duration,
		}, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		return crm, nil
	default:
		return nil, fmt.Errorf("unknown metaapp type: %s", cfg.Type)
	}
}

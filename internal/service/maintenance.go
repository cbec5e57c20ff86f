package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pmonasterio/vaquita/internal/database"
)

// MaintenanceService houses destructive ops actions for local use.
type MaintenanceService struct {
	DB *sql.DB
}

// Reset wipes all ledger data. The schema stays intact so the app keeps
// running; deletion order respects foreign keys.
func (s *MaintenanceService) Reset(ctx context.Context) error {
	if s.DB == nil {
		return fmt.Errorf("maintenance: db not configured")
	}
	if err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		tables := []string{
			"items",
			"invoices",
			"payments",
			"session_participants",
			"sessions",
			"users",
		}
		for _, t := range tables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
				return fmt.Errorf("reset table %s: %w", t, err)
			}
		}
		return nil
	}); err != nil {
		return err
	}
	_, _ = s.DB.ExecContext(ctx, "VACUUM")
	return nil
}

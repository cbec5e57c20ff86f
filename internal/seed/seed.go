// Package seed populates a demo ledger for local runs and the console.
package seed

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pmonasterio/vaquita/internal/database"
	"github.com/pmonasterio/vaquita/internal/database/repository"
	"github.com/pmonasterio/vaquita/internal/service"
)

// Demo creates three users, an active session owned by the first, and one
// receipt-derived invoice. Idempotent: a database that already has users
// is left untouched, so it is safe to run on every startup.
func Demo(ctx context.Context, db *sql.DB) error {
	existing, err := repository.NewUserRepo(db).List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	var owner repository.User
	err = database.WithTx(ctx, db, func(tx *sql.Tx) error {
		users := repository.NewUserRepo(tx)
		sessions := repository.NewSessionRepo(tx)

		demo := []repository.User{
			{Name: "Ana", PhoneNumber: "+56911111111"},
			{Name: "Bruno", PhoneNumber: "+56922222222"},
			{Name: "Carla", PhoneNumber: "+56933333333"},
		}
		created := make([]repository.User, 0, len(demo))
		for _, u := range demo {
			cu, err := users.Create(ctx, u.PhoneNumber, u.Name)
			if err != nil {
				return err
			}
			created = append(created, cu)
		}
		owner = created[0]

		session, err := sessions.Create(ctx, "Friday dinner", owner.ID, uuid.NewString())
		if err != nil {
			return err
		}
		for _, u := range created {
			if err := sessions.AddParticipant(ctx, session.ID, u.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	invoices := &service.InvoiceService{DB: db}
	_, _, err = invoices.CreateFromReceipt(ctx, owner.PhoneNumber, service.Receipt{
		Merchant:    "Pizzeria Bravo",
		TotalAmount: 46.00,
		Tip:         4.60,
		Items: []service.ReceiptLine{
			{Description: "margherita pizza", Amount: 12.00, Count: 2},
			{Description: "garlic bread", Amount: 6.00, Count: 1},
			{Description: "beer", Amount: 4.00, Count: 2},
			{Description: "tiramisu", Amount: 8.00, Count: 1},
		},
	})
	if err != nil {
		return err
	}

	slog.Info("seeded demo ledger", "owner", owner.Name)
	return nil
}

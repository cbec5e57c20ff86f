package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/pmonasterio/vaquita/internal/database"
	"github.com/pmonasterio/vaquita/internal/database/repository"
)

// Receipt is an OCR-derived bill. Parsing images is an external concern;
// by the time a receipt reaches this service it is already structured.
type Receipt struct {
	Merchant    string        `json:"merchant"`
	TotalAmount float64       `json:"total_amount"`
	Tip         float64       `json:"tip"`
	Items       []ReceiptLine `json:"items"`
}

// ReceiptLine is one line of a receipt. Amount is the unit price; Count
// lines expand into Count single-unit items.
type ReceiptLine struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Count       int     `json:"count"`
}

// InvoiceService turns receipts into invoices with per-unit item rows.
type InvoiceService struct {
	DB *sql.DB
}

// CreateFromReceipt books the receipt into the sender's active session.
// The receipt's tip is spread proportionally: each item carries the
// receipt-wide tip fraction and a total of unit price times (1 + tip).
// Runs as one unit of work; the invoice's pending amount is recomputed
// from the created rows so the unpaid-sum invariant holds from the start.
func (s *InvoiceService) CreateFromReceipt(ctx context.Context, senderPhone string, receipt Receipt) (repository.Invoice, []repository.Item, error) {
	if receipt.TotalAmount <= 0 {
		return repository.Invoice{}, nil, fmt.Errorf("receipt total must be positive, got %.2f", receipt.TotalAmount)
	}
	tipFraction := receipt.Tip / receipt.TotalAmount

	var (
		invoice repository.Invoice
		created []repository.Item
	)
	err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		users := repository.NewUserRepo(tx)
		sessions := repository.NewSessionRepo(tx)
		invoices := repository.NewInvoiceRepo(tx)
		items := repository.NewItemRepo(tx)

		user, err := users.GetByPhone(ctx, senderPhone)
		if err != nil {
			return fmt.Errorf("resolve sender %q: %w", senderPhone, err)
		}
		session, err := sessions.GetActiveByOwner(ctx, user.ID)
		if err != nil {
			return err
		}

		invoice, err = invoices.Create(ctx, repository.Invoice{
			SessionID:   session.ID,
			PayerID:     user.ID,
			Description: receipt.Merchant,
			Total:       receipt.TotalAmount,
		})
		if err != nil {
			return err
		}

		for _, line := range receipt.Items {
			for i := 0; i < line.Count; i++ {
				item, err := items.Create(ctx, repository.Item{
					InvoiceID:   invoice.ID,
					Description: line.Description,
					UnitPrice:   line.Amount,
					Tip:         tipFraction,
					Total:       line.Amount * (1 + tipFraction),
				})
				if err != nil {
					return err
				}
				created = append(created, item)
			}
		}

		invoice, err = invoices.RecomputePending(ctx, invoice.ID)
		return err
	})
	if err != nil {
		return repository.Invoice{}, nil, err
	}
	slog.Info("invoice created from receipt",
		"invoice_id", invoice.ID, "merchant", receipt.Merchant, "items", len(created))
	return invoice, created, nil
}

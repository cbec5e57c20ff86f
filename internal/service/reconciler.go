package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/pmonasterio/vaquita/internal/database"
	"github.com/pmonasterio/vaquita/internal/database/repository"
)

// remainderDescription names the synthetic item created for an underpaid
// reconciliation's outstanding balance.
const remainderDescription = "remainder of payment"

const paymentDescription = "item payment"

// ErrCrossInvoiceMatches is returned when a match result references items
// on more than one invoice. The result is a plain value anyone could
// construct, so the precondition is validated here against fetched rows.
var ErrCrossInvoiceMatches = errors.New("matched items span multiple invoices")

// ReconcileOutcome carries the rows a reconciliation produced, refreshed
// after commit.
type ReconcileOutcome struct {
	PaidItems []repository.Item
	Remainder *repository.Item
	Payment   *repository.Payment
	Invoice   *repository.Invoice
}

// Reconciler settles a match result against the ledger. Every call runs in
// a single write-intent transaction; reconciliations touching the same
// invoice additionally serialize on an in-process lock so a row read as
// unpaid cannot be settled twice.
type Reconciler struct {
	DB *sql.DB

	locks invoiceLocks
}

// Reconcile resolves the payer, creates one Payment, marks the matched
// items paid, creates a remainder item when underpaid, and recomputes the
// invoice's pending amount. Empty matches are a no-op after payer
// resolution. Any storage failure rolls the whole unit of work back.
func (r *Reconciler) Reconcile(ctx context.Context, match MatchResult, payerPhone string) (ReconcileOutcome, error) {
	var out ReconcileOutcome

	if len(match.MatchedItems) > 0 {
		// Lock key only; the authoritative reads happen inside the
		// transaction below.
		first, err := repository.NewItemRepo(r.DB).GetByID(ctx, match.MatchedItems[0].ItemID)
		if err != nil {
			return out, fmt.Errorf("first matched item %d: %w", match.MatchedItems[0].ItemID, err)
		}
		unlock := r.locks.lock(first.InvoiceID)
		defer unlock()
	}

	err := database.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		users := repository.NewUserRepo(tx)
		items := repository.NewItemRepo(tx)
		invoices := repository.NewInvoiceRepo(tx)
		payments := repository.NewPaymentRepo(tx)

		payer, err := users.GetByPhone(ctx, payerPhone)
		if err != nil {
			return fmt.Errorf("resolve payer %q: %w", payerPhone, err)
		}

		if len(match.MatchedItems) == 0 {
			slog.Warn("reconciler: no matched items to settle", "payer", payerPhone)
			return nil
		}

		first, err := items.GetByID(ctx, match.MatchedItems[0].ItemID)
		if err != nil {
			return fmt.Errorf("first matched item %d: %w", match.MatchedItems[0].ItemID, err)
		}
		invoice, err := invoices.GetByID(ctx, first.InvoiceID)
		if err != nil {
			return fmt.Errorf("invoice %d: %w", first.InvoiceID, err)
		}

		// One payment per reconciliation call, whatever the status.
		payment, err := payments.Create(ctx, repository.Payment{
			Reference:   uuid.NewString(),
			PayerID:     payer.ID,
			ReceiverID:  invoice.PayerID,
			Amount:      match.ActualAmount,
			Description: paymentDescription,
		})
		if err != nil {
			return err
		}

		var paid []repository.Item
		for _, mi := range match.MatchedItems {
			item, err := items.GetByID(ctx, mi.ItemID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					slog.Warn("reconciler: item missing, skipping", "item_id", mi.ItemID)
					continue
				}
				return err
			}
			if item.InvoiceID != invoice.ID {
				return fmt.Errorf("item %d belongs to invoice %d, expected %d: %w",
					item.ID, item.InvoiceID, invoice.ID, ErrCrossInvoiceMatches)
			}
			if item.IsPaid {
				slog.Warn("reconciler: item already paid, skipping", "item_id", item.ID)
				continue
			}
			if err := items.MarkPaid(ctx, item.ID, payer.ID, payment.ID); err != nil {
				return err
			}
			refreshed, err := items.GetByID(ctx, item.ID)
			if err != nil {
				return err
			}
			paid = append(paid, refreshed)
			slog.Info("reconciler: marked item paid", "item_id", item.ID, "description", item.Description)
		}

		var remainder *repository.Item
		switch match.PaymentStatus {
		case PaymentUnderpaid:
			amount := math.Abs(match.Difference)
			created, err := items.Create(ctx, repository.Item{
				InvoiceID:   invoice.ID,
				Description: remainderDescription,
				UnitPrice:   amount,
				Tip:         0,
				Total:       amount,
				IsPaid:      false,
				PaidAmount:  0,
				DebtorID:    &payer.ID,
			})
			if err != nil {
				return err
			}
			remainder = &created
			slog.Info("reconciler: created remainder item", "amount", amount, "invoice_id", invoice.ID)
		case PaymentOverpaid:
			slog.Info("reconciler: overpaid, excess ignored", "excess", match.Difference)
		}

		refreshedInvoice, err := invoices.RecomputePending(ctx, invoice.ID)
		if err != nil {
			return err
		}

		out = ReconcileOutcome{
			PaidItems: paid,
			Remainder: remainder,
			Payment:   &payment,
			Invoice:   &refreshedInvoice,
		}
		return nil
	})
	if err != nil {
		return ReconcileOutcome{}, err
	}
	return out, nil
}

// invoiceLocks hands out one mutex per invoice id.
type invoiceLocks struct {
	mu sync.Mutex
	m  map[int64]*sync.Mutex
}

func (l *invoiceLocks) lock(invoiceID int64) func() {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[int64]*sync.Mutex)
	}
	il, ok := l.m[invoiceID]
	if !ok {
		il = &sync.Mutex{}
		l.m[invoiceID] = il
	}
	l.mu.Unlock()
	il.Lock()
	return il.Unlock
}

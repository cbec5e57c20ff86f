package repository

import (
	"context"
	"database/sql"
)

// ItemRepo handles items.
type ItemRepo struct {
	db DBTX
}

func NewItemRepo(db DBTX) *ItemRepo { return &ItemRepo{db: db} }

func (r *ItemRepo) Create(ctx context.Context, it Item) (Item, error) {
	res, err := r.db.ExecContext(ctx, `
	INSERT INTO items(invoice_id, description, unit_price, tip, total, is_paid, paid_amount, debtor_id, payment_id, created_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP);
	`, it.InvoiceID, it.Description, it.UnitPrice, it.Tip, it.Total, it.IsPaid, it.PaidAmount, it.DebtorID, it.PaymentID)
	if err != nil {
		return Item{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Item{}, err
	}
	return r.GetByID(ctx, id)
}

func (r *ItemRepo) GetByID(ctx context.Context, id int64) (Item, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, invoice_id, description, unit_price, tip, total, is_paid, paid_amount, debtor_id, payment_id, created_at FROM items WHERE id = ?`, id)
	return scanItem(row)
}

// ListUnpaidBySession returns every unpaid item across the session's
// invoices in creation order. Stable ordering keeps first-available
// tie-breaks deterministic.
func (r *ItemRepo) ListUnpaidBySession(ctx context.Context, sessionID int64) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT i.id, i.invoice_id, i.description, i.unit_price, i.tip, i.total, i.is_paid, i.paid_amount, i.debtor_id, i.payment_id, i.created_at
	FROM items i JOIN invoices inv ON i.invoice_id = inv.id
	WHERE inv.session_id = ? AND i.is_paid = 0
	ORDER BY i.id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func (r *ItemRepo) ListByInvoice(ctx context.Context, invoiceID int64) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, invoice_id, description, unit_price, tip, total, is_paid, paid_amount, debtor_id, payment_id, created_at
	FROM items WHERE invoice_id = ? ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

// MarkPaid settles the item: paid flag, the settling payment, the debtor,
// and paid_amount equal to the item's total.
func (r *ItemRepo) MarkPaid(ctx context.Context, id, debtorID, paymentID int64) error {
	res, err := r.db.ExecContext(ctx, `
	UPDATE items SET is_paid = 1, paid_amount = total, debtor_id = ?, payment_id = ?
	WHERE id = ?`, debtorID, paymentID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignDebtor records who is responsible for an item without settling it.
func (r *ItemRepo) AssignDebtor(ctx context.Context, id, debtorID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE items SET debtor_id = ? WHERE id = ?`, debtorID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func collectItems(rows *sql.Rows) ([]Item, error) {
	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func scanItem(row scanner) (Item, error) {
	var it Item
	var debtor, payment sql.NullInt64
	if err := row.Scan(&it.ID, &it.InvoiceID, &it.Description, &it.UnitPrice, &it.Tip, &it.Total, &it.IsPaid, &it.PaidAmount, &debtor, &payment, &it.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	if debtor.Valid {
		it.DebtorID = &debtor.Int64
	}
	if payment.Valid {
		it.PaymentID = &payment.Int64
	}
	return it, nil
}

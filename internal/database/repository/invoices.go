package repository

import (
	"context"
	"database/sql"
)

// InvoiceRepo handles invoices.
type InvoiceRepo struct {
	db DBTX
}

func NewInvoiceRepo(db DBTX) *InvoiceRepo { return &InvoiceRepo{db: db} }

func (r *InvoiceRepo) Create(ctx context.Context, inv Invoice) (Invoice, error) {
	res, err := r.db.ExecContext(ctx, `
	INSERT INTO invoices(session_id, payer_id, description, total, pending_amount, created_at)
	VALUES(?, ?, ?, ?, ?, CURRENT_TIMESTAMP);
	`, inv.SessionID, inv.PayerID, inv.Description, inv.Total, inv.PendingAmount)
	if err != nil {
		return Invoice{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Invoice{}, err
	}
	return r.GetByID(ctx, id)
}

func (r *InvoiceRepo) GetByID(ctx context.Context, id int64) (Invoice, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, session_id, payer_id, description, total, pending_amount, created_at FROM invoices WHERE id = ?`, id)
	return scanInvoice(row)
}

// RecomputePending sets pending_amount to the sum of total over the
// invoice's unpaid items. Always a full recomputation so that drift from
// concurrent mutations cannot accumulate.
func (r *InvoiceRepo) RecomputePending(ctx context.Context, id int64) (Invoice, error) {
	_, err := r.db.ExecContext(ctx, `
	UPDATE invoices SET pending_amount = (
		SELECT COALESCE(SUM(total), 0) FROM items WHERE invoice_id = ? AND is_paid = 0
	) WHERE id = ?`, id, id)
	if err != nil {
		return Invoice{}, err
	}
	return r.GetByID(ctx, id)
}

func (r *InvoiceRepo) ListBySession(ctx context.Context, sessionID int64) ([]Invoice, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, session_id, payer_id, description, total, pending_amount, created_at FROM invoices
	WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func scanInvoice(row scanner) (Invoice, error) {
	var inv Invoice
	if err := row.Scan(&inv.ID, &inv.SessionID, &inv.PayerID, &inv.Description, &inv.Total, &inv.PendingAmount, &inv.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Invoice{}, ErrNotFound
		}
		return Invoice{}, err
	}
	return inv, nil
}

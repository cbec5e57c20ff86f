package repository

import (
	"context"
	"database/sql"
)

// PaymentRepo handles payments. Payments are create-only.
type PaymentRepo struct {
	db DBTX
}

func NewPaymentRepo(db DBTX) *PaymentRepo { return &PaymentRepo{db: db} }

func (r *PaymentRepo) Create(ctx context.Context, p Payment) (Payment, error) {
	res, err := r.db.ExecContext(ctx, `
	INSERT INTO payments(reference, payer_id, receiver_id, amount, description, created_at)
	VALUES(?, ?, ?, ?, ?, CURRENT_TIMESTAMP);
	`, p.Reference, p.PayerID, p.ReceiverID, p.Amount, p.Description)
	if err != nil {
		return Payment{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Payment{}, err
	}
	return r.GetByID(ctx, id)
}

func (r *PaymentRepo) GetByID(ctx context.Context, id int64) (Payment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, reference, payer_id, receiver_id, amount, description, created_at FROM payments WHERE id = ?`, id)
	return scanPayment(row)
}

func (r *PaymentRepo) List(ctx context.Context) ([]Payment, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, reference, payer_id, receiver_id, amount, description, created_at FROM payments ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPayment(row scanner) (Payment, error) {
	var p Payment
	if err := row.Scan(&p.ID, &p.Reference, &p.PayerID, &p.ReceiverID, &p.Amount, &p.Description, &p.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Payment{}, ErrNotFound
		}
		return Payment{}, err
	}
	return p, nil
}

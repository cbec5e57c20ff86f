package repository

import (
	"context"
	"database/sql"
)

// UserRepo handles users.
type UserRepo struct {
	db DBTX
}

func NewUserRepo(db DBTX) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) Create(ctx context.Context, phoneNumber, name string) (User, error) {
	res, err := r.db.ExecContext(ctx, `
	INSERT INTO users(phone_number, name, created_at, updated_at)
	VALUES(?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP);
	`, phoneNumber, name)
	if err != nil {
		return User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, err
	}
	return r.GetByID(ctx, id)
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, phone_number, name, created_at, updated_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *UserRepo) GetByPhone(ctx context.Context, phoneNumber string) (User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, phone_number, name, created_at, updated_at FROM users WHERE phone_number = ?`, phoneNumber)
	return scanUser(row)
}

// SearchByName returns users whose name contains q, case-insensitively,
// in creation order.
func (r *UserRepo) SearchByName(ctx context.Context, q string) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, phone_number, name, created_at, updated_at FROM users
	WHERE name LIKE ? COLLATE NOCASE ORDER BY id`, "%"+q+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *UserRepo) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, phone_number, name, created_at, updated_at FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func scanUser(row scanner) (User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.PhoneNumber, &u.Name, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

package repository

import (
	"context"
	"database/sql"
)

// SessionRepo handles sessions and their participants.
type SessionRepo struct {
	db DBTX
}

func NewSessionRepo(db DBTX) *SessionRepo { return &SessionRepo{db: db} }

func (r *SessionRepo) Create(ctx context.Context, description string, ownerID int64, shareCode string) (Session, error) {
	res, err := r.db.ExecContext(ctx, `
	INSERT INTO sessions(description, owner_id, status, share_code, created_at)
	VALUES(?, ?, ?, ?, CURRENT_TIMESTAMP);
	`, description, ownerID, SessionActive, shareCode)
	if err != nil {
		return Session{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Session{}, err
	}
	return r.GetByID(ctx, id)
}

func (r *SessionRepo) GetByID(ctx context.Context, id int64) (Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, description, owner_id, status, share_code, created_at, closed_at FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

func (r *SessionRepo) GetByShareCode(ctx context.Context, code string) (Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, description, owner_id, status, share_code, created_at, closed_at FROM sessions WHERE share_code = ?`, code)
	return scanSession(row)
}

// GetActiveByOwner returns the single active session owned by ownerID.
// Zero rows surface as ErrNoActiveSession and more than one as
// ErrTooManyActiveSessions; the caller decides how to present each.
func (r *SessionRepo) GetActiveByOwner(ctx context.Context, ownerID int64) (Session, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, description, owner_id, status, share_code, created_at, closed_at FROM sessions
	WHERE owner_id = ? AND status = ? ORDER BY id`, ownerID, SessionActive)
	if err != nil {
		return Session{}, err
	}
	defer rows.Close()
	var found []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return Session{}, err
		}
		found = append(found, s)
	}
	if err := rows.Err(); err != nil {
		return Session{}, err
	}
	switch len(found) {
	case 0:
		return Session{}, ErrNoActiveSession
	case 1:
		return found[0], nil
	default:
		return Session{}, ErrTooManyActiveSessions
	}
}

// SearchByDescription returns sessions whose description contains q,
// case-insensitively, in creation order.
func (r *SessionRepo) SearchByDescription(ctx context.Context, q string) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, description, owner_id, status, share_code, created_at, closed_at FROM sessions
	WHERE description LIKE ? COLLATE NOCASE ORDER BY id`, "%"+q+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SessionRepo) Close(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `
	UPDATE sessions SET status = ?, closed_at = CURRENT_TIMESTAMP WHERE id = ?`, SessionClosed, id)
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

func (r *SessionRepo) AddParticipant(ctx context.Context, sessionID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO session_participants(session_id, user_id) VALUES(?, ?)`, sessionID, userID)
	return err
}

func (r *SessionRepo) ListParticipants(ctx context.Context, sessionID int64) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT u.id, u.phone_number, u.name, u.created_at, u.updated_at
	FROM users u JOIN session_participants sp ON sp.user_id = u.id
	WHERE sp.session_id = ? ORDER BY u.id`, sessionID)
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

func (r *SessionRepo) List(ctx context.Context) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, description, owner_id, status, share_code, created_at, closed_at FROM sessions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSession(row scanner) (Session, error) {
	var s Session
	var closed sql.NullTime
	if err := row.Scan(&s.ID, &s.Description, &s.OwnerID, &s.Status, &s.ShareCode, &s.CreatedAt, &closed); err != nil {
		if err == sql.ErrNoRows {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	if closed.Valid {
		s.ClosedAt = &closed.Time
	}
	return s, nil
}

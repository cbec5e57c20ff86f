package repository

import "time"

// Session statuses.
const (
	SessionActive = "active"
	SessionClosed = "closed"
)

// User represents a user row.
type User struct {
	ID          int64
	PhoneNumber string
	Name        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Session represents a group tab. A user owns at most one active session at
// a time; that uniqueness is enforced at query time, not by the schema.
type Session struct {
	ID          int64
	Description string
	OwnerID     int64
	Status      string
	ShareCode   string
	CreatedAt   time.Time
	ClosedAt    *time.Time
}

// Invoice represents one receipt-derived bill inside a session.
// PendingAmount always equals the sum of total over its unpaid items; it is
// recomputed in full after every mutation, never patched incrementally.
type Invoice struct {
	ID            int64
	SessionID     int64
	PayerID       int64
	Description   string
	Total         float64
	PendingAmount float64
	CreatedAt     time.Time
}

// Item represents one unit-priced line of an invoice. Receipt lines with a
// count are replicated into one row per unit. A paid item always carries the
// settling payment's id and PaidAmount == Total.
type Item struct {
	ID          int64
	InvoiceID   int64
	Description string
	UnitPrice   float64
	Tip         float64
	Total       float64
	IsPaid      bool
	PaidAmount  float64
	DebtorID    *int64
	PaymentID   *int64
	CreatedAt   time.Time
}

// Payment represents one settlement event. Create-only, never mutated.
type Payment struct {
	ID          int64
	Reference   string
	PayerID     int64
	ReceiverID  int64
	Amount      float64
	Description string
	CreatedAt   time.Time
}

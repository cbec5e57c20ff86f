package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/pmonasterio/vaquita/internal/database/repository"
)

// ErrSessionClosed is returned when joining a session that is no longer
// active.
var ErrSessionClosed = errors.New("session is closed")

// SessionService manages group tabs.
type SessionService struct {
	Users    *repository.UserRepo
	Sessions *repository.SessionRepo
}

// Create opens a new active session owned by the user with ownerPhone. The
// owner joins as a participant and the session gets a share code others
// can join with.
func (s *SessionService) Create(ctx context.Context, ownerPhone, description string) (repository.Session, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return repository.Session{}, fmt.Errorf("session description cannot be empty")
	}
	owner, err := s.Users.GetByPhone(ctx, ownerPhone)
	if err != nil {
		return repository.Session{}, fmt.Errorf("resolve owner %q: %w", ownerPhone, err)
	}
	session, err := s.Sessions.Create(ctx, description, owner.ID, uuid.NewString())
	if err != nil {
		return repository.Session{}, err
	}
	if err := s.Sessions.AddParticipant(ctx, session.ID, owner.ID); err != nil {
		return repository.Session{}, err
	}
	slog.Info("session created", "session_id", session.ID, "description", description)
	return session, nil
}

// Get returns the session with the given id.
func (s *SessionService) Get(ctx context.Context, id int64) (repository.Session, error) {
	return s.Sessions.GetByID(ctx, id)
}

// CloseByID closes the session with the given id.
func (s *SessionService) CloseByID(ctx context.Context, id int64) (repository.Session, error) {
	if _, err := s.Sessions.GetByID(ctx, id); err != nil {
		return repository.Session{}, fmt.Errorf("session %d: %w", id, err)
	}
	if err := s.Sessions.Close(ctx, id); err != nil {
		return repository.Session{}, err
	}
	return s.Sessions.GetByID(ctx, id)
}

// CloseByDescription closes the first session whose description contains q
// (case-insensitive). Multiple hits log a warning and the first one wins.
func (s *SessionService) CloseByDescription(ctx context.Context, q string) (repository.Session, error) {
	found, err := s.Sessions.SearchByDescription(ctx, q)
	if err != nil {
		return repository.Session{}, err
	}
	if len(found) == 0 {
		return repository.Session{}, fmt.Errorf("session matching %q: %w", q, repository.ErrNotFound)
	}
	if len(found) > 1 {
		slog.Warn("multiple sessions matched description, using first",
			"query", q, "matches", len(found), "session_id", found[0].ID)
	}
	return s.CloseByID(ctx, found[0].ID)
}

// Join adds the user with phone to the active session carrying shareCode.
func (s *SessionService) Join(ctx context.Context, phone, shareCode string) (repository.Session, error) {
	user, err := s.Users.GetByPhone(ctx, phone)
	if err != nil {
		return repository.Session{}, fmt.Errorf("resolve user %q: %w", phone, err)
	}
	session, err := s.Sessions.GetByShareCode(ctx, shareCode)
	if err != nil {
		return repository.Session{}, fmt.Errorf("session with code %q: %w", shareCode, err)
	}
	if session.Status != repository.SessionActive {
		return repository.Session{}, fmt.Errorf("session %d: %w", session.ID, ErrSessionClosed)
	}
	if err := s.Sessions.AddParticipant(ctx, session.ID, user.ID); err != nil {
		return repository.Session{}, err
	}
	slog.Info("user joined session", "session_id", session.ID, "user_id", user.ID)
	return session, nil
}

// ActiveForPhone returns the single active session owned by the user with
// the given phone number.
func (s *SessionService) ActiveForPhone(ctx context.Context, phone string) (repository.Session, error) {
	user, err := s.Users.GetByPhone(ctx, phone)
	if err != nil {
		return repository.Session{}, fmt.Errorf("resolve user %q: %w", phone, err)
	}
	return s.Sessions.GetActiveByOwner(ctx, user.ID)
}

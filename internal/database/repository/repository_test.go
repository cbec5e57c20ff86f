package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pmonasterio/vaquita/internal/database"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, database.RunMigrations(dbPath))
	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestUserRepo(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	db := newTestDB(t)
	users := NewUserRepo(db)

	ana, err := users.Create(ctx, "+56911111111", "Ana Rojas")
	require.NoError(t, err)
	require.NotZero(t, ana.ID)
	require.Equal(t, "+56911111111", ana.PhoneNumber)

	_, err = users.Create(ctx, "+56922222222", "Anastasia Silva")
	require.NoError(t, err)

	got, err := users.GetByPhone(ctx, "+56911111111")
	require.NoError(t, err)
	require.Equal(t, ana.ID, got.ID)

	_, err = users.GetByPhone(ctx, "+56900000000")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = users.GetByID(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)

	// case-insensitive partial match, creation order
	found, err := users.SearchByName(ctx, "ana")
	require.NoError(t, err)
	require.Len(t, found, 2)
	require.Equal(t, "Ana Rojas", found[0].Name)
	t.Log("search verified")

	// phone numbers are unique
	_, err = users.Create(ctx, "+56911111111", "Impostor")
	require.Error(t, err)
}

func TestSessionActiveLookup(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	db := newTestDB(t)
	users := NewUserRepo(db)
	sessions := NewSessionRepo(db)

	owner, err := users.Create(ctx, "+1000", "Owner")
	require.NoError(t, err)

	// none
	_, err = sessions.GetActiveByOwner(ctx, owner.ID)
	require.ErrorIs(t, err, ErrNoActiveSession)

	// exactly one
	first, err := sessions.Create(ctx, "asado", owner.ID, "code-one")
	require.NoError(t, err)
	require.Equal(t, SessionActive, first.Status)
	got, err := sessions.GetActiveByOwner(ctx, owner.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)

	// several
	_, err = sessions.Create(ctx, "cumpleaños", owner.ID, "code-two")
	require.NoError(t, err)
	_, err = sessions.GetActiveByOwner(ctx, owner.ID)
	require.ErrorIs(t, err, ErrTooManyActiveSessions)
	t.Log("sentinel errors verified")

	// closing one brings the owner back to a single active session
	require.NoError(t, sessions.Close(ctx, first.ID))
	closed, err := sessions.GetByID(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, SessionClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	got, err = sessions.GetActiveByOwner(ctx, owner.ID)
	require.NoError(t, err)
	require.Equal(t, "cumpleaños", got.Description)

	require.ErrorIs(t, sessions.Close(ctx, 999), ErrNotFound)
}

func TestSessionShareCodeAndParticipants(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	db := newTestDB(t)
	users := NewUserRepo(db)
	sessions := NewSessionRepo(db)

	owner, err := users.Create(ctx, "+1000", "Owner")
	require.NoError(t, err)
	friend, err := users.Create(ctx, "+2000", "Friend")
	require.NoError(t, err)

	session, err := sessions.Create(ctx, "trip", owner.ID, "8b671f09-8c03-4e7c-9e51-7d4fca7cd1b0")
	require.NoError(t, err)

	got, err := sessions.GetByShareCode(ctx, "8b671f09-8c03-4e7c-9e51-7d4fca7cd1b0")
	require.NoError(t, err)
	require.Equal(t, session.ID, got.ID)

	_, err = sessions.GetByShareCode(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, sessions.AddParticipant(ctx, session.ID, owner.ID))
	require.NoError(t, sessions.AddParticipant(ctx, session.ID, friend.ID))
	// joining twice is fine
	require.NoError(t, sessions.AddParticipant(ctx, session.ID, friend.ID))

	people, err := sessions.ListParticipants(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, people, 2)
	t.Log("participants verified")
}

func TestSessionSearchByDescription(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	db := newTestDB(t)
	users := NewUserRepo(db)
	sessions := NewSessionRepo(db)

	owner, err := users.Create(ctx, "+1000", "Owner")
	require.NoError(t, err)

	first, err := sessions.Create(ctx, "Dinner at Luigi", owner.ID, "c1")
	require.NoError(t, err)
	_, err = sessions.Create(ctx, "dinner take two", owner.ID, "c2")
	require.NoError(t, err)
	_, err = sessions.Create(ctx, "road trip", owner.ID, "c3")
	require.NoError(t, err)

	found, err := sessions.SearchByDescription(ctx, "DINNER")
	require.NoError(t, err)
	require.Len(t, found, 2)
	require.Equal(t, first.ID, found[0].ID)
}

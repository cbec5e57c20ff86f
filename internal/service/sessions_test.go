package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pmonasterio/vaquita/internal/database/repository"
)

func TestSessionServiceCreateAndJoin(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	f := newFixture(t)
	svc := &SessionService{Users: f.Users, Sessions: f.Sessions}

	session, err := svc.Create(ctx, anaPhone, "  beach trip  ")
	require.NoError(t, err)
	require.Equal(t, "beach trip", session.Description, "description is trimmed")
	require.Equal(t, f.Ana.ID, session.OwnerID)
	require.NotEmpty(t, session.ShareCode)
	require.Equal(t, repository.SessionActive, session.Status)

	people, err := f.Sessions.ListParticipants(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, people, 1, "owner joins on creation")
	require.Equal(t, f.Ana.ID, people[0].ID)

	joined, err := svc.Join(ctx, brunoPhone, session.ShareCode)
	require.NoError(t, err)
	require.Equal(t, session.ID, joined.ID)

	people, err = f.Sessions.ListParticipants(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, people, 2)
}

func TestSessionServiceCreateValidation(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	f := newFixture(t)
	svc := &SessionService{Users: f.Users, Sessions: f.Sessions}

	_, err := svc.Create(ctx, anaPhone, "   ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot be empty")

	_, err = svc.Create(ctx, "+56900000000", "ghost tab")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSessionServiceJoinErrors(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	f := newFixture(t)
	svc := &SessionService{Users: f.Users, Sessions: f.Sessions}

	_, err := svc.Join(ctx, anaPhone, "7b6cf2ab-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = svc.Join(ctx, "+56900000000", f.Session.ShareCode)
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, f.Sessions.Close(ctx, f.Session.ID))
	_, err = svc.Join(ctx, anaPhone, f.Session.ShareCode)
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestSessionServiceCloseByID(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	f := newFixture(t)
	svc := &SessionService{Users: f.Users, Sessions: f.Sessions}

	closed, err := svc.CloseByID(ctx, f.Session.ID)
	require.NoError(t, err)
	require.Equal(t, repository.SessionClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	_, err = svc.CloseByID(ctx, 9999)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSessionServiceCloseByDescription(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	f := newFixture(t)
	svc := &SessionService{Users: f.Users, Sessions: f.Sessions}

	second, err := f.Sessions.Create(ctx, "another dinner", f.Ana.ID, "9e7f0a64-3d89-4b5e-8a3e-0e4f0b7a2c55")
	require.NoError(t, err)

	// Both descriptions contain "dinner"; the first created one wins.
	closed, err := svc.CloseByDescription(ctx, "DINNER")
	require.NoError(t, err)
	require.Equal(t, f.Session.ID, closed.ID)
	require.Equal(t, repository.SessionClosed, closed.Status)

	still, err := f.Sessions.GetByID(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, repository.SessionActive, still.Status)

	_, err = svc.CloseByDescription(ctx, "karaoke night")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

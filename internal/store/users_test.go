package store

import (
	"context"
	"encoding/json"
	"testing"

	apiv1 "github.com/fyrsmithlabs/questd/pkg/api/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, NewUser{
		Email:    "ada@example.com",
		Username: "ada",
		Password: "analytical",
		Name:     "Ada",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.True(t, u.IsActive)
	assert.NotEqual(t, "analytical", u.Password)
	assert.False(t, u.CreatedAt.IsZero())

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada", got.Username)
	assert.Equal(t, "Ada", got.Name)
	assert.True(t, got.IsActive)

	data, err := json.Marshal(got)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "password")
	assert.NotContains(t, string(data), got.Password)
}

func TestCreateUser_Duplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustUser(t, s, "ada")

	_, err := s.CreateUser(ctx, NewUser{Email: "ada@example.com", Username: "other", Password: "pw"})
	assert.ErrorIs(t, err, apiv1.ErrConflict, "duplicate email")

	_, err = s.CreateUser(ctx, NewUser{Email: "other@example.com", Username: "ada", Password: "pw"})
	assert.ErrorIs(t, err, apiv1.ErrConflict, "duplicate username")

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestCreateUser_Invalid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, NewUser{Username: "ada", Password: "pw"})
	assert.ErrorIs(t, err, apiv1.ErrInvalidArgument)

	_, err = s.CreateUser(ctx, NewUser{Email: "a@example.com", Username: "ada"})
	assert.ErrorIs(t, err, apiv1.ErrInvalidArgument)
}

func TestAuthenticate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := mustUser(t, s, "ada")

	u, err := s.Authenticate(ctx, "ada", "password-ada")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, created.ID, u.ID)

	u, err = s.Authenticate(ctx, "ada", "wrong")
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = s.Authenticate(ctx, "nobody", "password-ada")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestGetUser_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetUser(context.Background(), "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, apiv1.ErrNotFound)

	_, err = s.ResolveSubject(context.Background(), "ghost")
	assert.ErrorIs(t, err, apiv1.ErrNotFound)
}

func TestListUsers_Order(t *testing.T) {
	s := newTestStore(t)
	a := mustUser(t, s, "ada")
	b := mustUser(t, s, "bob")

	users, err := s.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, a.ID, users[0].ID)
	assert.Equal(t, b.ID, users[1].ID)

	p, err := s.ResolveSubject(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, b.ID, p.UserID)
}

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apiv1 "github.com/fyrsmithlabs/questd/pkg/api/v1"
	"github.com/fyrsmithlabs/questd/pkg/auth"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// CreateUser registers a user with a bcrypt-hashed password. A duplicate
// email or username is ErrConflict.
func (s *Store) CreateUser(ctx context.Context, in NewUser) (*User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if in.Email == "" || in.Username == "" {
		return nil, fmt.Errorf("%w: email and username are required", apiv1.ErrInvalidArgument)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	u := &User{
		ID:        uuid.NewString(),
		Email:     in.Email,
		Username:  in.Username,
		Password:  hash,
		Avatar:    in.Avatar,
		Name:      in.Name,
		CreatedAt: now,
		UpdatedAt: now,
		IsActive:  true,
	}

	if _, err := s.db.NewInsert().Model(u).Exec(ctx); err != nil {
		return nil, translate("create", "user", err)
	}
	s.logger.Debug("user created", zap.String("user.id", u.ID))
	return u, nil
}

// Authenticate returns the user when username and password match, and
// (nil, nil) otherwise. Only storage failures are errors.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := s.GetUserByUsername(ctx, username)
	if errors.Is(err, apiv1.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(u.Password, password) {
		return nil, nil
	}
	return u, nil
}

// GetUser returns the user with id.
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	u := new(User)
	if err := s.db.NewSelect().Model(u).Where("u.id = ?", id).Scan(ctx); err != nil {
		return nil, translate("get", "user", err)
	}
	return u, nil
}

// GetUserByUsername returns the user with the exact username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	u := new(User)
	if err := s.db.NewSelect().Model(u).Where("u.username = ?", username).Scan(ctx); err != nil {
		return nil, translate("get", "user", err)
	}
	return u, nil
}

// ListUsers returns every user ordered by creation time.
func (s *Store) ListUsers(ctx context.Context) ([]*User, error) {
	users := make([]*User, 0)
	if err := s.db.NewSelect().Model(&users).OrderExpr("u.created_at ASC, u.id ASC").Scan(ctx); err != nil {
		return nil, translate("list", "users", err)
	}
	return users, nil
}

// ResolveSubject implements auth.SubjectResolver: a token subject is a
// username.
func (s *Store) ResolveSubject(ctx context.Context, subject string) (auth.Principal, error) {
	u, err := s.GetUserByUsername(ctx, subject)
	if err != nil {
		return auth.Principal{}, err
	}
	return auth.Principal{UserID: u.ID, Username: u.Username}, nil
}

// userExists reports whether a user row with id exists, using db (the store
// handle or an open transaction).
func userExists(ctx context.Context, db bun.IDB, id string) (bool, error) {
	return db.NewSelect().Model((*User)(nil)).Where("u.id = ?", id).Exists(ctx)
}

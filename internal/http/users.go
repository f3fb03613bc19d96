package http

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/questd/internal/store"
	apiv1 "github.com/fyrsmithlabs/questd/pkg/api/v1"
	"github.com/fyrsmithlabs/questd/pkg/auth"
)

// pathID reads a UUID path parameter.
func pathID(c echo.Context, name string) (string, error) {
	raw := c.Param(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: malformed %s %q", apiv1.ErrInvalidArgument, name, raw)
	}
	return id.String(), nil
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return fmt.Errorf("%w: invalid request body", apiv1.ErrInvalidArgument)
	}
	return nil
}

func (s *Server) handleCreateUser(c echo.Context) error {
	var req CreateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := s.deps.Store.CreateUser(c.Request().Context(), store.NewUser{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Avatar:   req.Avatar,
		Name:     req.Name,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, u)
}

func (s *Server) handleListUsers(c echo.Context) error {
	users, err := s.deps.Store.ListUsers(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

func (s *Server) handleGetUser(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	u, err := s.deps.Store.GetUser(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (s *Server) handleUserMissions(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	missions, err := s.deps.Store.ListMissionsForUser(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, missions)
}

// handleLogin accepts a form-encoded username and password and returns a
// bearer token.
func (s *Server) handleLogin(c echo.Context) error {
	username := c.FormValue("username")
	password := c.FormValue("password")
	ctx := c.Request().Context()

	u, err := s.deps.Store.Authenticate(ctx, username, password)
	if err != nil {
		return err
	}
	if u == nil {
		s.logger.Info("login rejected", zap.String("username", username))
		return fmt.Errorf("%w: incorrect username or password", apiv1.ErrUnauthorized)
	}

	token, expires, err := s.deps.Tokens.Issue(u.Username)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, LoginResponse{
		AccessToken: token,
		TokenType:   auth.TokenType,
		ExpiresAt:   expires,
		User:        u,
	})
}

func (s *Server) handleMe(c echo.Context) error {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		return apiv1.ErrUnauthorized
	}
	u, err := s.deps.Store.GetUser(c.Request().Context(), p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

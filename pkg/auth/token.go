package auth

import (
	"errors"
	"fmt"
	"time"

	apiv1 "github.com/fyrsmithlabs/questd/pkg/api/v1"
	"github.com/golang-jwt/jwt/v5"
)

// TokenType is reported to clients alongside issued tokens.
const TokenType = "bearer"

// TokenIssuer issues and validates HS256 bearer tokens whose subject is a
// username.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewTokenIssuer creates an issuer. secret must be non-empty and ttl
// positive.
func NewTokenIssuer(secret string, ttl time.Duration, issuer string) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, issuer: issuer, now: time.Now}, nil
}

// Issue returns a signed token for username and its expiry.
func (ti *TokenIssuer) Issue(username string) (string, time.Time, error) {
	if username == "" {
		return "", time.Time{}, fmt.Errorf("%w: token subject is required", apiv1.ErrInvalidArgument)
	}
	now := ti.now()
	expires := now.Add(ti.ttl)

	claims := jwt.RegisteredClaims{
		Subject:   username,
		Issuer:    ti.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Parse validates token and returns its subject. Every failure, including
// expiry and a wrong signing method, is ErrUnauthorized.
func (ti *TokenIssuer) Parse(token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.now),
	}
	if ti.issuer != "" {
		opts = append(opts, jwt.WithIssuer(ti.issuer))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return ti.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apiv1.ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", apiv1.ErrUnauthorized)
	}
	return claims.Subject, nil
}

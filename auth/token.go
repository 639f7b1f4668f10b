// Package auth provides credential issuing and verification, password
// hashing, and per-request identity resolution.
package auth

import (
	stderrors "errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/c360/phonebook/errors"
)

// Identity is the claim set bound into an issued credential
type Identity struct {
	Username string
	UserID   string
}

// tokenClaims is the internal claims type used for JWT signing and parsing
type tokenClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	UserID   string `json:"user_id"`
}

// TokenService issues and verifies signed credentials. Tokens are HMAC-signed
// with a shared secret configured at process start and carry an expiry claim
// that is enforced at verification time.
type TokenService struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewTokenService creates a token service with the given signing key and
// credential lifetime
func NewTokenService(key string, ttl time.Duration) *TokenService {
	return &TokenService{
		key: []byte(key),
		ttl: ttl,
		now: time.Now,
	}
}

// Issue signs a credential binding the given identity
func (s *TokenService) Issue(identity Identity) (string, error) {
	if identity.Username == "" || identity.UserID == "" {
		return "", errors.WrapAuthentication(errors.ErrInvalidInput, "TokenService", "Issue",
			"identity is incomplete")
	}

	now := s.now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Username: identity.Username,
		UserID:   identity.UserID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", errors.WrapAuthentication(err, "TokenService", "Issue", "sign")
	}
	return signed, nil
}

// Verify checks a credential's signature and expiry and returns the identity
// it binds. Malformed, tampered, and expired tokens all fail with an
// authentication error.
func (s *TokenService) Verify(tokenString string) (Identity, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(t *jwt.Token) (any, error) {
			return s.key, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, errors.WrapAuthentication(errors.ErrTokenExpired,
				"TokenService", "Verify", "expiry check")
		}
		return Identity{}, errors.WrapAuthentication(errors.ErrInvalidToken,
			"TokenService", "Verify", "parse")
	}

	if claims.Username == "" || claims.UserID == "" {
		return Identity{}, errors.WrapAuthentication(errors.ErrInvalidToken,
			"TokenService", "Verify", "claims check")
	}

	return Identity{Username: claims.Username, UserID: claims.UserID}, nil
}

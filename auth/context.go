package auth

import (
	"context"
	"log/slog"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/c360/phonebook/errors"
	"github.com/c360/phonebook/store"
)

// contextKey is an unexported type to avoid context key collisions
type contextKey struct{}

var currentUserKey contextKey

// WithCurrentUser attaches an authenticated user to the context
func WithCurrentUser(ctx context.Context, user *store.User) context.Context {
	return context.WithValue(ctx, currentUserKey, user)
}

// CurrentUser returns the authenticated user from the context, or nil for
// anonymous requests
func CurrentUser(ctx context.Context) *store.User {
	user, _ := ctx.Value(currentUserKey).(*store.User)
	return user
}

// BearerToken extracts the token from an Authorization header value.
// The scheme keyword is matched case-insensitively. Returns false when the
// header does not carry a bearer credential.
func BearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) {
		return "", false
	}
	if !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

// UserSource loads user records during identity resolution
type UserSource interface {
	UserByID(ctx context.Context, id primitive.ObjectID) (*store.User, error)
}

// ContextBuilder resolves an inbound request's Authorization header into a
// per-request identity exactly once, before any resolver runs.
type ContextBuilder struct {
	tokens *TokenService
	users  UserSource
	logger *slog.Logger
}

// NewContextBuilder creates a context builder over the given token service
// and user source
func NewContextBuilder(tokens *TokenService, users UserSource, logger *slog.Logger) *ContextBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContextBuilder{
		tokens: tokens,
		users:  users,
		logger: logger.With("component", "auth"),
	}
}

// Build verifies any bearer credential on the request and attaches the
// resolved user to the returned context.
//
// A missing or non-bearer Authorization header yields an anonymous context.
// A present but invalid, expired, or unresolvable credential is a hard
// authentication failure: the request must not reach any resolver.
func (b *ContextBuilder) Build(ctx context.Context, authorization string) (context.Context, error) {
	if authorization == "" {
		return ctx, nil
	}

	token, ok := BearerToken(authorization)
	if !ok {
		return ctx, nil
	}

	identity, err := b.tokens.Verify(token)
	if err != nil {
		b.logger.Debug("credential rejected", "error", err)
		return ctx, err
	}

	id, err := primitive.ObjectIDFromHex(identity.UserID)
	if err != nil {
		return ctx, errors.WrapAuthentication(errors.ErrInvalidToken,
			"ContextBuilder", "Build", "user id decode")
	}

	user, err := b.users.UserByID(ctx, id)
	if err != nil {
		return ctx, errors.Wrap(err, "ContextBuilder", "Build", "user lookup")
	}
	if user == nil {
		// Token verified but the account no longer exists
		return ctx, errors.WrapAuthentication(errors.ErrInvalidToken,
			"ContextBuilder", "Build", "unknown user")
	}

	return WithCurrentUser(ctx, user), nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"bookreview/internal/apperr"
	"bookreview/internal/util"
	"bookreview/pkg/auth"
	"bookreview/pkg/domain"
	"bookreview/pkg/store"
)

// RegisterInput is the sign-up payload.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Name     string `json:"name" validate:"required,notblank,min=2,max=50"`
}

// LoginInput is the sign-in payload.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Register creates an account and issues an access token.
func (a *App) Register(ctx context.Context, in RegisterInput) (domain.User, string, error) {
	user, err := a.createUser(ctx, in, auth.ValidatePassword)
	if err != nil {
		return domain.User{}, "", err
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue access token: %w", err)
	}
	return user, token, nil
}

// Login validates credentials and issues an access token.
func (a *App) Login(ctx context.Context, in LoginInput) (domain.User, string, error) {
	if err := a.validate(in); err != nil {
		return domain.User{}, "", err
	}
	user, ok, err := a.store.GetUserByEmail(ctx, normalizeEmail(in.Email))
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(in.Password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue access token: %w", err)
	}
	return user, token, nil
}

// UserFromToken resolves a bearer credential to its user. Any failure,
// including a user deleted after the token was issued, reports false.
func (a *App) UserFromToken(ctx context.Context, token string) (domain.User, bool) {
	uid, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		if err != nil && !errors.Is(err, store.ErrTokenInvalid) && !errors.Is(err, store.ErrTokenRevoked) {
			util.LoggerFromContext(ctx).Error("resolve session", "err", err)
		}
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(ctx, uid)
	if err != nil {
		util.LoggerFromContext(ctx).Error("load session user", "user_id", uid, "err", err)
		return domain.User{}, false
	}
	return user, found
}

// Profile returns the caller with their review count.
func (a *App) Profile(ctx context.Context, user domain.User) (domain.UserSummary, error) {
	counts, err := a.store.CountReviewsByUser(ctx, []string{user.ID})
	if err != nil {
		return domain.UserSummary{}, fmt.Errorf("count reviews: %w", err)
	}
	return domain.UserSummary{User: user, ReviewCount: counts[user.ID]}, nil
}

// Refresh exchanges a valid access token for a new one and revokes the old.
func (a *App) Refresh(ctx context.Context, user domain.User, token string) (string, error) {
	fresh, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}
	if err := a.sessions.DeleteSession(token); err != nil {
		util.LoggerFromContext(ctx).Warn("revoke refreshed token", "user_id", user.ID, "err", err)
	}
	return fresh, nil
}

// Logout revokes the presented access token until it expires.
func (a *App) Logout(token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrUnauthenticated
	}
	if err := a.sessions.DeleteSession(token); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// JWKS returns public signing keys when the session store supports it.
func (a *App) JWKS() []store.JWK {
	provider, ok := a.sessions.(store.JWKSProvider)
	if !ok {
		return []store.JWK{}
	}
	return provider.JWKS()
}

func (a *App) createUser(ctx context.Context, in RegisterInput, passwordRule func(string) error) (domain.User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := a.validateWithPassword(in, in.Password, passwordRule); err != nil {
		return domain.User{}, err
	}
	exists, err := a.store.HasUserEmail(ctx, in.Email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, ErrEmailAlreadyExists
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := a.now()
	user := domain.User{
		ID:           a.newID(),
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.User{}, ErrEmailAlreadyExists
		}
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// validateWithPassword runs struct validation and the password rule together
// so one response reports every failing field. A struct-level password
// message wins over the rule's.
func (a *App) validateWithPassword(v any, password string, rule func(string) error) error {
	err := a.validate(v)
	ruleErr := rule(password)
	if ruleErr == nil {
		return err
	}
	details := map[string]string{}
	if err != nil {
		e, ok := apperr.As(err)
		if !ok || e.Kind != apperr.KindValidation {
			return err
		}
		maps.Copy(details, e.Details)
	}
	if _, ok := details["password"]; !ok {
		details["password"] = ruleErr.Error()
	}
	return apperr.Validation("Validation failed", details)
}

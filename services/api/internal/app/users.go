package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bookreview/internal/apperr"
	"bookreview/internal/util"
	"bookreview/pkg/auth"
	"bookreview/pkg/domain"
	"bookreview/pkg/store"
)

// UserPatch updates the fields that are present. A new password is hashed
// before it is stored.
type UserPatch struct {
	Email    *string `json:"email" validate:"omitempty,email,max=254"`
	Name     *string `json:"name" validate:"omitempty,notblank,min=2,max=50"`
	Password *string `json:"password" validate:"omitempty,min=6,max=72"`
}

// ListUsers returns users newest first with their review counts.
func (a *App) ListUsers(ctx context.Context, pp PageParams) (Page[domain.UserSummary], error) {
	if err := a.validate(pp); err != nil {
		return Page[domain.UserSummary]{}, err
	}
	return a.listUsers(ctx, pp, store.UserQuery{})
}

// SearchUsers matches name or email case-insensitively.
func (a *App) SearchUsers(ctx context.Context, p SearchParams) (Page[domain.UserSummary], error) {
	if err := a.validate(p); err != nil {
		return Page[domain.UserSummary]{}, err
	}
	return a.listUsers(ctx, PageParams{Page: p.Page, Limit: p.Limit}, store.UserQuery{Search: strings.TrimSpace(p.Q)})
}

func (a *App) listUsers(ctx context.Context, pp PageParams, q store.UserQuery) (Page[domain.UserSummary], error) {
	w := pp.window()
	q.Offset, q.Limit = w.Offset, w.Limit
	users, total, err := a.store.ListUsers(ctx, q)
	if err != nil {
		return Page[domain.UserSummary]{}, fmt.Errorf("list users: %w", err)
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	counts, err := a.store.CountReviewsByUser(ctx, ids)
	if err != nil {
		return Page[domain.UserSummary]{}, fmt.Errorf("count reviews: %w", err)
	}
	items := make([]domain.UserSummary, 0, len(users))
	for _, u := range users {
		items = append(items, domain.UserSummary{User: u, ReviewCount: counts[u.ID]})
	}
	return Page[domain.UserSummary]{Items: items, Pagination: pp.meta(total)}, nil
}

// GetUser returns a user with every review they wrote.
func (a *App) GetUser(ctx context.Context, id string) (domain.UserDetail, error) {
	user, err := a.getUser(ctx, id)
	if err != nil {
		return domain.UserDetail{}, err
	}
	reviews, _, err := a.store.ListReviews(ctx, store.ReviewQuery{UserID: id})
	if err != nil {
		return domain.UserDetail{}, fmt.Errorf("list user reviews: %w", err)
	}
	return domain.UserDetail{User: user, Reviews: nonNil(reviews)}, nil
}

// CreateUser adds an account without issuing a token. Unlike Register it
// only enforces the password length bounds.
func (a *App) CreateUser(ctx context.Context, in RegisterInput) (domain.User, error) {
	return a.createUser(ctx, in, auth.ValidatePasswordLength)
}

// UpdateUser changes the caller's own account.
func (a *App) UpdateUser(ctx context.Context, actor domain.User, id string, patch UserPatch) (domain.User, error) {
	if patch.Email != nil {
		email := normalizeEmail(*patch.Email)
		patch.Email = &email
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}
	if err := a.validate(patch); err != nil {
		return domain.User{}, err
	}
	user, err := a.getUser(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	if actor.ID != user.ID {
		return domain.User{}, ErrNotAccountOwner
	}

	if patch.Email != nil && *patch.Email != user.Email {
		taken, err := a.store.HasUserEmail(ctx, *patch.Email)
		if err != nil {
			return domain.User{}, fmt.Errorf("check email: %w", err)
		}
		if taken {
			return domain.User{}, ErrEmailAlreadyExists
		}
		user.Email = *patch.Email
	}
	if patch.Name != nil {
		user.Name = *patch.Name
	}
	if patch.Password != nil {
		if err := auth.ValidatePassword(*patch.Password); err != nil {
			return domain.User{}, apperr.Validation("Validation failed", map[string]string{"password": err.Error()})
		}
		hash, err := auth.HashPassword(*patch.Password)
		if err != nil {
			return domain.User{}, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash
	}
	user.UpdatedAt = a.now()

	if err := a.store.UpdateUser(ctx, user); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			return domain.User{}, ErrEmailAlreadyExists
		case errors.Is(err, store.ErrNotFound):
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// DeleteUser removes the caller's own account together with their reviews
// and revokes every token issued to it.
func (a *App) DeleteUser(ctx context.Context, actor domain.User, id string) error {
	user, err := a.getUser(ctx, id)
	if err != nil {
		return err
	}
	if actor.ID != user.ID {
		return ErrNotAccountOwner
	}
	if err := a.store.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	if revoker, ok := a.sessions.(store.UserSessionRevoker); ok {
		if err := revoker.RevokeUserSessions(id, a.now()); err != nil {
			util.LoggerFromContext(ctx).Warn("revoke deleted user sessions", "user_id", id, "err", err)
		}
	}
	return nil
}

func (a *App) getUser(ctx context.Context, id string) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(ctx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return user, nil
}

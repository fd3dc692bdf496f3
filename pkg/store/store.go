package store

import (
	"context"
	"errors"
	"time"

	"bookreview/pkg/domain"
)

var (
	// ErrDuplicate is returned when an insert or update violates a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrNotFound is returned when a mutation targets a missing row or
	// references one through a foreign key.
	ErrNotFound = errors.New("record not found")
)

// UserQuery filters and windows ListUsers.
type UserQuery struct {
	Search string // case-insensitive match on name or email
	Offset int
	Limit  int
}

// BookQuery filters and windows ListBooks. Genre matches a label exactly;
// Search matches title or author case-insensitively, or a genre label exactly.
type BookQuery struct {
	Genre  string
	Search string
	Offset int
	Limit  int
}

// ReviewQuery filters and windows ListReviews. Results are newest first.
type ReviewQuery struct {
	BookID string
	UserID string
	Offset int
	Limit  int
}

// RatingFilter narrows the rating set read by Ratings. Empty fields match all.
type RatingFilter struct {
	BookID string
	UserID string
}

// Store defines persistence operations for users, books, and reviews.
type Store interface {
	// users
	CreateUser(ctx context.Context, u domain.User) error
	UpdateUser(ctx context.Context, u domain.User) error
	DeleteUser(ctx context.Context, id string) error
	GetUserByID(ctx context.Context, id string) (domain.User, bool, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error)
	HasUserEmail(ctx context.Context, email string) (bool, error)
	ListUsers(ctx context.Context, q UserQuery) ([]domain.User, int64, error)

	// books
	CreateBook(ctx context.Context, b domain.Book) error
	UpdateBook(ctx context.Context, b domain.Book) error
	DeleteBook(ctx context.Context, id string) error
	GetBook(ctx context.Context, id string) (domain.Book, bool, error)
	ListBooks(ctx context.Context, q BookQuery) ([]domain.Book, int64, error)
	ListGenres(ctx context.Context) ([]domain.GenreCount, error)

	// reviews
	CreateReview(ctx context.Context, r domain.Review) error
	UpdateReview(ctx context.Context, r domain.Review) error
	DeleteReview(ctx context.Context, id string) error
	GetReview(ctx context.Context, id string) (domain.Review, bool, error)
	FindReview(ctx context.Context, userID, bookID string) (domain.Review, bool, error)
	ListReviews(ctx context.Context, q ReviewQuery) ([]domain.Review, int64, error)

	// aggregate reads
	Ratings(ctx context.Context, f RatingFilter) ([]float64, error)
	RatingsByBook(ctx context.Context, bookIDs []string) (map[string][]float64, error)
	CountReviewsByUser(ctx context.Context, userIDs []string) (map[string]int, error)
}

// SessionStore issues and resolves bearer tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}

// UserSessionRevoker is an optional capability that revokes all sessions
// issued for a user up to a cutoff time.
type UserSessionRevoker interface {
	RevokeUserSessions(userID string, since time.Time) error
}

// JWK represents a JSON Web Key entry used by JWKS endpoints.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
}

// JWKSProvider is an optional capability exposed by session stores that can
// publish JSON Web Keys.
type JWKSProvider interface {
	JWKS() []JWK
}

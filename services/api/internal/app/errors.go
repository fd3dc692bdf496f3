package app

import "bookreview/internal/apperr"

var (
	// ErrInvalidCredentials is shared by unknown-email and wrong-password
	// logins so responses do not reveal which accounts exist.
	ErrInvalidCredentials = apperr.Unauthenticated("Invalid email or password")
	ErrUnauthenticated    = apperr.Unauthenticated("Access token is required")
	ErrInvalidToken       = apperr.Unauthenticated("Invalid or expired token")

	ErrEmailAlreadyExists = apperr.Conflict("User with this email already exists")
	ErrDuplicateReview    = apperr.Conflict("You have already reviewed this book")

	ErrBookNotFound   = apperr.NotFound("Book not found")
	ErrReviewNotFound = apperr.NotFound("Review not found")
	ErrUserNotFound   = apperr.NotFound("User not found")

	ErrNotReviewOwner  = apperr.Forbidden("You can only modify your own reviews")
	ErrNotAccountOwner = apperr.Forbidden("You can only modify your own account")
)

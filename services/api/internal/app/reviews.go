package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"bookreview/pkg/domain"
	"bookreview/pkg/rating"
	"bookreview/pkg/store"
)

// ReviewListParams filters the review listing by book and/or author.
type ReviewListParams struct {
	Page   int    `json:"page" validate:"gte=1,lte=2147483647"`
	Limit  int    `json:"limit" validate:"gte=1,lte=100"`
	BookID string `json:"bookId" validate:"max=64"`
	UserID string `json:"userId" validate:"max=64"`
}

// ReviewInput creates a review for the calling user.
type ReviewInput struct {
	BookID  string  `json:"bookId" validate:"required,notblank,max=64"`
	Rating  float64 `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string  `json:"comment" validate:"max=1000"`
}

// ReviewPatch updates the fields that are present.
type ReviewPatch struct {
	Rating  *float64 `json:"rating" validate:"omitempty,gte=1,lte=5"`
	Comment *string  `json:"comment" validate:"omitempty,max=1000"`
}

// ListReviews returns reviews newest first with their book and author.
func (a *App) ListReviews(ctx context.Context, p ReviewListParams) (Page[domain.Review], error) {
	if err := a.validate(p); err != nil {
		return Page[domain.Review]{}, err
	}
	pp := PageParams{Page: p.Page, Limit: p.Limit}
	return a.pageReviews(ctx, pp, store.ReviewQuery{
		BookID: strings.TrimSpace(p.BookID),
		UserID: strings.TrimSpace(p.UserID),
	})
}

// ReviewStats aggregates every review. The distribution is ascending and
// Max/Min stay nil while there are no reviews.
func (a *App) ReviewStats(ctx context.Context) (domain.GlobalStats, error) {
	ratings, err := a.store.Ratings(ctx, store.RatingFilter{})
	if err != nil {
		return domain.GlobalStats{}, fmt.Errorf("load ratings: %w", err)
	}
	summary := rating.Summarize(ratings, rating.Ascending)
	stats := domain.GlobalStats{
		AverageRating:      summary.Average,
		TotalReviews:       summary.Count,
		RatingDistribution: domain.RatingCounts(summary.Distribution),
	}
	if summary.Count > 0 {
		maxRating, minRating := summary.Max, summary.Min
		stats.MaxRating = &maxRating
		stats.MinRating = &minRating
	}
	return stats, nil
}

// MyReviews pages through the caller's reviews and summarises all of them.
func (a *App) MyReviews(ctx context.Context, user domain.User, pp PageParams) (Page[domain.Review], domain.PersonalStats, error) {
	if err := a.validate(pp); err != nil {
		return Page[domain.Review]{}, domain.PersonalStats{}, err
	}
	var (
		page    Page[domain.Review]
		ratings []float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		page, err = a.pageReviews(gctx, pp, store.ReviewQuery{UserID: user.ID})
		return err
	})
	g.Go(func() error {
		var err error
		ratings, err = a.store.Ratings(gctx, store.RatingFilter{UserID: user.ID})
		return err
	})
	if err := g.Wait(); err != nil {
		return Page[domain.Review]{}, domain.PersonalStats{}, fmt.Errorf("load user reviews: %w", err)
	}
	return page, domain.PersonalStats{
		TotalReviews:  len(ratings),
		AverageRating: rating.Average(ratings),
	}, nil
}

// GetReview returns a review with its book and author.
func (a *App) GetReview(ctx context.Context, id string) (domain.Review, error) {
	review, ok, err := a.store.GetReview(ctx, id)
	if err != nil {
		return domain.Review{}, fmt.Errorf("fetch review: %w", err)
	}
	if !ok {
		return domain.Review{}, ErrReviewNotFound
	}
	return review, nil
}

// CreateReview records the caller's review of a book. A user may review a
// book once.
func (a *App) CreateReview(ctx context.Context, user domain.User, in ReviewInput) (domain.Review, error) {
	in.BookID = strings.TrimSpace(in.BookID)
	in.Comment = strings.TrimSpace(in.Comment)
	if err := a.validate(in); err != nil {
		return domain.Review{}, err
	}
	if _, exists, err := a.store.FindReview(ctx, user.ID, in.BookID); err != nil {
		return domain.Review{}, fmt.Errorf("check existing review: %w", err)
	} else if exists {
		return domain.Review{}, ErrDuplicateReview
	}
	book, err := a.getBook(ctx, in.BookID)
	if err != nil {
		return domain.Review{}, err
	}

	now := a.now()
	review := domain.Review{
		ID:        a.newID(),
		BookID:    book.ID,
		UserID:    user.ID,
		Rating:    in.Rating,
		Comment:   in.Comment,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.CreateReview(ctx, review); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			return domain.Review{}, ErrDuplicateReview
		case errors.Is(err, store.ErrNotFound):
			return domain.Review{}, ErrBookNotFound
		}
		return domain.Review{}, fmt.Errorf("save review: %w", err)
	}
	review.Book = &domain.BookRef{ID: book.ID, Title: book.Title, Author: book.Author}
	review.User = &domain.UserRef{ID: user.ID, Name: user.Name, Email: user.Email}
	return review, nil
}

// UpdateReview changes rating and/or comment on the caller's own review.
func (a *App) UpdateReview(ctx context.Context, user domain.User, id string, patch ReviewPatch) (domain.Review, error) {
	if err := a.validate(patch); err != nil {
		return domain.Review{}, err
	}
	review, err := a.ownedReview(ctx, user, id)
	if err != nil {
		return domain.Review{}, err
	}
	if patch.Rating != nil {
		review.Rating = *patch.Rating
	}
	if patch.Comment != nil {
		review.Comment = strings.TrimSpace(*patch.Comment)
	}
	review.UpdatedAt = a.now()
	if err := a.store.UpdateReview(ctx, review); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Review{}, ErrReviewNotFound
		}
		return domain.Review{}, fmt.Errorf("update review: %w", err)
	}
	return review, nil
}

// DeleteReview removes the caller's own review.
func (a *App) DeleteReview(ctx context.Context, user domain.User, id string) error {
	if _, err := a.ownedReview(ctx, user, id); err != nil {
		return err
	}
	if err := a.store.DeleteReview(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrReviewNotFound
		}
		return fmt.Errorf("delete review: %w", err)
	}
	return nil
}

// ownedReview loads a review and checks the caller wrote it. Missing
// reviews report not found before ownership is considered.
func (a *App) ownedReview(ctx context.Context, user domain.User, id string) (domain.Review, error) {
	review, err := a.GetReview(ctx, id)
	if err != nil {
		return domain.Review{}, err
	}
	if review.UserID != user.ID {
		return domain.Review{}, ErrNotReviewOwner
	}
	return review, nil
}

func (a *App) pageReviews(ctx context.Context, pp PageParams, q store.ReviewQuery) (Page[domain.Review], error) {
	w := pp.window()
	q.Offset, q.Limit = w.Offset, w.Limit
	reviews, total, err := a.store.ListReviews(ctx, q)
	if err != nil {
		return Page[domain.Review]{}, fmt.Errorf("list reviews: %w", err)
	}
	return Page[domain.Review]{Items: nonNil(reviews), Pagination: pp.meta(total)}, nil
}

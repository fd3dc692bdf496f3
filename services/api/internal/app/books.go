package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"bookreview/internal/apperr"
	"bookreview/internal/validation"
	"bookreview/pkg/domain"
	"bookreview/pkg/rating"
	"bookreview/pkg/store"
)

// recentReviewLimit is how many reviews the book detail view embeds.
const recentReviewLimit = 5

// BookListParams filters the book listing. Genre matches a label exactly.
type BookListParams struct {
	Page  int    `json:"page" validate:"gte=1,lte=2147483647"`
	Limit int    `json:"limit" validate:"gte=1,lte=100"`
	Genre string `json:"genre" validate:"max=50"`
}

// SearchParams is a paginated free-text query.
type SearchParams struct {
	Q     string `json:"q" validate:"required,notblank,max=100"`
	Page  int    `json:"page" validate:"gte=1,lte=2147483647"`
	Limit int    `json:"limit" validate:"gte=1,lte=100"`
}

// BookInput creates a book.
type BookInput struct {
	Title     string   `json:"title" validate:"required,notblank,max=200"`
	Author    string   `json:"author" validate:"required,notblank,max=100"`
	Genre     []string `json:"genre" validate:"required,min=1,dive,notblank,max=50"`
	Published string   `json:"published" validate:"required,isodate"`
}

// BookPatch updates the fields that are present.
type BookPatch struct {
	Title     *string  `json:"title" validate:"omitempty,notblank,max=200"`
	Author    *string  `json:"author" validate:"omitempty,notblank,max=100"`
	Genre     []string `json:"genre" validate:"omitempty,dive,notblank,max=50"`
	Published *string  `json:"published" validate:"omitempty,isodate"`
}

// BookReviews is one page of a book's reviews with the book's rating stats.
type BookReviews struct {
	Book    domain.Book
	Reviews Page[domain.Review]
	Stats   BookReviewStats
}

// BookReviewStats is the per-book breakdown without percentages.
type BookReviewStats struct {
	TotalReviews       int                  `json:"totalReviews"`
	AverageRating      float64              `json:"averageRating"`
	RatingDistribution []domain.RatingCount `json:"ratingDistribution"`
}

// ListBooks returns books newest first, each with its average rating.
func (a *App) ListBooks(ctx context.Context, p BookListParams) (Page[domain.BookSummary], error) {
	if err := a.validate(p); err != nil {
		return Page[domain.BookSummary]{}, err
	}
	return a.listBooks(ctx, PageParams{Page: p.Page, Limit: p.Limit}, store.BookQuery{Genre: strings.TrimSpace(p.Genre)})
}

// SearchBooks matches title or author case-insensitively, or a genre exactly.
func (a *App) SearchBooks(ctx context.Context, p SearchParams) (Page[domain.BookSummary], error) {
	if err := a.validate(p); err != nil {
		return Page[domain.BookSummary]{}, err
	}
	return a.listBooks(ctx, PageParams{Page: p.Page, Limit: p.Limit}, store.BookQuery{Search: strings.TrimSpace(p.Q)})
}

func (a *App) listBooks(ctx context.Context, pp PageParams, q store.BookQuery) (Page[domain.BookSummary], error) {
	w := pp.window()
	q.Offset, q.Limit = w.Offset, w.Limit
	books, total, err := a.store.ListBooks(ctx, q)
	if err != nil {
		return Page[domain.BookSummary]{}, fmt.Errorf("list books: %w", err)
	}
	ids := make([]string, 0, len(books))
	for _, b := range books {
		ids = append(ids, b.ID)
	}
	ratings, err := a.store.RatingsByBook(ctx, ids)
	if err != nil {
		return Page[domain.BookSummary]{}, fmt.Errorf("load book ratings: %w", err)
	}
	items := make([]domain.BookSummary, 0, len(books))
	for _, b := range books {
		r := ratings[b.ID]
		items = append(items, domain.BookSummary{
			Book:          b,
			AverageRating: rating.Average(r),
			ReviewCount:   len(r),
		})
	}
	return Page[domain.BookSummary]{Items: items, Pagination: pp.meta(total)}, nil
}

// ListGenres counts books per genre.
func (a *App) ListGenres(ctx context.Context) ([]domain.GenreCount, error) {
	genres, err := a.store.ListGenres(ctx)
	if err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	return genres, nil
}

// GetBook returns a book with its most recent reviews and rating breakdown.
func (a *App) GetBook(ctx context.Context, id string) (domain.BookDetail, error) {
	book, err := a.getBook(ctx, id)
	if err != nil {
		return domain.BookDetail{}, err
	}

	var (
		recent  []domain.Review
		ratings []float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		recent, _, err = a.store.ListReviews(gctx, store.ReviewQuery{BookID: id, Limit: recentReviewLimit})
		return err
	})
	g.Go(func() error {
		var err error
		ratings, err = a.store.Ratings(gctx, store.RatingFilter{BookID: id})
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.BookDetail{}, fmt.Errorf("load book reviews: %w", err)
	}

	summary := rating.Summarize(ratings, rating.Descending)
	return domain.BookDetail{
		Book:          book,
		AverageRating: summary.Average,
		Reviews:       nonNil(recent),
		ReviewStats: domain.ReviewStats{
			TotalReviews:       summary.Count,
			AverageRating:      summary.Average,
			RatingDistribution: summary.Distribution,
		},
	}, nil
}

// BookReviews pages through one book's reviews, newest first.
func (a *App) BookReviews(ctx context.Context, id string, pp PageParams) (BookReviews, error) {
	if err := a.validate(pp); err != nil {
		return BookReviews{}, err
	}
	book, err := a.getBook(ctx, id)
	if err != nil {
		return BookReviews{}, err
	}

	var (
		reviews []domain.Review
		total   int64
		ratings []float64
	)
	w := pp.window()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		reviews, total, err = a.store.ListReviews(gctx, store.ReviewQuery{BookID: id, Offset: w.Offset, Limit: w.Limit})
		return err
	})
	g.Go(func() error {
		var err error
		ratings, err = a.store.Ratings(gctx, store.RatingFilter{BookID: id})
		return err
	})
	if err := g.Wait(); err != nil {
		return BookReviews{}, fmt.Errorf("load book reviews: %w", err)
	}

	summary := rating.Summarize(ratings, rating.Descending)
	return BookReviews{
		Book:    book,
		Reviews: Page[domain.Review]{Items: nonNil(reviews), Pagination: pp.meta(total)},
		Stats: BookReviewStats{
			TotalReviews:       summary.Count,
			AverageRating:      summary.Average,
			RatingDistribution: domain.RatingCounts(summary.Distribution),
		},
	}, nil
}

// CreateBook adds a book to the catalogue.
func (a *App) CreateBook(ctx context.Context, in BookInput) (domain.Book, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.Genre = trimAll(in.Genre)
	if err := a.validate(in); err != nil {
		return domain.Book{}, err
	}
	published, err := validation.ParseDate(in.Published)
	if err != nil {
		return domain.Book{}, err
	}
	now := a.now()
	book := domain.Book{
		ID:        a.newID(),
		Title:     in.Title,
		Author:    in.Author,
		Genres:    in.Genre,
		Published: published,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.CreateBook(ctx, book); err != nil {
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	return book, nil
}

// UpdateBook applies a partial update.
func (a *App) UpdateBook(ctx context.Context, id string, patch BookPatch) (domain.Book, error) {
	patch.Genre = trimAll(patch.Genre)
	if patch.Genre != nil && len(patch.Genre) == 0 {
		return domain.Book{}, apperr.Validation("Validation failed", map[string]string{"genre": "must contain at least 1 item(s)"})
	}
	if err := a.validate(patch); err != nil {
		return domain.Book{}, err
	}
	book, err := a.getBook(ctx, id)
	if err != nil {
		return domain.Book{}, err
	}
	if patch.Title != nil {
		book.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Author != nil {
		book.Author = strings.TrimSpace(*patch.Author)
	}
	if patch.Genre != nil {
		book.Genres = patch.Genre
	}
	if patch.Published != nil {
		published, err := validation.ParseDate(*patch.Published)
		if err != nil {
			return domain.Book{}, err
		}
		book.Published = published
	}
	book.UpdatedAt = a.now()
	if err := a.store.UpdateBook(ctx, book); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Book{}, ErrBookNotFound
		}
		return domain.Book{}, fmt.Errorf("update book: %w", err)
	}
	return book, nil
}

// DeleteBook removes a book and, through cascading, its reviews.
func (a *App) DeleteBook(ctx context.Context, id string) error {
	if err := a.store.DeleteBook(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrBookNotFound
		}
		return fmt.Errorf("delete book: %w", err)
	}
	return nil
}

func (a *App) getBook(ctx context.Context, id string) (domain.Book, error) {
	book, ok, err := a.store.GetBook(ctx, id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrBookNotFound
	}
	return book, nil
}

func trimAll(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

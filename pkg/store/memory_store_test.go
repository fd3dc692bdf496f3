package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"bookreview/pkg/domain"
)

func seedMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, u := range []domain.User{
		{ID: "u1", Email: "ada@example.com", Name: "Ada"},
		{ID: "u2", Email: "bob@example.com", Name: "Bob"},
	} {
		u.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	for i, b := range []domain.Book{
		{ID: "b1", Title: "Dune", Author: "Frank Herbert", Genres: []string{"Science Fiction"}},
		{ID: "b2", Title: "Emma", Author: "Jane Austen", Genres: []string{"Romance", "Classic"}},
		{ID: "b3", Title: "Persuasion", Author: "Jane Austen", Genres: []string{"Romance"}},
	} {
		b.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		if err := s.CreateBook(ctx, b); err != nil {
			t.Fatalf("create book: %v", err)
		}
	}
	for i, r := range []domain.Review{
		{ID: "r1", UserID: "u1", BookID: "b1", Rating: 5},
		{ID: "r2", UserID: "u2", BookID: "b1", Rating: 4},
		{ID: "r3", UserID: "u1", BookID: "b2", Rating: 3},
	} {
		r.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := s.CreateReview(ctx, r); err != nil {
			t.Fatalf("create review: %v", err)
		}
	}
	return s
}

func TestMemoryStoreUniqueConstraints(t *testing.T) {
	ctx := context.Background()
	s := seedMemoryStore(t)

	err := s.CreateUser(ctx, domain.User{ID: "u3", Email: "ada@example.com", Name: "Other"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate email, got %v", err)
	}
	err = s.CreateReview(ctx, domain.Review{ID: "r9", UserID: "u1", BookID: "b1", Rating: 1})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate review, got %v", err)
	}
	err = s.CreateReview(ctx, domain.Review{ID: "r9", UserID: "u1", BookID: "missing", Rating: 1})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected missing book, got %v", err)
	}
}

func TestMemoryStoreDeleteBookCascadesReviews(t *testing.T) {
	ctx := context.Background()
	s := seedMemoryStore(t)

	if err := s.DeleteBook(ctx, "b1"); err != nil {
		t.Fatalf("delete book: %v", err)
	}
	ratings, err := s.Ratings(ctx, RatingFilter{BookID: "b1"})
	if err != nil {
		t.Fatalf("ratings: %v", err)
	}
	if len(ratings) != 0 {
		t.Fatalf("expected reviews of deleted book to be gone, got %v", ratings)
	}
	if _, ok, _ := s.GetReview(ctx, "r3"); !ok {
		t.Fatalf("expected unrelated review to survive")
	}
	if err := s.DeleteBook(ctx, "b1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestMemoryStoreDeleteUserCascadesReviews(t *testing.T) {
	ctx := context.Background()
	s := seedMemoryStore(t)

	if err := s.DeleteUser(ctx, "u1"); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	reviews, total, err := s.ListReviews(ctx, ReviewQuery{})
	if err != nil {
		t.Fatalf("list reviews: %v", err)
	}
	if total != 1 || len(reviews) != 1 || reviews[0].ID != "r2" {
		t.Fatalf("expected only r2 to remain, got %d %+v", total, reviews)
	}
}

func TestMemoryStoreListBooksFilters(t *testing.T) {
	ctx := context.Background()
	s := seedMemoryStore(t)

	books, total, err := s.ListBooks(ctx, BookQuery{Genre: "Romance"})
	if err != nil {
		t.Fatalf("list books: %v", err)
	}
	if total != 2 || books[0].ID != "b3" {
		t.Fatalf("expected romance books newest first, got %d %+v", total, books)
	}

	books, total, err = s.ListBooks(ctx, BookQuery{Search: "austen", Offset: 1, Limit: 1})
	if err != nil {
		t.Fatalf("search books: %v", err)
	}
	if total != 2 || len(books) != 1 || books[0].ID != "b2" {
		t.Fatalf("unexpected search page: %d %+v", total, books)
	}

	books, _, _ = s.ListBooks(ctx, BookQuery{Search: "Science Fiction"})
	if len(books) != 1 || books[0].ID != "b1" {
		t.Fatalf("expected genre search to match dune, got %+v", books)
	}

	books, _, _ = s.ListBooks(ctx, BookQuery{Offset: 10, Limit: 10})
	if len(books) != 0 {
		t.Fatalf("expected empty page past the end, got %+v", books)
	}

	books, total, err = s.ListBooks(ctx, BookQuery{Offset: -200, Limit: 100})
	if err != nil || len(books) != 0 || total != 3 {
		t.Fatalf("expected negative offset to yield an empty page, got %d %+v %v", total, books, err)
	}
}

func TestMemoryStoreListGenres(t *testing.T) {
	s := seedMemoryStore(t)
	genres, err := s.ListGenres(context.Background())
	if err != nil {
		t.Fatalf("list genres: %v", err)
	}
	want := []domain.GenreCount{
		{Genre: "Romance", Count: 2},
		{Genre: "Classic", Count: 1},
		{Genre: "Science Fiction", Count: 1},
	}
	if len(genres) != len(want) {
		t.Fatalf("genres = %+v", genres)
	}
	for i := range want {
		if genres[i] != want[i] {
			t.Fatalf("genre %d = %+v, want %+v", i, genres[i], want[i])
		}
	}
}

func TestMemoryStoreReviewRefsAndAggregates(t *testing.T) {
	ctx := context.Background()
	s := seedMemoryStore(t)

	r, ok, err := s.GetReview(ctx, "r2")
	if err != nil || !ok {
		t.Fatalf("get review: %v %v", ok, err)
	}
	if r.Book == nil || r.Book.Title != "Dune" || r.User == nil || r.User.Name != "Bob" {
		t.Fatalf("expected refs, got %+v", r)
	}

	byBook, err := s.RatingsByBook(ctx, []string{"b1", "b3"})
	if err != nil {
		t.Fatalf("ratings by book: %v", err)
	}
	if len(byBook["b1"]) != 2 || len(byBook["b3"]) != 0 {
		t.Fatalf("unexpected ratings by book: %+v", byBook)
	}

	counts, err := s.CountReviewsByUser(ctx, []string{"u1", "u2"})
	if err != nil {
		t.Fatalf("count reviews: %v", err)
	}
	if counts["u1"] != 2 || counts["u2"] != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

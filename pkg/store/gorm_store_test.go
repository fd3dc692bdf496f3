package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"

	"bookreview/pkg/domain"
)

// testDatabaseEnv names a disposable Postgres database for the integration
// tests below. They are skipped when it is unset.
const testDatabaseEnv = "BOOKREVIEW_TEST_DATABASE_URL"

func TestClassifyError(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "idx_user_email"})
	if err := classifyError(unique); !errors.Is(err, ErrDuplicate) || !strings.Contains(err.Error(), "idx_user_email") {
		t.Fatalf("expected duplicate with constraint name, got %v", err)
	}
	fk := &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation, ConstraintName: "fk_reviews_book"}
	if err := classifyError(fk); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for fk violation, got %v", err)
	}
	other := &pgconn.PgError{Code: pgerrcode.CheckViolation}
	if err := classifyError(other); errors.Is(err, ErrDuplicate) || errors.Is(err, ErrNotFound) {
		t.Fatalf("check violation must pass through, got %v", err)
	}
	if classifyError(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}

func TestLikePatternEscapesWildcards(t *testing.T) {
	if got, want := likePattern(`100%_\`), `%100\%\_\\%`; got != want {
		t.Fatalf("likePattern = %q, want %q", got, want)
	}
}

func TestBookFromModelRejectsCorruptGenres(t *testing.T) {
	if _, err := bookFromModel(BookModel{ID: "b1", Genres: datatypes.JSON(`{"genre":"Fiction"}`)}); err == nil {
		t.Fatalf("expected decode error for non-array genres")
	}
	book, err := bookFromModel(BookModel{ID: "b2"})
	if err != nil {
		t.Fatalf("empty genres: %v", err)
	}
	if book.Genres == nil || len(book.Genres) != 0 {
		t.Fatalf("expected empty non-nil genres, got %#v", book.Genres)
	}
	book, err = bookFromModel(BookModel{ID: "b3", Genres: datatypes.JSON(`["Fiction","Classic"]`)})
	if err != nil || len(book.Genres) != 2 || book.Genres[1] != "Classic" {
		t.Fatalf("unexpected genres %v: %v", book.Genres, err)
	}
}

func newTestGormStore(t *testing.T) *GormStore {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv(testDatabaseEnv))
	if dsn == "" {
		t.Skipf("%s not set", testDatabaseEnv)
	}
	s, err := NewGormStore(dsn)
	if err != nil {
		t.Fatalf("open gorm store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGormStoreConstraintsAndCascade(t *testing.T) {
	ctx := context.Background()
	s := newTestGormStore(t)
	tag := uuid.NewString()[:8]
	now := time.Now().UTC().Truncate(time.Millisecond)

	user := domain.User{ID: uuid.NewString(), Email: tag + "@example.com", Name: "Ada", PasswordHash: "x", CreatedAt: now, UpdatedAt: now}
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	t.Cleanup(func() { _ = s.DeleteUser(context.Background(), user.ID) })

	twin := user
	twin.ID = uuid.NewString()
	if err := s.CreateUser(ctx, twin); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate email, got %v", err)
	}

	book := domain.Book{ID: uuid.NewString(), Title: tag + " Dune", Author: "Frank Herbert", Genres: []string{"Science Fiction"}, Published: now, CreatedAt: now, UpdatedAt: now}
	if err := s.CreateBook(ctx, book); err != nil {
		t.Fatalf("create book: %v", err)
	}
	t.Cleanup(func() { _ = s.DeleteBook(context.Background(), book.ID) })

	review := domain.Review{ID: uuid.NewString(), BookID: book.ID, UserID: user.ID, Rating: 4.5, CreatedAt: now, UpdatedAt: now}
	if err := s.CreateReview(ctx, review); err != nil {
		t.Fatalf("create review: %v", err)
	}
	again := review
	again.ID = uuid.NewString()
	if err := s.CreateReview(ctx, again); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate review, got %v", err)
	}
	orphan := review
	orphan.ID, orphan.BookID = uuid.NewString(), uuid.NewString()
	if err := s.CreateReview(ctx, orphan); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for unknown book, got %v", err)
	}

	ratings, err := s.RatingsByBook(ctx, []string{book.ID})
	if err != nil || len(ratings[book.ID]) != 1 || ratings[book.ID][0] != 4.5 {
		t.Fatalf("unexpected ratings %v: %v", ratings, err)
	}

	if err := s.DeleteBook(ctx, book.ID); err != nil {
		t.Fatalf("delete book: %v", err)
	}
	if _, ok, err := s.GetReview(ctx, review.ID); err != nil || ok {
		t.Fatalf("expected review to cascade with its book, ok=%v err=%v", ok, err)
	}
	if err := s.DeleteBook(ctx, book.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestGormStoreBookSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestGormStore(t)
	tag := uuid.NewString()[:8]
	genre := tag + "-noir"
	base := time.Now().UTC().Truncate(time.Millisecond)

	books := []domain.Book{
		{Title: tag + " 100% Pure", Author: "A", Genres: []string{genre, "Classic"}},
		{Title: tag + " 1000 Years", Author: "B", Genres: []string{"Classic"}},
		{Title: tag + " x_y", Author: "C", Genres: []string{genre}},
		{Title: tag + " xzy", Author: "D", Genres: []string{"Classic"}},
	}
	for i := range books {
		books[i].ID = uuid.NewString()
		books[i].Published = base
		books[i].CreatedAt = base.Add(time.Duration(i) * time.Second)
		books[i].UpdatedAt = books[i].CreatedAt
		if err := s.CreateBook(ctx, books[i]); err != nil {
			t.Fatalf("create book %d: %v", i, err)
		}
		id := books[i].ID
		t.Cleanup(func() { _ = s.DeleteBook(context.Background(), id) })
	}

	tests := []struct {
		name string
		q    BookQuery
		want []string
	}{
		{name: "percent is literal", q: BookQuery{Search: tag + " 100%"}, want: []string{books[0].ID}},
		{name: "underscore is literal", q: BookQuery{Search: tag + " x_y"}, want: []string{books[2].ID}},
		{name: "case insensitive title", q: BookQuery{Search: strings.ToUpper(tag) + " 1000"}, want: []string{books[1].ID}},
		{name: "search matches exact genre", q: BookQuery{Search: genre}, want: []string{books[2].ID, books[0].ID}},
		{name: "genre filter", q: BookQuery{Genre: genre}, want: []string{books[2].ID, books[0].ID}},
		{name: "genre filter is exact", q: BookQuery{Genre: tag}, want: nil},
		{name: "windowed", q: BookQuery{Genre: genre, Offset: 1, Limit: 1}, want: []string{books[0].ID}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, total, err := s.ListBooks(ctx, tc.q)
			if err != nil {
				t.Fatalf("list books: %v", err)
			}
			if tc.q.Limit == 0 && total != int64(len(tc.want)) {
				t.Fatalf("total = %d, want %d", total, len(tc.want))
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d books, want %d", len(got), len(tc.want))
			}
			for i, b := range got {
				if b.ID != tc.want[i] {
					t.Fatalf("book %d = %s, want %s", i, b.ID, tc.want[i])
				}
			}
		})
	}
}

package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"bookreview/pkg/domain"
)

// MemoryStore implements Store in process memory. It enforces the same
// unique keys and cascading deletes as the Postgres schema.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]domain.User
	books   map[string]domain.Book
	reviews map[string]domain.Review
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]domain.User),
		books:   make(map[string]domain.Book),
		reviews: make(map[string]domain.Review),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return fmt.Errorf("%w: user id", ErrDuplicate)
	}
	if s.emailTakenLocked(u.Email, "") {
		return fmt.Errorf("%w: user email", ErrDuplicate)
	}
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore) UpdateUser(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return ErrNotFound
	}
	if s.emailTakenLocked(u.Email, u.ID) {
		return fmt.Errorf("%w: user email", ErrDuplicate)
	}
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	for rid, r := range s.reviews {
		if r.UserID == id {
			delete(s.reviews, rid)
		}
	}
	return nil
}

func (s *MemoryStore) GetUserByID(_ context.Context, id string) (domain.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (domain.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

func (s *MemoryStore) HasUserEmail(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.emailTakenLocked(email, ""), nil
}

func (s *MemoryStore) ListUsers(_ context.Context, q UserQuery) ([]domain.User, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []domain.User
	for _, u := range s.users {
		if q.Search != "" && !containsFold(u.Name, q.Search) && !containsFold(u.Email, q.Search) {
			continue
		}
		matched = append(matched, u)
	}
	sort.Slice(matched, func(i, j int) bool {
		return newerFirst(matched[i].CreatedAt.UnixNano(), matched[j].CreatedAt.UnixNano(), matched[i].ID, matched[j].ID)
	})
	return paginate(matched, q.Offset, q.Limit), int64(len(matched)), nil
}

func (s *MemoryStore) CreateBook(_ context.Context, b domain.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[b.ID]; ok {
		return fmt.Errorf("%w: book id", ErrDuplicate)
	}
	s.books[b.ID] = cloneBook(b)
	return nil
}

func (s *MemoryStore) UpdateBook(_ context.Context, b domain.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[b.ID]; !ok {
		return ErrNotFound
	}
	s.books[b.ID] = cloneBook(b)
	return nil
}

func (s *MemoryStore) DeleteBook(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[id]; !ok {
		return ErrNotFound
	}
	delete(s.books, id)
	for rid, r := range s.reviews {
		if r.BookID == id {
			delete(s.reviews, rid)
		}
	}
	return nil
}

func (s *MemoryStore) GetBook(_ context.Context, id string) (domain.Book, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[id]
	if !ok {
		return domain.Book{}, false, nil
	}
	return cloneBook(b), true, nil
}

func (s *MemoryStore) ListBooks(_ context.Context, q BookQuery) ([]domain.Book, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []domain.Book
	for _, b := range s.books {
		if q.Genre != "" && !hasGenre(b, q.Genre) {
			continue
		}
		if q.Search != "" && !containsFold(b.Title, q.Search) && !containsFold(b.Author, q.Search) && !hasGenre(b, q.Search) {
			continue
		}
		matched = append(matched, cloneBook(b))
	}
	sort.Slice(matched, func(i, j int) bool {
		return newerFirst(matched[i].CreatedAt.UnixNano(), matched[j].CreatedAt.UnixNano(), matched[i].ID, matched[j].ID)
	})
	return paginate(matched, q.Offset, q.Limit), int64(len(matched)), nil
}

func (s *MemoryStore) ListGenres(_ context.Context) ([]domain.GenreCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	for _, b := range s.books {
		for _, g := range b.Genres {
			counts[g]++
		}
	}
	out := make([]domain.GenreCount, 0, len(counts))
	for g, c := range counts {
		out = append(out, domain.GenreCount{Genre: g, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Genre < out[j].Genre
	})
	return out, nil
}

func (s *MemoryStore) CreateReview(_ context.Context, r domain.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[r.BookID]; !ok {
		return fmt.Errorf("%w: review book", ErrNotFound)
	}
	if _, ok := s.users[r.UserID]; !ok {
		return fmt.Errorf("%w: review user", ErrNotFound)
	}
	if _, ok := s.reviews[r.ID]; ok {
		return fmt.Errorf("%w: review id", ErrDuplicate)
	}
	for _, existing := range s.reviews {
		if existing.UserID == r.UserID && existing.BookID == r.BookID {
			return fmt.Errorf("%w: review user/book", ErrDuplicate)
		}
	}
	r.Book, r.User = nil, nil
	s.reviews[r.ID] = r
	return nil
}

func (s *MemoryStore) UpdateReview(_ context.Context, r domain.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.reviews[r.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Rating = r.Rating
	existing.Comment = r.Comment
	existing.UpdatedAt = r.UpdatedAt
	s.reviews[r.ID] = existing
	return nil
}

func (s *MemoryStore) DeleteReview(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reviews[id]; !ok {
		return ErrNotFound
	}
	delete(s.reviews, id)
	return nil
}

func (s *MemoryStore) GetReview(_ context.Context, id string) (domain.Review, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviews[id]
	if !ok {
		return domain.Review{}, false, nil
	}
	return s.withRefsLocked(r), true, nil
}

func (s *MemoryStore) FindReview(_ context.Context, userID, bookID string) (domain.Review, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.reviews {
		if r.UserID == userID && r.BookID == bookID {
			return r, true, nil
		}
	}
	return domain.Review{}, false, nil
}

func (s *MemoryStore) ListReviews(_ context.Context, q ReviewQuery) ([]domain.Review, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := s.filterReviewsLocked(RatingFilter{BookID: q.BookID, UserID: q.UserID})
	sort.Slice(matched, func(i, j int) bool {
		return newerFirst(matched[i].CreatedAt.UnixNano(), matched[j].CreatedAt.UnixNano(), matched[i].ID, matched[j].ID)
	})
	page := paginate(matched, q.Offset, q.Limit)
	for i := range page {
		page[i] = s.withRefsLocked(page[i])
	}
	return page, int64(len(matched)), nil
}

func (s *MemoryStore) Ratings(_ context.Context, f RatingFilter) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reviews := s.filterReviewsLocked(f)
	out := make([]float64, 0, len(reviews))
	for _, r := range reviews {
		out = append(out, r.Rating)
	}
	return out, nil
}

func (s *MemoryStore) RatingsByBook(_ context.Context, bookIDs []string) (map[string][]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[string]struct{}, len(bookIDs))
	for _, id := range bookIDs {
		want[id] = struct{}{}
	}
	out := make(map[string][]float64, len(bookIDs))
	for _, r := range s.reviews {
		if _, ok := want[r.BookID]; ok {
			out[r.BookID] = append(out[r.BookID], r.Rating)
		}
	}
	return out, nil
}

func (s *MemoryStore) CountReviewsByUser(_ context.Context, userIDs []string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		want[id] = struct{}{}
	}
	out := make(map[string]int, len(userIDs))
	for _, r := range s.reviews {
		if _, ok := want[r.UserID]; ok {
			out[r.UserID]++
		}
	}
	return out, nil
}

func (s *MemoryStore) filterReviewsLocked(f RatingFilter) []domain.Review {
	var out []domain.Review
	for _, r := range s.reviews {
		if f.BookID != "" && r.BookID != f.BookID {
			continue
		}
		if f.UserID != "" && r.UserID != f.UserID {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (s *MemoryStore) withRefsLocked(r domain.Review) domain.Review {
	if b, ok := s.books[r.BookID]; ok {
		r.Book = &domain.BookRef{ID: b.ID, Title: b.Title, Author: b.Author}
	}
	if u, ok := s.users[r.UserID]; ok {
		r.User = &domain.UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
	}
	return r
}

func (s *MemoryStore) emailTakenLocked(email, exceptID string) bool {
	for id, u := range s.users {
		if id != exceptID && u.Email == email {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset < 0 || offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func newerFirst(a, b int64, aID, bID string) bool {
	if a != b {
		return a > b
	}
	return aID < bID
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func hasGenre(b domain.Book, genre string) bool {
	for _, g := range b.Genres {
		if g == genre {
			return true
		}
	}
	return false
}

func cloneBook(b domain.Book) domain.Book {
	b.Genres = append([]string(nil), b.Genres...)
	if b.Genres == nil {
		b.Genres = []string{}
	}
	return b
}

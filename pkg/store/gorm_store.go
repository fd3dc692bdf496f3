package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"bookreview/pkg/domain"
)

const migrateLockID int64 = 51842203

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, migrate); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func migrate(tx *gorm.DB) error {
	if err := tx.AutoMigrate(&UserModel{}, &BookModel{}, &ReviewModel{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := tx.Exec(`
		DO $$
		BEGIN
			DELETE FROM review_models r
			WHERE NOT EXISTS (SELECT 1 FROM book_models b WHERE b.id = r.book_id)
			   OR NOT EXISTS (SELECT 1 FROM user_models u WHERE u.id = r.user_id);
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE table_schema = 'public'
				AND table_name = 'review_models'
				AND constraint_name = 'review_models_book_id_fkey'
			) THEN
				ALTER TABLE review_models
				ADD CONSTRAINT review_models_book_id_fkey
				FOREIGN KEY (book_id) REFERENCES book_models(id) ON DELETE CASCADE;
			END IF;
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE table_schema = 'public'
				AND table_name = 'review_models'
				AND constraint_name = 'review_models_user_id_fkey'
			) THEN
				ALTER TABLE review_models
				ADD CONSTRAINT review_models_user_id_fkey
				FOREIGN KEY (user_id) REFERENCES user_models(id) ON DELETE CASCADE;
			END IF;
		END $$;
	`).Error; err != nil {
		return fmt.Errorf("ensure review foreign keys: %w", err)
	}
	if err := tx.Exec(`
		DO $$
		BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.check_constraints
				WHERE constraint_name = 'review_models_rating_range'
			) THEN
				ALTER TABLE review_models
				ADD CONSTRAINT review_models_rating_range CHECK (rating >= 1 AND rating <= 5);
			END IF;
		END $$;
	`).Error; err != nil {
		return fmt.Errorf("ensure rating range check: %w", err)
	}
	return nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// Ping checks database connectivity.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateUser inserts a user; a taken email yields ErrDuplicate.
func (s *GormStore) CreateUser(ctx context.Context, u domain.User) error {
	model := userToModel(u)
	return classifyError(s.db.WithContext(ctx).Create(&model).Error)
}

// UpdateUser rewrites the mutable user columns.
func (s *GormStore) UpdateUser(ctx context.Context, u domain.User) error {
	res := s.db.WithContext(ctx).Model(&UserModel{}).Where("id = ?", u.ID).Updates(map[string]any{
		"email":         u.Email,
		"name":          u.Name,
		"password_hash": u.PasswordHash,
		"updated_at":    u.UpdatedAt,
	})
	return rowsOrNotFound(res)
}

// DeleteUser removes a user; their reviews go with them.
func (s *GormStore) DeleteUser(ctx context.Context, id string) error {
	return rowsOrNotFound(s.db.WithContext(ctx).Delete(&UserModel{}, "id = ?", id))
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(ctx context.Context, id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListUsers returns one page of users, newest first, and the filtered total.
func (s *GormStore) ListUsers(ctx context.Context, q UserQuery) ([]domain.User, int64, error) {
	filter := func(tx *gorm.DB) *gorm.DB {
		if q.Search != "" {
			pattern := likePattern(q.Search)
			tx = tx.Where("name ILIKE ? OR email ILIKE ?", pattern, pattern)
		}
		return tx
	}
	var total int64
	if err := s.db.WithContext(ctx).Model(&UserModel{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var models []UserModel
	if err := s.db.WithContext(ctx).Scopes(filter, window(q.Offset, q.Limit)).
		Order("created_at DESC").Order("id").Find(&models).Error; err != nil {
		return nil, 0, err
	}
	users := make([]domain.User, 0, len(models))
	for _, m := range models {
		users = append(users, userFromModel(m))
	}
	return users, total, nil
}

// CreateBook inserts a book.
func (s *GormStore) CreateBook(ctx context.Context, b domain.Book) error {
	model, err := bookToModel(b)
	if err != nil {
		return err
	}
	return classifyError(s.db.WithContext(ctx).Create(&model).Error)
}

// UpdateBook rewrites the mutable book columns.
func (s *GormStore) UpdateBook(ctx context.Context, b domain.Book) error {
	model, err := bookToModel(b)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&BookModel{}).Where("id = ?", b.ID).Updates(map[string]any{
		"title":      model.Title,
		"author":     model.Author,
		"genres":     model.Genres,
		"published":  model.Published,
		"updated_at": model.UpdatedAt,
	})
	return rowsOrNotFound(res)
}

// DeleteBook removes a book; its reviews go with it.
func (s *GormStore) DeleteBook(ctx context.Context, id string) error {
	return rowsOrNotFound(s.db.WithContext(ctx).Delete(&BookModel{}, "id = ?", id))
}

// GetBook returns a book by ID.
func (s *GormStore) GetBook(ctx context.Context, id string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	book, err := bookFromModel(model)
	if err != nil {
		return domain.Book{}, false, err
	}
	return book, true, nil
}

// ListBooks returns one page of books, newest first, and the filtered total.
func (s *GormStore) ListBooks(ctx context.Context, q BookQuery) ([]domain.Book, int64, error) {
	filter := func(tx *gorm.DB) *gorm.DB {
		if q.Genre != "" {
			tx = tx.Where("genres @> ?::jsonb", genreContains(q.Genre))
		}
		if q.Search != "" {
			pattern := likePattern(q.Search)
			tx = tx.Where("title ILIKE ? OR author ILIKE ? OR genres @> ?::jsonb",
				pattern, pattern, genreContains(q.Search))
		}
		return tx
	}
	var total int64
	if err := s.db.WithContext(ctx).Model(&BookModel{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var models []BookModel
	if err := s.db.WithContext(ctx).Scopes(filter, window(q.Offset, q.Limit)).
		Order("created_at DESC").Order("id").Find(&models).Error; err != nil {
		return nil, 0, err
	}
	books := make([]domain.Book, 0, len(models))
	for _, m := range models {
		b, err := bookFromModel(m)
		if err != nil {
			return nil, 0, err
		}
		books = append(books, b)
	}
	return books, total, nil
}

// ListGenres counts books per genre label, most common first.
func (s *GormStore) ListGenres(ctx context.Context) ([]domain.GenreCount, error) {
	var rows []struct {
		Genre string
		Count int
	}
	if err := s.db.WithContext(ctx).Raw(`
		SELECT g.genre AS genre, COUNT(*) AS count
		FROM book_models b
		CROSS JOIN LATERAL jsonb_array_elements_text(b.genres) AS g(genre)
		GROUP BY g.genre
		ORDER BY count DESC, g.genre ASC
	`).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.GenreCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.GenreCount{Genre: r.Genre, Count: r.Count})
	}
	return out, nil
}

// CreateReview inserts a review. A second review of the same book by the
// same user yields ErrDuplicate; a missing book or user yields ErrNotFound.
func (s *GormStore) CreateReview(ctx context.Context, r domain.Review) error {
	model := reviewToModel(r)
	return classifyError(s.db.WithContext(ctx).Create(&model).Error)
}

// UpdateReview rewrites rating and comment.
func (s *GormStore) UpdateReview(ctx context.Context, r domain.Review) error {
	res := s.db.WithContext(ctx).Model(&ReviewModel{}).Where("id = ?", r.ID).Updates(map[string]any{
		"rating":     r.Rating,
		"comment":    r.Comment,
		"updated_at": r.UpdatedAt,
	})
	return rowsOrNotFound(res)
}

// DeleteReview removes a review.
func (s *GormStore) DeleteReview(ctx context.Context, id string) error {
	return rowsOrNotFound(s.db.WithContext(ctx).Delete(&ReviewModel{}, "id = ?", id))
}

// GetReview returns a review with its book and user references.
func (s *GormStore) GetReview(ctx context.Context, id string) (domain.Review, bool, error) {
	var model ReviewModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Review{}, false, nil
		}
		return domain.Review{}, false, err
	}
	reviews := []domain.Review{reviewFromModel(model)}
	if err := s.attachRefs(ctx, reviews); err != nil {
		return domain.Review{}, false, err
	}
	return reviews[0], true, nil
}

// FindReview returns the review a user wrote for a book, if any.
func (s *GormStore) FindReview(ctx context.Context, userID, bookID string) (domain.Review, bool, error) {
	var model ReviewModel
	err := s.db.WithContext(ctx).Where("user_id = ? AND book_id = ?", userID, bookID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Review{}, false, nil
		}
		return domain.Review{}, false, err
	}
	return reviewFromModel(model), true, nil
}

// ListReviews returns one page of reviews, newest first, with references.
func (s *GormStore) ListReviews(ctx context.Context, q ReviewQuery) ([]domain.Review, int64, error) {
	filter := reviewFilter(RatingFilter{BookID: q.BookID, UserID: q.UserID})
	var total int64
	if err := s.db.WithContext(ctx).Model(&ReviewModel{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var models []ReviewModel
	if err := s.db.WithContext(ctx).Scopes(filter, window(q.Offset, q.Limit)).
		Order("created_at DESC").Order("id").Find(&models).Error; err != nil {
		return nil, 0, err
	}
	reviews := make([]domain.Review, 0, len(models))
	for _, m := range models {
		reviews = append(reviews, reviewFromModel(m))
	}
	if err := s.attachRefs(ctx, reviews); err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

// Ratings returns every rating matching the filter.
func (s *GormStore) Ratings(ctx context.Context, f RatingFilter) ([]float64, error) {
	var ratings []float64
	if err := s.db.WithContext(ctx).Model(&ReviewModel{}).Scopes(reviewFilter(f)).
		Pluck("rating", &ratings).Error; err != nil {
		return nil, err
	}
	return ratings, nil
}

// RatingsByBook groups ratings by book for the given IDs.
func (s *GormStore) RatingsByBook(ctx context.Context, bookIDs []string) (map[string][]float64, error) {
	out := make(map[string][]float64, len(bookIDs))
	if len(bookIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		BookID string
		Rating float64
	}
	if err := s.db.WithContext(ctx).Model(&ReviewModel{}).Select("book_id, rating").
		Where("book_id IN ?", bookIDs).Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.BookID] = append(out[r.BookID], r.Rating)
	}
	return out, nil
}

// CountReviewsByUser counts reviews per user for the given IDs.
func (s *GormStore) CountReviewsByUser(ctx context.Context, userIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		UserID string
		Count  int
	}
	if err := s.db.WithContext(ctx).Model(&ReviewModel{}).Select("user_id, COUNT(*) AS count").
		Where("user_id IN ?", userIDs).Group("user_id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.UserID] = r.Count
	}
	return out, nil
}

func (s *GormStore) attachRefs(ctx context.Context, reviews []domain.Review) error {
	if len(reviews) == 0 {
		return nil
	}
	bookIDs := make([]string, 0, len(reviews))
	userIDs := make([]string, 0, len(reviews))
	for _, r := range reviews {
		bookIDs = append(bookIDs, r.BookID)
		userIDs = append(userIDs, r.UserID)
	}
	var books []BookModel
	if err := s.db.WithContext(ctx).Select("id, title, author").Where("id IN ?", bookIDs).Find(&books).Error; err != nil {
		return fmt.Errorf("load review books: %w", err)
	}
	var users []UserModel
	if err := s.db.WithContext(ctx).Select("id, name, email").Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return fmt.Errorf("load review users: %w", err)
	}
	bookRefs := make(map[string]*domain.BookRef, len(books))
	for _, b := range books {
		bookRefs[b.ID] = &domain.BookRef{ID: b.ID, Title: b.Title, Author: b.Author}
	}
	userRefs := make(map[string]*domain.UserRef, len(users))
	for _, u := range users {
		userRefs[u.ID] = &domain.UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
	}
	for i := range reviews {
		reviews[i].Book = bookRefs[reviews[i].BookID]
		reviews[i].User = userRefs[reviews[i].UserID]
	}
	return nil
}

func reviewFilter(f RatingFilter) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if f.BookID != "" {
			tx = tx.Where("book_id = ?", f.BookID)
		}
		if f.UserID != "" {
			tx = tx.Where("user_id = ?", f.UserID)
		}
		return tx
	}
}

func window(offset, limit int) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if offset > 0 {
			tx = tx.Offset(offset)
		}
		if limit > 0 {
			tx = tx.Limit(limit)
		}
		return tx
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func genreContains(genre string) string {
	raw, _ := json.Marshal([]string{genre})
	return string(raw)
}

func rowsOrNotFound(res *gorm.DB) error {
	if res.Error != nil {
		return classifyError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// classifyError maps Postgres constraint violations onto store sentinels.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		case pgerrcode.ForeignKeyViolation:
			return fmt.Errorf("%w: %s", ErrNotFound, pgErr.ConstraintName)
		}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		Name:         m.Name,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func bookToModel(b domain.Book) (BookModel, error) {
	genres := b.Genres
	if genres == nil {
		genres = []string{}
	}
	raw, err := json.Marshal(genres)
	if err != nil {
		return BookModel{}, fmt.Errorf("encode genres: %w", err)
	}
	return BookModel{
		ID:        b.ID,
		Title:     b.Title,
		Author:    b.Author,
		Genres:    raw,
		Published: b.Published,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}, nil
}

func bookFromModel(m BookModel) (domain.Book, error) {
	genres := []string{}
	if len(m.Genres) > 0 {
		if err := json.Unmarshal(m.Genres, &genres); err != nil {
			return domain.Book{}, fmt.Errorf("decode genres of book %s: %w", m.ID, err)
		}
	}
	return domain.Book{
		ID:        m.ID,
		Title:     m.Title,
		Author:    m.Author,
		Genres:    genres,
		Published: m.Published.UTC(),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}, nil
}

func reviewToModel(r domain.Review) ReviewModel {
	return ReviewModel{
		ID:        r.ID,
		UserID:    r.UserID,
		BookID:    r.BookID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func reviewFromModel(m ReviewModel) domain.Review {
	return domain.Review{
		ID:        m.ID,
		UserID:    m.UserID,
		BookID:    m.BookID,
		Rating:    m.Rating,
		Comment:   m.Comment,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

package domain

import (
	"time"

	"bookreview/pkg/rating"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Book struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Genres    []string  `json:"genre"`
	Published time.Time `json:"published"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Review is one user's rating of one book. Book and User are populated by
// list and detail reads only.
type Review struct {
	ID        string    `json:"id"`
	BookID    string    `json:"bookId"`
	UserID    string    `json:"userId"`
	Rating    float64   `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Book      *BookRef  `json:"book,omitempty"`
	User      *UserRef  `json:"user,omitempty"`
}

// BookRef is the slice of a book embedded in review listings.
type BookRef struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

// UserRef is the slice of a user embedded in review listings.
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// BookSummary is a book as listed: with its rounded average and review count.
type BookSummary struct {
	Book
	AverageRating float64 `json:"averageRating"`
	ReviewCount   int     `json:"reviewCount"`
}

// BookDetail is the single-book view with recent reviews and rating stats.
type BookDetail struct {
	Book
	AverageRating float64     `json:"averageRating"`
	Reviews       []Review    `json:"reviews"`
	ReviewStats   ReviewStats `json:"reviewStats"`
}

// ReviewStats is the per-book rating breakdown.
type ReviewStats struct {
	TotalReviews       int             `json:"totalReviews"`
	AverageRating      float64         `json:"averageRating"`
	RatingDistribution []rating.Bucket `json:"ratingDistribution"`
}

// GlobalStats covers every review in the system. Max and Min are nil when
// there are no reviews.
type GlobalStats struct {
	AverageRating      float64       `json:"averageRating"`
	TotalReviews       int           `json:"totalReviews"`
	MaxRating          *float64      `json:"maxRating"`
	MinRating          *float64      `json:"minRating"`
	RatingDistribution []RatingCount `json:"ratingDistribution"`
}

// RatingCount is a distribution bucket without a percentage.
type RatingCount struct {
	Rating float64 `json:"rating"`
	Count  int     `json:"count"`
}

// PersonalStats summarises one user's reviews.
type PersonalStats struct {
	TotalReviews  int     `json:"totalReviews"`
	AverageRating float64 `json:"averageRating"`
}

// GenreCount is one entry of the genre index.
type GenreCount struct {
	Genre string `json:"genre"`
	Count int    `json:"count"`
}

// UserSummary is a user with the number of reviews they have written.
type UserSummary struct {
	User
	ReviewCount int `json:"reviewCount"`
}

// UserDetail is a user with their reviews.
type UserDetail struct {
	User
	Reviews []Review `json:"reviews"`
}

// RatingCounts drops percentages from a distribution.
func RatingCounts(buckets []rating.Bucket) []RatingCount {
	out := make([]RatingCount, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, RatingCount{Rating: b.Rating, Count: b.Count})
	}
	return out
}

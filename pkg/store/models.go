package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string    `gorm:"primaryKey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	Name         string    `gorm:"not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null;index"`
	UpdatedAt    time.Time `gorm:"not null"`
}

type BookModel struct {
	ID        string         `gorm:"primaryKey"`
	Title     string         `gorm:"not null;index"`
	Author    string         `gorm:"not null;index"`
	Genres    datatypes.JSON `gorm:"type:jsonb;not null"`
	Published time.Time      `gorm:"type:date;not null"`
	CreatedAt time.Time      `gorm:"not null;index"`
	UpdatedAt time.Time      `gorm:"not null"`
}

// ReviewModel rows cascade away with their book or user; the foreign keys are
// added by migration DDL.
type ReviewModel struct {
	ID        string    `gorm:"primaryKey"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_review_user_book,priority:1"`
	BookID    string    `gorm:"not null;uniqueIndex:idx_review_user_book,priority:2;index"`
	Rating    float64   `gorm:"not null"`
	Comment   string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
}

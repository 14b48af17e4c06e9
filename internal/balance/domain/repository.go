package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*Balance, error)
	// CreateIfAbsent inserts a zeroed row and leaves an existing row untouched.
	CreateIfAbsent(ctx context.Context, db *gorm.DB, balance *Balance) error
	// UpdateIfVersion writes balance only when the stored version still equals
	// expectedVersion and reports the number of rows written.
	UpdateIfVersion(ctx context.Context, db *gorm.DB, balance *Balance, expectedVersion int64) (int64, error)
	TouchRefreshedAt(ctx context.Context, db *gorm.DB, userID string, at time.Time) error
	ListUpdatedSince(ctx context.Context, db *gorm.DB, since time.Time, afterUserID string, limit int) ([]Balance, error)
}

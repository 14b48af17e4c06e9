package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*Subscription, error)
	FindActiveByUserID(ctx context.Context, db *gorm.DB, userID string, at time.Time) (*Subscription, error)
	FindActiveByEmail(ctx context.Context, db *gorm.DB, email string, at time.Time) (*Subscription, error)
	ExpireDue(ctx context.Context, db *gorm.DB, at time.Time, limit int) (int64, error)
}

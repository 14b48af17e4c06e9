package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Profile, error)
	Upsert(ctx context.Context, db *gorm.DB, profile *Profile) error
	UpdateSubscription(ctx context.Context, db *gorm.DB, id string, planID *string, endDate *time.Time, active bool, at time.Time) (int64, error)
}

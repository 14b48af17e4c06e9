package repository

import (
	"context"
	"time"

	userdomain "github.com/rraasi/coin-service/internal/user/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() userdomain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*userdomain.Profile, error) {
	var profile userdomain.Profile
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, display_name, has_active_subscription, current_plan,
		 subscription_end_date, created_at, updated_at
		 FROM users WHERE id = ?`,
		id,
	).Scan(&profile).Error
	if err != nil {
		return nil, err
	}
	if profile.ID == "" {
		return nil, nil
	}
	return &profile, nil
}

// Upsert creates the profile or refreshes its email.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, profile *userdomain.Profile) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "updated_at"}),
	}).Create(profile).Error
}

func (r *repo) UpdateSubscription(ctx context.Context, db *gorm.DB, id string, planID *string, endDate *time.Time, active bool, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE users
		 SET has_active_subscription = ?, current_plan = ?, subscription_end_date = ?, updated_at = ?
		 WHERE id = ?`,
		active,
		planID,
		endDate,
		at,
		id,
	)
	return res.RowsAffected, res.Error
}

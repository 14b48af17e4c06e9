package repository

import (
	"context"
	"time"

	balancedomain "github.com/rraasi/coin-service/internal/balance/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() balancedomain.Repository {
	return &repo{}
}

func (r *repo) FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*balancedomain.Balance, error) {
	var balance balancedomain.Balance
	err := db.WithContext(ctx).Raw(
		`SELECT user_id, earned_coins, bonus_coins, spent_coins, total_coins, version,
		 earned_refreshed_at, last_updated, created_at
		 FROM coin_balances
		 WHERE user_id = ?`,
		userID,
	).Scan(&balance).Error
	if err != nil {
		return nil, err
	}
	if balance.UserID == "" {
		return nil, nil
	}
	return &balance, nil
}

func (r *repo) CreateIfAbsent(ctx context.Context, db *gorm.DB, balance *balancedomain.Balance) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(balance).Error
}

func (r *repo) UpdateIfVersion(ctx context.Context, db *gorm.DB, balance *balancedomain.Balance, expectedVersion int64) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE coin_balances
		 SET earned_coins = ?, bonus_coins = ?, spent_coins = ?, total_coins = ?,
		     version = ?, earned_refreshed_at = ?, last_updated = ?
		 WHERE user_id = ? AND version = ?`,
		balance.EarnedCoins,
		balance.BonusCoins,
		balance.SpentCoins,
		balance.TotalCoins,
		balance.Version,
		balance.EarnedRefreshedAt,
		balance.LastUpdated,
		balance.UserID,
		expectedVersion,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) TouchRefreshedAt(ctx context.Context, db *gorm.DB, userID string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE coin_balances SET earned_refreshed_at = ? WHERE user_id = ?`,
		at,
		userID,
	).Error
}

// ListUpdatedSince pages balances by user id among rows touched at or after since.
func (r *repo) ListUpdatedSince(ctx context.Context, db *gorm.DB, since time.Time, afterUserID string, limit int) ([]balancedomain.Balance, error) {
	var balances []balancedomain.Balance
	err := db.WithContext(ctx).Raw(
		`SELECT user_id, earned_coins, bonus_coins, spent_coins, total_coins, version,
		 earned_refreshed_at, last_updated, created_at
		 FROM coin_balances
		 WHERE last_updated >= ? AND user_id > ?
		 ORDER BY user_id ASC
		 LIMIT ?`,
		since,
		afterUserID,
		limit,
	).Scan(&balances).Error
	if err != nil {
		return nil, err
	}
	return balances, nil
}

package repository

import (
	"context"

	ledgerdomain "github.com/rraasi/coin-service/internal/ledger/domain"
	"github.com/rraasi/coin-service/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() ledgerdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, txn *ledgerdomain.Transaction) error {
	return db.WithContext(ctx).Create(txn).Error
}

// ListByUser returns newest first, strictly after the cursor when one is given.
func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID string, after *pagination.Cursor, limit int) ([]*ledgerdomain.Transaction, error) {
	query := db.WithContext(ctx).
		Model(&ledgerdomain.Transaction{}).
		Where("user_id = ?", userID)
	if after != nil {
		query = query.Where("(occurred_at < ? OR (occurred_at = ? AND id < ?))", after.Timestamp, after.Timestamp, after.ID)
	}

	var txns []*ledgerdomain.Transaction
	err := query.
		Order("occurred_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repo) TotalsByType(ctx context.Context, db *gorm.DB, userID string) ([]ledgerdomain.TypeTotal, error) {
	var totals []ledgerdomain.TypeTotal
	err := db.WithContext(ctx).Raw(
		`SELECT type, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count
		 FROM coin_transactions
		 WHERE user_id = ?
		 GROUP BY type`,
		userID,
	).Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return totals, nil
}

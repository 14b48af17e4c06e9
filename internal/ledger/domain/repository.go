package domain

import (
	"context"

	"github.com/rraasi/coin-service/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, txn *Transaction) error
	ListByUser(ctx context.Context, db *gorm.DB, userID string, after *pagination.Cursor, limit int) ([]*Transaction, error)
	TotalsByType(ctx context.Context, db *gorm.DB, userID string) ([]TypeTotal, error)
}

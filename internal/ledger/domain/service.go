package domain

import (
	"context"
	"errors"

	"github.com/rraasi/coin-service/pkg/db/pagination"
	"gorm.io/gorm"
)

type Service interface {
	Append(ctx context.Context, entry Entry) (*Transaction, error)
	// AppendTx writes the entry inside the caller's transaction.
	AppendTx(ctx context.Context, tx *gorm.DB, entry Entry) (*Transaction, error)
	History(ctx context.Context, req HistoryRequest) (*HistoryResponse, error)
	Totals(ctx context.Context, userID string) (map[TransactionType]int64, error)
}

type Entry struct {
	UserID      string
	Type        TransactionType
	Amount      int64
	FeatureID   string
	FeatureName string
	// Description defaults to the standard wording for Type when empty.
	Description string
	Metadata    map[string]any
}

type HistoryRequest struct {
	UserID string
	Limit  int
	Cursor string
}

type HistoryResponse struct {
	Transactions []*Transaction `json:"transactions"`
	pagination.PageInfo
}

var (
	ErrInvalidUserID = errors.New("invalid_user_id")
	ErrInvalidType   = errors.New("invalid_transaction_type")
	ErrInvalidAmount = errors.New("invalid_transaction_amount")
	ErrInvalidLimit  = errors.New("invalid_limit")
	ErrInvalidCursor = errors.New("invalid_cursor")
)

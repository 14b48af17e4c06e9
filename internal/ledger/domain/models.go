package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type TransactionType string

const (
	TransactionTypeSpend     TransactionType = "spend"
	TransactionTypeEarn      TransactionType = "earn"
	TransactionTypeBonus     TransactionType = "bonus"
	TransactionTypeFreeUsage TransactionType = "free_usage"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeSpend, TransactionTypeEarn, TransactionTypeBonus, TransactionTypeFreeUsage:
		return true
	default:
		return false
	}
}

// Transaction is an immutable coin log entry. Amount is unsigned; the
// direction is implied by Type.
type Transaction struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"-"`
	TransactionID string            `gorm:"type:varchar(64);not null;uniqueIndex" json:"transactionId"`
	UserID        string            `gorm:"type:varchar(128);not null;index:idx_coin_transactions_user_time,priority:1" json:"userId"`
	Type          TransactionType   `gorm:"type:varchar(16);not null" json:"type"`
	Amount        int64             `gorm:"not null" json:"amount"`
	FeatureID     *string           `gorm:"type:varchar(64)" json:"featureId"`
	FeatureName   *string           `gorm:"type:varchar(255)" json:"featureName,omitempty"`
	Description   string            `gorm:"type:text;not null" json:"description"`
	Metadata      datatypes.JSONMap `json:"metadata,omitempty"`
	OccurredAt    time.Time         `gorm:"not null;index:idx_coin_transactions_user_time,priority:2,sort:desc" json:"timestamp"`
}

func (Transaction) TableName() string { return "coin_transactions" }

// TypeTotal is the summed amount of one transaction type for a user.
type TypeTotal struct {
	Type  TransactionType
	Total int64
	Count int64
}

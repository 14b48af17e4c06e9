package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// Subscription is a paid plan period. It is keyed by user id; UserEmail is
// kept for rows written before user ids were recorded.
type Subscription struct {
	ID                snowflake.ID       `gorm:"primaryKey" json:"-"`
	UserID            string             `gorm:"type:varchar(128);index:idx_subscriptions_user_status,priority:1" json:"userId"`
	UserEmail         string             `gorm:"type:varchar(320);index:idx_subscriptions_email_status,priority:1" json:"userEmail"`
	PlanID            string             `gorm:"type:varchar(64);not null" json:"planId"`
	PlanName          string             `gorm:"type:varchar(255);not null" json:"planName"`
	Status            SubscriptionStatus `gorm:"type:varchar(32);not null;index:idx_subscriptions_user_status,priority:2;index:idx_subscriptions_email_status,priority:2" json:"status"`
	RraasiCoins       int64              `gorm:"not null" json:"rraasiCoins"`
	StartDate         time.Time          `gorm:"not null" json:"startDate"`
	EndDate           time.Time          `gorm:"not null;index" json:"endDate"`
	ProviderOrderID   string             `gorm:"type:varchar(128);uniqueIndex" json:"razorpayOrderId"`
	ProviderPaymentID string             `gorm:"type:varchar(128)" json:"razorpayPaymentId"`
	AmountPaid        int64              `gorm:"not null" json:"amountPaid"`
	Currency          string             `gorm:"type:varchar(8);not null" json:"currency"`
	CreatedAt         time.Time          `gorm:"not null" json:"createdAt"`
	UpdatedAt         time.Time          `gorm:"not null" json:"updatedAt"`
}

func (Subscription) TableName() string { return "subscriptions" }

// IsActiveAt applies lazy expiry: a row still marked active stops counting
// once now passes its end date.
func (s Subscription) IsActiveAt(now time.Time) bool {
	return s.Status == SubscriptionStatusActive && !now.After(s.EndDate)
}

// Plan is a purchasable subscription tier. Price is in the currency's minor unit.
type Plan struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DurationDays int    `json:"duration"`
	Price        int64  `json:"price"`
	Coins        int64  `json:"coins"`
	Currency     string `json:"currency"`
}

package domain

import "time"

// Profile is the slice of the user document the ledger reads and annotates.
type Profile struct {
	ID                    string     `gorm:"primaryKey;type:varchar(128)"`
	Email                 string     `gorm:"type:varchar(320);index"`
	DisplayName           string     `gorm:"type:varchar(255)"`
	HasActiveSubscription bool       `gorm:"not null;default:false"`
	CurrentPlan           *string    `gorm:"type:varchar(64)"`
	SubscriptionEndDate   *time.Time `gorm:""`
	CreatedAt             time.Time  `gorm:"not null"`
	UpdatedAt             time.Time  `gorm:"not null"`
}

func (Profile) TableName() string { return "users" }

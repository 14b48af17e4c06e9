package domain

import (
	"math"
	"time"
)

// Balance is the per-user coin counter row. TotalCoins is kept equal to
// EarnedCoins + BonusCoins - SpentCoins by every write.
type Balance struct {
	UserID            string     `gorm:"primaryKey;type:varchar(128)" json:"userId"`
	EarnedCoins       int64      `gorm:"not null;default:0" json:"earnedCoins"`
	BonusCoins        int64      `gorm:"not null;default:0" json:"bonusCoins"`
	SpentCoins        int64      `gorm:"not null;default:0" json:"spentCoins"`
	TotalCoins        int64      `gorm:"not null;default:0" json:"totalCoins"`
	Version           int64      `gorm:"not null;default:0" json:"-"`
	EarnedRefreshedAt *time.Time `json:"-"`
	LastUpdated       time.Time  `gorm:"not null;index" json:"lastUpdated"`
	CreatedAt         time.Time  `gorm:"not null" json:"-"`
}

func (Balance) TableName() string { return "coin_balances" }

// Available is the spendable amount; a negative total counts as zero.
func (b Balance) Available() int64 {
	if b.TotalCoins < 0 {
		return 0
	}
	return b.TotalCoins
}

func (b *Balance) recompute() {
	b.TotalCoins = b.EarnedCoins + b.BonusCoins - b.SpentCoins
}

// Fits reports whether adding the deltas keeps every counter, and the
// recomputed total, within int64.
func (b Balance) Fits(spentDelta, bonusDelta int64) bool {
	if spentDelta < 0 || bonusDelta < 0 {
		return false
	}
	if b.SpentCoins > math.MaxInt64-spentDelta || b.BonusCoins > math.MaxInt64-bonusDelta {
		return false
	}
	return b.EarnedCoins <= math.MaxInt64-(b.BonusCoins+bonusDelta)
}

// Apply returns the balance after adding the deltas and, when earned is
// non-nil, replacing the earned counter.
func (b Balance) Apply(spentDelta, bonusDelta int64, earned *int64, at time.Time) Balance {
	next := b
	next.SpentCoins += spentDelta
	next.BonusCoins += bonusDelta
	if earned != nil {
		next.EarnedCoins = *earned
		refreshed := at
		next.EarnedRefreshedAt = &refreshed
	}
	next.recompute()
	next.Version = b.Version + 1
	next.LastUpdated = at
	return next
}

package repository

import (
	"context"
	"time"

	subscriptiondomain "github.com/rraasi/coin-service/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

const selectColumns = `SELECT id, user_id, user_email, plan_id, plan_name, status, rraasi_coins,
	 start_date, end_date, provider_order_id, provider_payment_id, amount_paid, currency,
	 created_at, updated_at
	 FROM subscriptions`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (
			id, user_id, user_email, plan_id, plan_name, status, rraasi_coins, start_date, end_date,
			provider_order_id, provider_payment_id, amount_paid, currency, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		subscription.ID,
		subscription.UserID,
		subscription.UserEmail,
		subscription.PlanID,
		subscription.PlanName,
		subscription.Status,
		subscription.RraasiCoins,
		subscription.StartDate,
		subscription.EndDate,
		subscription.ProviderOrderID,
		subscription.ProviderPaymentID,
		subscription.AmountPaid,
		subscription.Currency,
		subscription.CreatedAt,
		subscription.UpdatedAt,
	).Error
}

func (r *repo) FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		selectColumns+` WHERE provider_order_id = ?`,
		orderID,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) FindActiveByUserID(ctx context.Context, db *gorm.DB, userID string, at time.Time) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		selectColumns+`
		 WHERE user_id = ? AND status = ? AND end_date >= ?
		 ORDER BY end_date DESC, id DESC
		 LIMIT 1`,
		userID,
		subscriptiondomain.SubscriptionStatusActive,
		at,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) FindActiveByEmail(ctx context.Context, db *gorm.DB, email string, at time.Time) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		selectColumns+`
		 WHERE user_email = ? AND status = ? AND end_date >= ?
		 ORDER BY end_date DESC, id DESC
		 LIMIT 1`,
		email,
		subscriptiondomain.SubscriptionStatusActive,
		at,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

// ExpireDue flips overdue active rows to expired, at most limit per call.
func (r *repo) ExpireDue(ctx context.Context, db *gorm.DB, at time.Time, limit int) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET status = ?, updated_at = ?
		 WHERE id IN (
			SELECT id FROM (
				SELECT id FROM subscriptions
				WHERE status = ? AND end_date < ?
				ORDER BY end_date ASC
				LIMIT ?
			) due
		 )`,
		subscriptiondomain.SubscriptionStatusExpired,
		at,
		subscriptiondomain.SubscriptionStatusActive,
		at,
		limit,
	)
	return res.RowsAffected, res.Error
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rraasi/coin-service/internal/clock"
	ledgerdomain "github.com/rraasi/coin-service/internal/ledger/domain"
	obsmetrics "github.com/rraasi/coin-service/internal/observability/metrics"
	paymentdomain "github.com/rraasi/coin-service/internal/providers/payment/domain"
	subscriptiondomain "github.com/rraasi/coin-service/internal/subscription/domain"
	userdomain "github.com/rraasi/coin-service/internal/user/domain"
	"github.com/rraasi/coin-service/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       subscriptiondomain.Repository
	Gateway    paymentdomain.Gateway
	Ledger     ledgerdomain.Service
	Users      userdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	clock      clock.Clock
	repo       subscriptiondomain.Repository
	gateway    paymentdomain.Gateway
	ledger     ledgerdomain.Service
	users      userdomain.Service
	obsMetrics *obsmetrics.Metrics

	plans  []subscriptiondomain.Plan
	planBy map[string]subscriptiondomain.Plan
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	planBy := make(map[string]subscriptiondomain.Plan, len(defaultPlans))
	for _, plan := range defaultPlans {
		planBy[plan.ID] = plan
	}
	return &Service{
		db:  p.DB,
		log: p.Log.Named("subscription.service"),

		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		gateway:    p.Gateway,
		ledger:     p.Ledger,
		users:      p.Users,
		obsMetrics: p.ObsMetrics,

		plans:  defaultPlans,
		planBy: planBy,
	}
}

func (s *Service) Plans() []subscriptiondomain.Plan {
	out := make([]subscriptiondomain.Plan, len(s.plans))
	copy(out, s.plans)
	return out
}

func (s *Service) Plan(planID string) (subscriptiondomain.Plan, bool) {
	plan, ok := s.planBy[strings.TrimSpace(planID)]
	return plan, ok
}

// ActiveForUser looks the subscription up by user id, then by the email on the
// user's profile for rows that predate user ids.
func (s *Service) ActiveForUser(ctx context.Context, userID string) (*subscriptiondomain.Subscription, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, subscriptiondomain.ErrInvalidUserID
	}

	now := s.clock.Now()
	item, err := s.repo.FindActiveByUserID(ctx, s.db, userID, now)
	if err != nil {
		return nil, fmt.Errorf("find active subscription: %w", err)
	}
	if item == nil && s.users != nil {
		email, err := s.users.EmailFor(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("resolve user email: %w", err)
		}
		if email != "" {
			item, err = s.repo.FindActiveByEmail(ctx, s.db, email, now)
			if err != nil {
				return nil, fmt.Errorf("find active subscription by email: %w", err)
			}
		}
	}
	if item == nil || !item.IsActiveAt(now) {
		return nil, nil
	}
	return item, nil
}

func (s *Service) CreateOrder(ctx context.Context, req subscriptiondomain.CreateOrderRequest) (*subscriptiondomain.CreateOrderResponse, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, subscriptiondomain.ErrInvalidUserID
	}
	plan, ok := s.Plan(req.PlanID)
	if !ok {
		return nil, subscriptiondomain.ErrInvalidPlan
	}

	order, err := s.gateway.CreateOrder(ctx, paymentdomain.OrderRequest{
		Amount:   plan.Price,
		Currency: plan.Currency,
		Receipt:  receiptFor(plan.ID, s.clock.Now()),
		Notes: map[string]string{
			"planId":    plan.ID,
			"userId":    userID,
			"userEmail": strings.TrimSpace(req.UserEmail),
			"coins":     strconv.FormatInt(plan.Coins, 10),
			"duration":  strconv.Itoa(plan.DurationDays),
		},
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment order created",
		zap.String("user_id", userID),
		zap.String("plan_id", plan.ID),
		zap.String("order_id", order.ID),
		zap.String("provider", s.gateway.Name()),
	)

	return &subscriptiondomain.CreateOrderResponse{
		ID:       order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		PlanID:   plan.ID,
		PlanName: plan.Name,
		Coins:    plan.Coins,
	}, nil
}

func receiptFor(planID string, now time.Time) string {
	receipt := fmt.Sprintf("%s_%d", planID, now.UnixMilli())
	if len(receipt) > maxReceiptLength {
		receipt = receipt[:maxReceiptLength]
	}
	return receipt
}

// Verify activates the plan paid for by orderID. A second verify of the same
// order returns the subscription created by the first.
func (s *Service) Verify(ctx context.Context, req subscriptiondomain.VerifyRequest) (*subscriptiondomain.VerifyResponse, error) {
	start := s.clock.Now()
	resp, err := s.verify(ctx, req)
	s.obsMetrics.ObservePaymentVerify(ctx, s.gateway.Name(), s.clock.Now().Sub(start))
	return resp, err
}

func (s *Service) verify(ctx context.Context, req subscriptiondomain.VerifyRequest) (*subscriptiondomain.VerifyResponse, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, subscriptiondomain.ErrInvalidUserID
	}
	orderID := strings.TrimSpace(req.OrderID)
	paymentID := strings.TrimSpace(req.PaymentID)
	signature := strings.TrimSpace(req.Signature)
	if orderID == "" || paymentID == "" || signature == "" {
		return nil, subscriptiondomain.ErrMissingPaymentFields
	}
	plan, ok := s.Plan(req.PlanID)
	if !ok {
		return nil, subscriptiondomain.ErrInvalidPlan
	}

	if err := s.gateway.VerifyPayment(orderID, paymentID, signature); err != nil {
		if errors.Is(err, paymentdomain.ErrInvalidSignature) {
			s.log.Warn("payment signature rejected",
				zap.String("user_id", userID),
				zap.String("order_id", orderID),
			)
			return nil, subscriptiondomain.ErrInvalidSignature
		}
		return nil, err
	}

	now := s.clock.Now()
	email := strings.ToLower(strings.TrimSpace(req.UserEmail))
	sub := &subscriptiondomain.Subscription{
		ID:                s.genID.Generate(),
		UserID:            userID,
		UserEmail:         email,
		PlanID:            plan.ID,
		PlanName:          plan.Name,
		Status:            subscriptiondomain.SubscriptionStatusActive,
		RraasiCoins:       plan.Coins,
		StartDate:         now,
		EndDate:           now.AddDate(0, 0, plan.DurationDays),
		ProviderOrderID:   orderID,
		ProviderPaymentID: paymentID,
		AmountPaid:        plan.Price,
		Currency:          plan.Currency,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	var existing *subscriptiondomain.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.repo.FindByOrderID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if found != nil {
			existing = found
			return nil
		}

		if err := s.repo.Insert(ctx, tx, sub); err != nil {
			return err
		}
		_, err = s.ledger.AppendTx(ctx, tx, ledgerdomain.Entry{
			UserID: userID,
			Type:   ledgerdomain.TransactionTypeEarn,
			Amount: plan.Coins,
			Metadata: map[string]any{
				"planId":         plan.ID,
				"subscriptionId": sub.ID.String(),
				"orderId":        orderID,
				"paymentId":      paymentID,
			},
		})
		return err
	})
	if err != nil && db.IsDuplicateKeyErr(err) {
		// A concurrent verify of the same order won the insert.
		existing, err = s.repo.FindByOrderID(ctx, s.db, orderID)
		if err == nil && existing == nil {
			err = fmt.Errorf("subscription for order %s vanished after conflict", orderID)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("activate subscription: %w", err)
	}

	if existing != nil {
		if existing.UserID != "" && existing.UserID != userID {
			return nil, subscriptiondomain.ErrOrderOwnerMismatch
		}
		s.log.Info("payment already verified",
			zap.String("user_id", userID),
			zap.String("order_id", orderID),
		)
		return &subscriptiondomain.VerifyResponse{
			Subscription: summaryOf(existing),
			CoinsAdded:   existing.RraasiCoins,
			Replayed:     true,
		}, nil
	}

	if s.users != nil {
		err := s.users.RecordSubscription(ctx, userdomain.RecordSubscriptionRequest{
			UserID:  userID,
			Email:   email,
			PlanID:  plan.ID,
			EndDate: sub.EndDate,
		})
		if err != nil {
			s.log.Warn("failed to update user profile after subscription",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}

	s.obsMetrics.RecordSubscriptionActivated(ctx, plan.ID)
	s.log.Info("subscription activated",
		zap.String("user_id", userID),
		zap.String("plan_id", plan.ID),
		zap.String("order_id", orderID),
		zap.Time("end_date", sub.EndDate),
	)

	return &subscriptiondomain.VerifyResponse{
		Subscription: summaryOf(sub),
		CoinsAdded:   plan.Coins,
	}, nil
}

func summaryOf(sub *subscriptiondomain.Subscription) subscriptiondomain.SubscriptionSummary {
	return subscriptiondomain.SubscriptionSummary{
		PlanID:    sub.PlanID,
		PlanName:  sub.PlanName,
		Coins:     sub.RraasiCoins,
		StartDate: sub.StartDate,
		EndDate:   sub.EndDate,
	}
}

// ExpireDue marks lapsed active rows as expired. Reads already treat them as
// inactive; this only keeps the stored status honest.
func (s *Service) ExpireDue(ctx context.Context, limit int) (int64, error) {
	if limit <= 0 {
		limit = 500
	}
	n, err := s.repo.ExpireDue(ctx, s.db, s.clock.Now(), limit)
	if err != nil {
		return 0, fmt.Errorf("expire subscriptions: %w", err)
	}
	return n, nil
}

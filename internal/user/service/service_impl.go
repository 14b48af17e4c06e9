package service

import (
	"context"
	"strings"

	"github.com/rraasi/coin-service/internal/clock"
	userdomain "github.com/rraasi/coin-service/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  userdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  userdomain.Repository
}

func New(p Params) userdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("user.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Get(ctx context.Context, id string) (*userdomain.Profile, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, userdomain.ErrInvalidUserID
	}
	profile, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, userdomain.ErrUserNotFound
	}
	return profile, nil
}

func (s *Service) EmailFor(ctx context.Context, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", userdomain.ErrInvalidUserID
	}
	profile, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return "", err
	}
	if profile == nil {
		return "", nil
	}
	return normalizeEmail(profile.Email), nil
}

// Touch records the identity seen on an authenticated request.
func (s *Service) Touch(ctx context.Context, id, email string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return userdomain.ErrInvalidUserID
	}
	now := s.clock.Now()
	return s.repo.Upsert(ctx, s.db, &userdomain.Profile{
		ID:        id,
		Email:     normalizeEmail(email),
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (s *Service) RecordSubscription(ctx context.Context, req userdomain.RecordSubscriptionRequest) error {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return userdomain.ErrInvalidUserID
	}
	now := s.clock.Now()
	planID := req.PlanID
	endDate := req.EndDate

	rows, err := s.repo.UpdateSubscription(ctx, s.db, userID, &planID, &endDate, true, now)
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	profile := &userdomain.Profile{
		ID:                    userID,
		Email:                 normalizeEmail(req.Email),
		HasActiveSubscription: true,
		CurrentPlan:           &planID,
		SubscriptionEndDate:   &endDate,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.repo.Upsert(ctx, s.db, profile); err != nil {
		return err
	}
	_, err = s.repo.UpdateSubscription(ctx, s.db, userID, &planID, &endDate, true, now)
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

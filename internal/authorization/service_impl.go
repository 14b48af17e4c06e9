package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

// ObjectCoins is the only protected resource: the coin ledger.
const ObjectCoins = "coins"

const (
	ActionBonusGrant = "bonus.grant"
	ActionStatsView  = "stats.view"
)

const (
	roleAdmin   = "role:admin"
	roleSupport = "role:support"
)

// defaultPolicies are seeded on boot. Support staff read usage stats but
// cannot mint coins.
var defaultPolicies = [][]string{
	{roleAdmin, ObjectCoins, ActionBonusGrant},
	{roleAdmin, ObjectCoins, ActionStatsView},
	{roleSupport, ObjectCoins, ActionStatsView},
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

// ServiceImpl answers capability checks. The admin claim on the token maps to
// role:admin for the request only; standing grants live in casbin_rule as
// "g, user:<id>, role:<name>" rows.
type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if missing := missingPolicies(enforcer); len(missing) > 0 {
		if _, err := enforcer.AddPolicies(missing); err != nil {
			return nil, err
		}
	}
	return enforcer, nil
}

func missingPolicies(enforcer *casbin.SyncedEnforcer) [][]string {
	var missing [][]string
	for _, rule := range defaultPolicies {
		if has, _ := enforcer.HasPolicy(rule); !has {
			missing = append(missing, rule)
		}
	}
	return missing
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(_ context.Context, actor Actor, object string, action string) error {
	userID := strings.TrimSpace(actor.UserID)
	object = strings.TrimSpace(object)
	action = strings.TrimSpace(action)
	switch {
	case userID == "":
		return ErrInvalidActor
	case object == "":
		return ErrInvalidObject
	case action == "":
		return ErrInvalidAction
	}

	subjects := []string{"user:" + userID}
	if actor.Admin {
		subjects = append(subjects, roleAdmin)
	}

	for _, sub := range subjects {
		allowed, err := s.enforcer.Enforce(sub, object, action)
		if err != nil {
			return err
		}
		if !allowed {
			continue
		}
		if action == ActionBonusGrant {
			s.log.Info("bonus grant authorized",
				zap.String("user_id", userID),
				zap.String("via", sub),
			)
		}
		return nil
	}

	s.log.Warn("authorization denied",
		zap.String("user_id", userID),
		zap.String("object", object),
		zap.String("action", action),
	)
	return ErrForbidden
}

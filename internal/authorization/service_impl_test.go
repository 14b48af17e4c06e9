package authorization

import (
	"context"
	"testing"

	"github.com/casbin/casbin/v2"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestEnforcer(t *testing.T) (*casbin.SyncedEnforcer, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)
	return enforcer, db
}

func newTestService(t *testing.T) Service {
	t.Helper()
	enforcer, _ := newTestEnforcer(t)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestAdminMayGrantBonus(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.NoError(t, svc.Authorize(ctx, Actor{UserID: "admin1", Admin: true}, ObjectCoins, ActionBonusGrant))
	assert.NoError(t, svc.Authorize(ctx, Actor{UserID: "admin1", Admin: true}, ObjectCoins, ActionStatsView))
}

func TestUserMayNotGrantBonus(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	err := svc.Authorize(ctx, Actor{UserID: "u1"}, ObjectCoins, ActionBonusGrant)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDemotedAdminLosesCapability(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, Actor{UserID: "u1", Admin: true}, ObjectCoins, ActionBonusGrant))
	err := svc.Authorize(ctx, Actor{UserID: "u1"}, ObjectCoins, ActionBonusGrant)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorizeValidatesInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, Actor{}, ObjectCoins, ActionBonusGrant), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, Actor{UserID: "u1"}, "", ActionBonusGrant), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, Actor{UserID: "u1"}, ObjectCoins, " "), ErrInvalidAction)
}

func TestSupportGrantViewsStatsOnly(t *testing.T) {
	enforcer, _ := newTestEnforcer(t)
	_, err := enforcer.AddGroupingPolicy("user:agent-7", roleSupport)
	require.NoError(t, err)
	svc := NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
	ctx := context.Background()

	assert.NoError(t, svc.Authorize(ctx, Actor{UserID: "agent-7"}, ObjectCoins, ActionStatsView))
	assert.ErrorIs(t, svc.Authorize(ctx, Actor{UserID: "agent-7"}, ObjectCoins, ActionBonusGrant), ErrForbidden)
}

func TestAuthorizeDoesNotPersistTokenRoles(t *testing.T) {
	enforcer, _ := newTestEnforcer(t)
	svc := NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})

	require.NoError(t, svc.Authorize(context.Background(), Actor{UserID: "admin1", Admin: true}, ObjectCoins, ActionBonusGrant))

	links, err := enforcer.GetFilteredGroupingPolicy(0, "user:admin1")
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestSeedIsIdempotent(t *testing.T) {
	_, db := newTestEnforcer(t)
	again, err := NewEnforcer(db)
	require.NoError(t, err)

	policies, err := again.GetPolicy()
	require.NoError(t, err)
	assert.Len(t, policies, len(defaultPolicies))
}

package subscription_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webaudit_backend/internal/model"
	"webaudit_backend/pkg/subscription"
)

func newService(f *fixture) *subscription.Service {
	cache := subscription.NewMemoryDecisionCache(time.Hour, nil)
	return subscription.NewService(subscription.NewPlanStore(f.store), f.store, cache)
}

func TestHasAccess(t *testing.T) {
	f := newFixture(t)
	svc := newService(f)
	user := f.store.AddUser(model.User{PlanType: "Growth", PlanID: &f.growth.ID})
	ctx := context.Background()

	ok, err := svc.HasAccess(ctx, user.ID, subscription.SiteCrawl)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HasAccess(ctx, user.ID, subscription.APIAccess)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasAccessUsesCache(t *testing.T) {
	f := newFixture(t)
	svc := newService(f)
	user := f.store.AddUser(model.User{PlanType: "Growth", PlanID: &f.growth.ID})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := svc.HasAccess(ctx, user.ID, subscription.SiteCrawl)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, f.store.Calls("FindUser"))

	svc.InvalidateUser(ctx, user.ID)
	_, err := svc.HasAccess(ctx, user.ID, subscription.SiteCrawl)
	require.NoError(t, err)
	assert.Equal(t, 2, f.store.Calls("FindUser"))
}

func TestHasAccessErrorsAreNotCached(t *testing.T) {
	f := newFixture(t)
	svc := newService(f)
	user := f.store.AddUser(model.User{PlanType: "Growth", PlanID: &f.growth.ID})
	ctx := context.Background()

	f.store.FailFindUser = subscription.ErrDatabaseUnavailable
	ok, err := svc.HasAccess(ctx, user.ID, subscription.SiteCrawl)
	assert.ErrorIs(t, err, subscription.ErrDatabaseUnavailable)
	assert.False(t, ok)

	f.store.FailFindUser = nil
	ok, err = svc.HasAccess(ctx, user.ID, subscription.SiteCrawl)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasAccessWithoutCache(t *testing.T) {
	f := newFixture(t)
	svc := subscription.NewService(subscription.NewPlanStore(f.store), f.store, nil)
	user := f.store.AddUser(model.User{PlanType: "Starter"})

	ok, err := svc.HasAccess(context.Background(), user.ID, subscription.BasicAudit)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestProjectQuota(t *testing.T) {
	f := newFixture(t)
	svc := newService(f)
	ctx := context.Background()

	starter := f.store.AddUser(model.User{PlanType: "Starter"})
	f.store.SetProjectCount(starter.ID, 1)
	quota, err := svc.ProjectQuota(ctx, starter.ID)
	require.NoError(t, err)
	assert.Equal(t, &subscription.ProjectQuota{
		PlanType: "Starter", MaxProjects: 1, ProjectCount: 1, CanCreate: false,
	}, quota)

	scale := f.store.AddUser(model.User{PlanType: "Scale"})
	f.store.SetProjectCount(scale.ID, 500)
	quota, err = svc.ProjectQuota(ctx, scale.ID)
	require.NoError(t, err)
	assert.True(t, quota.Unlimited)
	assert.True(t, quota.CanCreate)
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	svc := newService(f)
	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	cycle := "monthly"
	user := f.store.AddUser(model.User{
		PlanType: "Growth", PlanID: &f.growth.ID, PlanExpiresAt: &expires, BillingCycle: &cycle,
	})
	f.store.SetProjectCount(user.ID, 4)

	summary, err := svc.Summary(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, f.growth.ID, summary.PlanID)
	assert.Equal(t, "Growth", summary.PlanName)
	assert.Equal(t, "plan_id", summary.ResolvedBy)
	assert.Contains(t, summary.Features, subscription.PerformanceAudit)
	assert.Equal(t, int64(4), summary.Quota.ProjectCount)
	assert.True(t, summary.Quota.CanCreate)
	assert.Equal(t, &expires, summary.PlanExpiresAt)
}

func TestSummaryNoPlanAvailable(t *testing.T) {
	f := newFixture(t)
	svc := subscription.NewService(subscription.NewPlanStore(f.store, subscription.WithStrategies()), f.store, nil)
	user := f.store.AddUser(model.User{PlanType: "Growth"})

	_, err := svc.Summary(context.Background(), user.ID)
	assert.ErrorIs(t, err, subscription.ErrNoPlanAvailable)
}

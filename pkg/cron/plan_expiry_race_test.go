package cron

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"webaudit_backend/internal/model"
	"webaudit_backend/pkg/database"
	"webaudit_backend/pkg/database/databasetest"
	"webaudit_backend/pkg/seed"
	"webaudit_backend/pkg/subscription"
)

// interleavingStore runs between once, after selection and before the first
// downgrade, to simulate work done concurrently by another writer.
type interleavingStore struct {
	*database.Repository
	between func()
	once    sync.Once
}

func (s *interleavingStore) DowngradeUser(ctx context.Context, userID uuid.UUID, plan *model.Plan, now time.Time) error {
	s.once.Do(s.between)
	return s.Repository.DowngradeUser(ctx, userID, plan, now)
}

func newSQLExpiryFixture(t *testing.T) (*gorm.DB, *database.Repository, model.User, time.Time) {
	t.Helper()
	db := databasetest.Open(t)
	_, err := seed.SeedPlans(context.Background(), db)
	require.NoError(t, err)

	now := time.Now().UTC()
	expired := now.Add(-time.Hour)
	cycle := "monthly"
	user := model.User{
		Email: "lapsed@example.com", PlanType: "Growth", MaxProjects: 10,
		PlanExpiresAt: &expired, BillingCycle: &cycle,
	}
	require.NoError(t, db.Create(&user).Error)
	return db, database.NewRepository(db), user, now
}

func TestRunOverlappingRunsDowngradeOnce(t *testing.T) {
	_, repo, user, now := newSQLExpiryFixture(t)
	clock := WithClock(func() time.Time { return now })
	plans := subscription.NewPlanStore(repo)

	var concurrent *ExpiryResult
	store := &interleavingStore{Repository: repo}
	store.between = func() {
		var err error
		concurrent, err = NewPlanExpiryJob(repo, plans, clock).Run(context.Background())
		require.NoError(t, err)
	}

	result, err := NewPlanExpiryJob(store, plans, clock).Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, concurrent)
	assert.Equal(t, 1, concurrent.Processed)
	assert.Zero(t, result.Processed)
	assert.Zero(t, result.Failed)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.SkippedUsers, 1)
	assert.Equal(t, user.ID, result.SkippedUsers[0].UserID)

	ledger, err := repo.ListLedgerEntries(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Len(t, ledger, 1)
}

func TestRunLeavesRenewedUserAlone(t *testing.T) {
	db, repo, user, now := newSQLExpiryFixture(t)
	renewedUntil := now.Add(30 * 24 * time.Hour)

	store := &interleavingStore{Repository: repo}
	store.between = func() {
		require.NoError(t, db.Model(&model.User{}).Where("id = ?", user.ID).
			Update("plan_expires_at", renewedUntil).Error)
	}

	var hooked []uuid.UUID
	job := NewPlanExpiryJob(store, subscription.NewPlanStore(repo),
		WithClock(func() time.Time { return now }),
		WithDowngradeHook(func(_ context.Context, id uuid.UUID) { hooked = append(hooked, id) }),
	)

	result, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Processed)
	assert.Zero(t, result.Failed)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, hooked)

	got, err := repo.FindUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Growth", got.PlanType)
	require.NotNil(t, got.PlanExpiresAt)
	assert.True(t, got.PlanExpiresAt.After(now))

	ledger, err := repo.ListLedgerEntries(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Empty(t, ledger)
}

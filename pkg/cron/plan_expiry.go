package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"webaudit_backend/internal/model"
	"webaudit_backend/pkg/metrics"
	"webaudit_backend/pkg/subscription"
)

// ExpiryStore is the storage the plan expiry job mutates.
type ExpiryStore interface {
	// ListExpiredUsers returns users on a non-Starter plan whose expiry is set
	// and earlier than now.
	ListExpiredUsers(ctx context.Context, now time.Time) ([]model.User, error)
	// DowngradeUser applies plan only while the user still matches the
	// selection at now, and reports subscription.ErrNoLongerExpired otherwise.
	DowngradeUser(ctx context.Context, userID uuid.UUID, plan *model.Plan, now time.Time) error
	CreateLedgerEntry(ctx context.Context, entry *model.Payment) error
}

type StarterPlanSource interface {
	StarterPlan(ctx context.Context) (*model.Plan, error)
}

type DowngradedUser struct {
	UserID       uuid.UUID `json:"user_id"`
	Email        string    `json:"email"`
	PreviousPlan string    `json:"previous_plan"`
	ExpiredAt    time.Time `json:"expired_at"`
}

type FailedUser struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Error  string    `json:"error"`
}

type SkippedUser struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
}

// ExpiryResult summarizes one run. Downgrade failures and ledger failures are
// reported separately: a user in LedgerFailures was still downgraded. Users in
// SkippedUsers were renewed or downgraded elsewhere after selection.
type ExpiryResult struct {
	RanAt          time.Time        `json:"ran_at"`
	Processed      int              `json:"processed"`
	Failed         int              `json:"failed"`
	Skipped        int              `json:"skipped"`
	ProcessedUsers []DowngradedUser `json:"processed_users"`
	FailedUsers    []FailedUser     `json:"failed_users"`
	SkippedUsers   []SkippedUser    `json:"skipped_users"`
	LedgerFailures []FailedUser     `json:"ledger_failures"`
}

// PlanExpiryJob downgrades users whose paid plan has lapsed to the Starter
// plan. It defines no schedule of its own.
type PlanExpiryJob struct {
	store       ExpiryStore
	plans       StarterPlanSource
	now         func() time.Time
	onDowngrade func(ctx context.Context, userID uuid.UUID)
}

type ExpiryOption func(*PlanExpiryJob)

func WithClock(now func() time.Time) ExpiryOption {
	return func(j *PlanExpiryJob) {
		j.now = now
	}
}

// WithDowngradeHook runs fn after each successful downgrade, e.g. to drop
// cached feature decisions for the user.
func WithDowngradeHook(fn func(ctx context.Context, userID uuid.UUID)) ExpiryOption {
	return func(j *PlanExpiryJob) {
		j.onDowngrade = fn
	}
}

func NewPlanExpiryJob(store ExpiryStore, plans StarterPlanSource, opts ...ExpiryOption) *PlanExpiryJob {
	j := &PlanExpiryJob{
		store: store,
		plans: plans,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run processes every expired user once. It only returns an error when the
// batch cannot start (selection or Starter resolution failed) or ctx is
// cancelled; per-user failures are collected in the result.
func (j *PlanExpiryJob) Run(ctx context.Context) (*ExpiryResult, error) {
	now := j.now().UTC()
	result := &ExpiryResult{
		RanAt:          now,
		ProcessedUsers: []DowngradedUser{},
		FailedUsers:    []FailedUser{},
		SkippedUsers:   []SkippedUser{},
		LedgerFailures: []FailedUser{},
	}

	users, err := j.store.ListExpiredUsers(ctx, now)
	if err != nil {
		metrics.ExpiryRuns.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("list expired users: %w", err)
	}
	log.Info().Int("count", len(users)).Msg("Checking for expired plans")
	if len(users) == 0 {
		j.finish(result)
		return result, nil
	}

	starter, err := j.plans.StarterPlan(ctx)
	if err != nil {
		metrics.ExpiryRuns.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("resolve starter plan: %w", err)
	}

	for _, user := range users {
		if err := ctx.Err(); err != nil {
			metrics.ExpiryRuns.WithLabelValues("cancelled").Inc()
			return result, err
		}
		j.processUser(ctx, user, starter, now, result)
	}

	j.finish(result)
	return result, nil
}

func (j *PlanExpiryJob) processUser(ctx context.Context, user model.User, starter *model.Plan, now time.Time, result *ExpiryResult) {
	var expiredAt time.Time
	if user.HasExpiringPlan() {
		expiredAt = *user.PlanExpiresAt
	}

	err := j.store.DowngradeUser(ctx, user.ID, starter, now)
	if errors.Is(err, subscription.ErrNoLongerExpired) {
		log.Info().
			Str("user_id", user.ID.String()).
			Msg("Plan no longer expired, skipping downgrade")
		metrics.ExpiryUsers.WithLabelValues("skipped").Inc()
		result.Skipped++
		result.SkippedUsers = append(result.SkippedUsers, SkippedUser{UserID: user.ID, Email: user.Email})
		return
	}
	if err != nil {
		log.Error().Err(err).
			Str("user_id", user.ID.String()).
			Str("plan_type", user.PlanType).
			Msg("Failed to downgrade expired plan")
		metrics.ExpiryUsers.WithLabelValues("failed").Inc()
		result.Failed++
		result.FailedUsers = append(result.FailedUsers, FailedUser{
			UserID: user.ID,
			Email:  user.Email,
			Error:  err.Error(),
		})
		return
	}

	metrics.ExpiryUsers.WithLabelValues("downgraded").Inc()
	result.Processed++
	result.ProcessedUsers = append(result.ProcessedUsers, DowngradedUser{
		UserID:       user.ID,
		Email:        user.Email,
		PreviousPlan: user.PlanType,
		ExpiredAt:    expiredAt,
	})
	log.Info().
		Str("user_id", user.ID.String()).
		Str("previous_plan", user.PlanType).
		Time("expired_at", expiredAt).
		Msg("Downgraded expired plan to Starter")

	if j.onDowngrade != nil {
		j.onDowngrade(ctx, user.ID)
	}

	if err := j.store.CreateLedgerEntry(ctx, downgradeEntry(user, starter, expiredAt)); err != nil {
		err = fmt.Errorf("%w: %v", subscription.ErrLedgerWriteFailed, err)
		log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("Downgrade applied but ledger entry was not written")
		metrics.ExpiryUsers.WithLabelValues("ledger_failed").Inc()
		result.LedgerFailures = append(result.LedgerFailures, FailedUser{
			UserID: user.ID,
			Email:  user.Email,
			Error:  err.Error(),
		})
	}
}

func (j *PlanExpiryJob) finish(result *ExpiryResult) {
	metrics.ExpiryRuns.WithLabelValues("success").Inc()
	metrics.ExpiryLastRun.Set(float64(result.RanAt.Unix()))
	log.Info().
		Int("processed", result.Processed).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Int("ledger_failures", len(result.LedgerFailures)).
		Msg("Plan expiry run finished")
}

func downgradeEntry(user model.User, starter *model.Plan, expiredAt time.Time) *model.Payment {
	planID := starter.ID
	currency := starter.Currency
	if currency == "" {
		currency = "INR"
	}
	return &model.Payment{
		UserID:   user.ID,
		PlanID:   &planID,
		PlanType: string(subscription.StarterPlan),
		Amount:   0,
		Currency: currency,
		Status:   model.PaymentStatusCompleted,
		Kind:     model.PaymentKindAutoDowngrade,
		Notes: fmt.Sprintf("Automatic downgrade from %s to %s: plan expired on %s",
			user.PlanType, subscription.StarterPlan, expiredAt.UTC().Format(time.RFC3339)),
	}
}

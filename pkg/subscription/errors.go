package subscription

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")
	// ErrPlanNotFound is reported by a resolution strategy that has no match;
	// the plan store moves on to the next strategy.
	ErrPlanNotFound = errors.New("plan not found")
	// ErrNoPlanAvailable means not even the Starter plan exists. It is a
	// configuration error, not a per-user one.
	ErrNoPlanAvailable     = errors.New("no plan available")
	ErrDatabaseUnavailable = errors.New("database unavailable")
	ErrLedgerWriteFailed   = errors.New("ledger write failed")
	// ErrNoLongerExpired is returned by a downgrade whose user was renewed,
	// already downgraded, or otherwise left the expired set after selection.
	ErrNoLongerExpired = errors.New("plan no longer expired")
)

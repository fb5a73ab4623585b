package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type User struct {
	ID    uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Email string    `json:"email" gorm:"uniqueIndex;not null"`

	// Plan assignment. AllowedFeatures and MaxProjects mirror the assigned plan
	// at the time it was applied.
	PlanType        string                      `json:"plan_type" gorm:"not null;default:'Starter';index"`
	PlanID          *uuid.UUID                  `json:"plan_id" gorm:"type:uuid"`
	MaxProjects     int                         `json:"max_projects" gorm:"not null;default:1"`
	AllowedFeatures datatypes.JSONSlice[string] `json:"allowed_features"`
	PlanExpiresAt   *time.Time                  `json:"plan_expires_at" gorm:"index"`
	BillingCycle    *string                     `json:"billing_cycle"`

	IsBlocked bool      `json:"is_blocked" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Projects []Project `json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// HasExpiringPlan reports whether the user's plan carries an expiry timestamp.
func (u *User) HasExpiringPlan() bool {
	return u.PlanExpiresAt != nil
}

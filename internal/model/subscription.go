package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Plan is a named bundle of entitlements. PlanType is not unique: inactive rows
// may share a type with the active one.
type Plan struct {
	ID           uuid.UUID                   `json:"id" gorm:"type:uuid;primaryKey"`
	Name         string                      `json:"name" gorm:"not null"`
	PlanType     string                      `json:"plan_type" gorm:"not null;index"`
	Features     datatypes.JSONSlice[string] `json:"features"`
	MaxProjects  *int                        `json:"max_projects"` // -1 is unlimited
	Price        int64                       `json:"price" gorm:"not null;default:0"`
	Currency     string                      `json:"currency" gorm:"not null;default:'INR'"`
	BillingCycle string                      `json:"billing_cycle"`
	IsActive     bool                        `json:"is_active" gorm:"not null"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

func (p *Plan) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Payment statuses and kinds used by the ledger.
const (
	PaymentStatusCompleted = "completed"

	PaymentKindPurchase      = "purchase"
	PaymentKindAutoDowngrade = "auto_downgrade"
)

// ValidPaymentKind reports whether kind is a known ledger entry kind.
func ValidPaymentKind(kind string) bool {
	switch kind {
	case PaymentKindPurchase, PaymentKindAutoDowngrade:
		return true
	}
	return false
}

// Payment is an append-only ledger row. Rows are never updated once written.
type Payment struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	PlanID    *uuid.UUID `json:"plan_id" gorm:"type:uuid"`
	PlanType  string     `json:"plan_type" gorm:"not null"`
	Amount    int64      `json:"amount" gorm:"not null"` // minor units
	Currency  string     `json:"currency" gorm:"not null"`
	Status    string     `json:"status" gorm:"not null"`
	Kind      string     `json:"kind" gorm:"not null;index"`
	Notes     string     `json:"notes"`
	CreatedAt time.Time  `json:"created_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

package model

import "time"

type SubscriptionState string

const (
	SubscriptionActive   SubscriptionState = "active"
	SubscriptionPastDue  SubscriptionState = "past_due"
	SubscriptionCanceled SubscriptionState = "canceled"
	SubscriptionGrace    SubscriptionState = "grace"
	SubscriptionTrial    SubscriptionState = "trial"
)

func (s SubscriptionState) Valid() bool {
	switch s {
	case SubscriptionActive, SubscriptionPastDue, SubscriptionCanceled, SubscriptionGrace, SubscriptionTrial:
		return true
	default:
		return false
	}
}

// Tenant 代表一个接入方 (isolated customer account)
type Tenant struct {
	ID                    string            `json:"id" gorm:"primaryKey"`
	Name                  string            `json:"name"`
	Plan                  Plan              `json:"plan" gorm:"type:text;not null;default:'free'"`
	Usage                 int64             `json:"usage" gorm:"not null;default:0"` // 当月累计事件数，由外部任务按月清零
	SubscriptionState     SubscriptionState `json:"subscriptionState" gorm:"type:text;not null;default:'active'"`
	SubscriptionExpiresAt *time.Time        `json:"subscriptionExpiresAt,omitempty"`
	GracePeriodEndsAt     *time.Time        `json:"gracePeriodEndsAt,omitempty"`
	BillingCustomerID     string            `json:"billingCustomerId,omitempty"`
	CreatedAt             time.Time         `json:"createdAt"`
	UpdatedAt             time.Time         `json:"updatedAt"`
}

// Clone returns a copy safe to hand out from in-memory stores.
func (t *Tenant) Clone() *Tenant {
	if t == nil {
		return nil
	}
	cp := *t
	if t.SubscriptionExpiresAt != nil {
		v := *t.SubscriptionExpiresAt
		cp.SubscriptionExpiresAt = &v
	}
	if t.GracePeriodEndsAt != nil {
		v := *t.GracePeriodEndsAt
		cp.GracePeriodEndsAt = &v
	}
	return &cp
}

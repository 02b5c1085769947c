package model

import "time"

// IngestResponse is returned on accepted submissions.
type IngestResponse struct {
	EventID string `json:"eventId"`
	Status  string `json:"status"`
}

// EndpointRequest is the body of endpoint create and update calls.
// Pointer fields distinguish "absent" from zero values on PATCH.
type EndpointRequest struct {
	Name      *string  `json:"name"`
	URL       *string  `json:"url"`
	Active    *bool    `json:"active"`
	RateLimit *float64 `json:"rateLimit"`
}

// PlanChangeRequest is sent by the billing integration after checkout.
type PlanChangeRequest struct {
	Plan                  string             `json:"plan" binding:"required"`
	SubscriptionState     *SubscriptionState `json:"subscriptionState,omitempty"`
	SubscriptionExpiresAt *time.Time         `json:"subscriptionExpiresAt,omitempty"`
	GracePeriodEndsAt     *time.Time         `json:"gracePeriodEndsAt,omitempty"`
	BillingCustomerID     *string            `json:"billingCustomerId,omitempty"`
}

type PlanChangeResult struct {
	OldPlan Plan `json:"oldPlan"`
	NewPlan Plan `json:"newPlan"`
	Changed bool `json:"changed"`
}

// EventList wraps list responses.
type EventList struct {
	Events        []*Event `json:"events"`
	RetentionDays int      `json:"retentionDays"`
}

// PlanUpdate is the validated form of PlanChangeRequest handed to the tenant store.
type PlanUpdate struct {
	Plan                  Plan
	SubscriptionState     *SubscriptionState
	SubscriptionExpiresAt *time.Time
	GracePeriodEndsAt     *time.Time
	BillingCustomerID     *string
}

// Apply copies the update onto t.
func (u PlanUpdate) Apply(t *Tenant) {
	t.Plan = u.Plan
	if u.SubscriptionState != nil {
		t.SubscriptionState = *u.SubscriptionState
	}
	if u.SubscriptionExpiresAt != nil {
		v := *u.SubscriptionExpiresAt
		t.SubscriptionExpiresAt = &v
	}
	if u.GracePeriodEndsAt != nil {
		v := *u.GracePeriodEndsAt
		t.GracePeriodEndsAt = &v
	}
	if u.BillingCustomerID != nil {
		t.BillingCustomerID = *u.BillingCustomerID
	}
}

package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Plan is the closed set of subscription tiers. Ordering matters: free < pro < team.
type Plan uint8

const (
	PlanFree Plan = iota
	PlanPro
	PlanTeam
)

// PlanLimits holds the numeric limits attached to a plan.
type PlanLimits struct {
	MonthlyEvents int64 `json:"monthlyEvents"`
	RetentionDays int   `json:"retentionDays"`
	// requests per rate-limit window
	RequestsPerWindow int `json:"requestsPerWindow"`
}

var planNames = [...]string{
	PlanFree: "free",
	PlanPro:  "pro",
	PlanTeam: "team",
}

var planLimits = [...]PlanLimits{
	PlanFree: {MonthlyEvents: 10_000, RetentionDays: 7, RequestsPerWindow: 60},
	PlanPro:  {MonthlyEvents: 100_000, RetentionDays: 30, RequestsPerWindow: 300},
	PlanTeam: {MonthlyEvents: 1_000_000, RetentionDays: 90, RequestsPerWindow: 1200},
}

// Plans lists every tier in ascending order.
func Plans() []Plan {
	return []Plan{PlanFree, PlanPro, PlanTeam}
}

func ParsePlan(s string) (Plan, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "free":
		return PlanFree, nil
	case "pro":
		return PlanPro, nil
	case "team":
		return PlanTeam, nil
	default:
		return PlanFree, fmt.Errorf("unknown plan %q", s)
	}
}

func (p Plan) Valid() bool {
	return int(p) < len(planNames)
}

func (p Plan) String() string {
	if !p.Valid() {
		return fmt.Sprintf("plan(%d)", uint8(p))
	}
	return planNames[p]
}

// Limits returns the limits of p. An out-of-range value falls back to the free tier.
func (p Plan) Limits() PlanLimits {
	if !p.Valid() {
		return planLimits[PlanFree]
	}
	return planLimits[p]
}

func (p Plan) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid plan %d", uint8(p))
	}
	return []byte(planNames[p]), nil
}

func (p *Plan) UnmarshalText(text []byte) error {
	parsed, err := ParsePlan(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Value stores the plan by name so the column stays readable.
func (p Plan) Value() (driver.Value, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid plan %d", uint8(p))
	}
	return planNames[p], nil
}

func (p *Plan) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return p.UnmarshalText([]byte(v))
	case []byte:
		return p.UnmarshalText(v)
	case nil:
		*p = PlanFree
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Plan", src)
	}
}

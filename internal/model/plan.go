package model

import "time"

// FreePlanName is the catalog name of the default plan.
const FreePlanName = "free"

// Default allocations used when the free plan row carries zeros.
const (
	DefaultFreeChatCredits  = 50
	DefaultFreeImageCredits = 3
)

// Plan is a read-only catalog entry.
type Plan struct {
	ID           string    `json:"id" yaml:"-"`
	Name         string    `json:"name" yaml:"name"`
	ChatCredits  int       `json:"chat_credits" yaml:"chat_credits"`
	ImageCredits int       `json:"image_credits" yaml:"image_credits"`
	PriceCents   int       `json:"price_cents" yaml:"price_cents"`
	CreatedAt    time.Time `json:"created_at" yaml:"-"`
}

// Subscription statuses.
const (
	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"
)

// SubscriptionPeriod is the length of a newly created free-tier subscription.
const SubscriptionPeriod = 365 * 24 * time.Hour

// Subscription links a user to a plan.
type Subscription struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	PlanID             string    `json:"plan_id"`
	Status             string    `json:"status"`
	CurrentPeriodStart time.Time `json:"current_period_start"`
	CurrentPeriodEnd   time.Time `json:"current_period_end"`
	CreatedAt          time.Time `json:"created_at"`
	Plan               *Plan     `json:"plan,omitempty"`
}

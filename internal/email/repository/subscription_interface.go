package repository

import (
	"time"

	emaildomain "zenith-backend/internal/email/domain"
)

// SubscriptionRepository defines the interface for push/IDLE subscription
// persistence. There is at most one subscription per (user, provider);
// Upsert enforces that.
type SubscriptionRepository interface {
	// Upsert creates or updates the subscription keyed by (user, provider)
	Upsert(sub *emaildomain.Subscription) error
	// Find returns the subscription for (user, provider), or nil when absent
	Find(userID, provider string) (*emaildomain.Subscription, error)
	// Delete removes the subscription for (user, provider)
	Delete(userID, provider string) error
	// FindActive returns all active subscriptions for a provider
	FindActive(provider string) ([]emaildomain.Subscription, error)
	// FindRenewable returns subscriptions in {active, failed} whose expiry
	// is at or before the cutoff. Failed subscriptions stay visible so a
	// failed renewal is retried on the next scan.
	FindRenewable(cutoff time.Time) ([]emaildomain.Subscription, error)
	// UpdateStatus sets only the status for (user, provider)
	UpdateStatus(userID, provider, status string) error
}

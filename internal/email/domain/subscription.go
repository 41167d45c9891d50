package domain

import "time"

// Providers a mailbox subscription can belong to. Gmail and IMAP message ids
// live in independent namespaces; a subscription is always scoped to one.
const (
	ProviderGmail = "gmail"
	ProviderImap  = "imap"
)

// Subscription lifecycle states.
const (
	SubscriptionPending = "pending"
	SubscriptionActive  = "active"
	SubscriptionExpired = "expired"
	SubscriptionFailed  = "failed"
)

// Subscription records an active push/IDLE channel for one (user, provider)
// pair. There is at most one row per pair; writes are upserts keyed by it.
// For Gmail the cursor is the last persisted historyId and ExpiresAt is the
// watch expiry (Google enforces a <=7 day watch lifetime). IMAP IDLE has no
// hard expiry, so ExpiresAt stays nil.
type Subscription struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	UserID       string     `json:"user_id" gorm:"uniqueIndex:idx_sub_user_provider;not null"`
	Provider     string     `json:"provider" gorm:"uniqueIndex:idx_sub_user_provider;not null"`
	EmailAddress string     `json:"email_address" gorm:"index"`
	Cursor       *string    `json:"cursor,omitempty"`
	Topic        *string    `json:"topic,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Status       string     `json:"status" gorm:"not null"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NeedsRenewal reports whether the subscription expires within the buffer.
// Subscriptions without an expiry (IMAP) never need renewal.
func (s *Subscription) NeedsRenewal(now time.Time, buffer time.Duration) bool {
	if s.ExpiresAt == nil {
		return false
	}
	return !s.ExpiresAt.After(now.Add(buffer))
}

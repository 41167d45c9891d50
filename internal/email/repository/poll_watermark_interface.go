package repository

import (
	emaildomain "zenith-backend/internal/email/domain"
)

// PollWatermarkRepository defines the interface for poller state
// persistence. Watermarks only move forward; Advance ignores ids that do
// not sort after the stored one.
type PollWatermarkRepository interface {
	// Get returns the watermark record for a user, or nil when absent
	Get(userID string) (*emaildomain.PollWatermark, error)
	// Seed creates the record on first account connection (no-op if present)
	Seed(userID string, intervalSeconds int) error
	// ListEnabled returns all users with polling enabled
	ListEnabled() ([]emaildomain.PollWatermark, error)
	// Advance moves the provider watermark forward and stamps last_poll_at
	Advance(userID, provider, messageID string) error
	// ClearProvider resets the watermark for one provider (account disconnect)
	ClearProvider(userID, provider string) error
	// Delete removes the record entirely
	Delete(userID string) error
}

package repository

import (
	"time"

	emaildomain "zenith-backend/internal/email/domain"
)

// AnalysisRetryRepository defines the interface for the durable analysis
// retry queue. One entry per (user, provider, message); Enqueue bumps the
// attempt counter on an existing entry.
type AnalysisRetryRepository interface {
	// Enqueue inserts or bumps the retry entry for a failed analysis
	Enqueue(userID, provider, messageID string, nextRetryAt time.Time, lastError string) error
	// Due returns entries whose next_retry_at is at or before now
	Due(now time.Time, limit int) ([]emaildomain.AnalysisRetry, error)
	// Reschedule pushes an entry's next attempt into the future
	Reschedule(id string, nextRetryAt time.Time, lastError string) error
	// Remove deletes an entry (analysis succeeded or attempts exhausted)
	Remove(id string) error
	// DeleteForUser drops all entries for a (user, provider) pair
	DeleteForUser(userID, provider string) error
}

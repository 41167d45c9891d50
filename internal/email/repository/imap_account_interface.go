package repository

import (
	emaildomain "zenith-backend/internal/email/domain"
)

// ImapAccountRepository defines the interface for IMAP credential storage
type ImapAccountRepository interface {
	// Save creates or replaces the account record for a user
	Save(account *emaildomain.ImapAccount) error
	// Find returns the account for a user, or nil when absent
	Find(userID string) (*emaildomain.ImapAccount, error)
	// Delete removes the account record
	Delete(userID string) error
}

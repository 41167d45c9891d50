package domain

import (
	"time"

	"golang.org/x/oauth2"
)

// TokenUpdateFunc is a callback invoked when an OAuth token is refreshed,
// so the caller can persist the new token.
type TokenUpdateFunc = func(*oauth2.Token) error

// EmailMessage is the provider-independent shape handed to the analysis
// gateway: just enough of a message to decide whether it matters.
type EmailMessage struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	From     string `json:"from"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
}

// EmailAnalysis is the persisted result of analyzing one message.
type EmailAnalysis struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	UserID      string    `json:"user_id" gorm:"uniqueIndex:idx_analysis_user_msg;not null"`
	Provider    string    `json:"provider" gorm:"uniqueIndex:idx_analysis_user_msg;not null"`
	MessageID   string    `json:"message_id" gorm:"uniqueIndex:idx_analysis_user_msg;not null"`
	Importance  int       `json:"importance"`
	Categories  string    `json:"categories"` // comma separated
	SenderValid bool      `json:"sender_valid"`
	Summary     string    `json:"summary"`
	CreatedAt   time.Time `json:"created_at"`
}

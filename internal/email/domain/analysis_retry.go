package domain

import "time"

// AnalysisRetry is a durable retry-queue entry for a message whose analysis
// failed transiently. The watermark still advances past such messages, so
// without this record a transient AI-gateway failure would permanently skip
// the message.
type AnalysisRetry struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	UserID      string    `json:"user_id" gorm:"uniqueIndex:idx_retry_user_msg;not null"`
	Provider    string    `json:"provider" gorm:"uniqueIndex:idx_retry_user_msg;not null"`
	MessageID   string    `json:"message_id" gorm:"uniqueIndex:idx_retry_user_msg;not null"`
	Attempts    int       `json:"attempts"`
	NextRetryAt time.Time `json:"next_retry_at" gorm:"index"`
	LastError   string    `json:"last_error"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

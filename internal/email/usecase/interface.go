package usecase

import (
	"context"

	emaildomain "zenith-backend/internal/email/domain"
	"zenith-backend/pkg/gmail"
)

// MessageAnalyzer is the AI gateway used to score and summarize messages
type MessageAnalyzer interface {
	AnalyzeEmail(ctx context.Context, from, subject, body string) (*emaildomain.EmailAnalysis, error)
}

// GmailAPI is the slice of the Gmail client the ingestion pipeline uses
type GmailAPI interface {
	Watch(ctx context.Context, accessToken, refreshToken, topicName string, onTokenRefresh emaildomain.TokenUpdateFunc) (*gmail.WatchResult, error)
	StopWatch(ctx context.Context, accessToken, refreshToken string, onTokenRefresh emaildomain.TokenUpdateFunc) error
	History(ctx context.Context, accessToken, refreshToken, startHistoryID string, onTokenRefresh emaildomain.TokenUpdateFunc) ([]string, string, error)
	ListMessageIDs(ctx context.Context, accessToken, refreshToken string, max int, onTokenRefresh emaildomain.TokenUpdateFunc) ([]string, error)
	GetMessage(ctx context.Context, accessToken, refreshToken, messageID string, onTokenRefresh emaildomain.TokenUpdateFunc) (*emaildomain.EmailMessage, error)
	GetProfileAddress(ctx context.Context, accessToken, refreshToken string, onTokenRefresh emaildomain.TokenUpdateFunc) (string, error)
}

// MessageSource lists and fetches new messages for one provider. ListNew
// returns ids strictly newer than since, oldest first.
type MessageSource interface {
	Provider() string
	ListNew(ctx context.Context, userID string, since *string) ([]string, error)
	Fetch(ctx context.Context, userID, messageID string) (*emaildomain.EmailMessage, error)
}

// ImportanceNotifier pushes an alert for a message that crossed the
// importance threshold
type ImportanceNotifier interface {
	NotifyImportantEmail(ctx context.Context, userID string, msg *emaildomain.EmailMessage, analysis *emaildomain.EmailAnalysis)
}

// TopicChecker verifies that the Pub/Sub topic wired into Gmail watch
// requests actually exists
type TopicChecker interface {
	TopicExists(ctx context.Context, topicName string) (bool, error)
}

package notification

import (
	"context"
	"fmt"
	"log"

	authrepo "zenith-backend/internal/auth/repository"
	emaildomain "zenith-backend/internal/email/domain"
	"zenith-backend/pkg/fcm"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// Service delivers push notifications for important mail and fronts the
// Pub/Sub project used by Gmail watch registrations.
type Service struct {
	pubsubClient *pubsub.Client
	fcmRepo      authrepo.FCMTokenRepository
	fcmClient    *fcm.Client
	projectID    string
}

func NewService(projectID, credentialsFile string, fcmRepo authrepo.FCMTokenRepository, fcmClient *fcm.Client) (*Service, error) {
	ctx := context.Background()

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %v", err)
	}

	return &Service{
		pubsubClient: client,
		fcmRepo:      fcmRepo,
		fcmClient:    fcmClient,
		projectID:    projectID,
	}, nil
}

// TopicExists checks that the topic Gmail watches will publish to is
// actually provisioned, so a typo fails registration instead of silently
// dropping every notification.
func (s *Service) TopicExists(ctx context.Context, topicName string) (bool, error) {
	topic := s.pubsubClient.Topic(topicName)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check topic %s: %v", topicName, err)
	}
	return exists, nil
}

// NotifyImportantEmail fans an alert out to the user's registered devices
func (s *Service) NotifyImportantEmail(ctx context.Context, userID string, msg *emaildomain.EmailMessage, analysis *emaildomain.EmailAnalysis) {
	if s.fcmClient == nil || s.fcmRepo == nil {
		return
	}

	tokens, err := s.fcmRepo.GetTokensByUserID(userID)
	if err != nil {
		log.Printf("[FCM] Error getting FCM tokens for user %s: %v", userID, err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	var tokenStrings []string
	for _, t := range tokens {
		tokenStrings = append(tokenStrings, t.Token)
	}

	title := fmt.Sprintf("Important email from %s", msg.From)
	body := msg.Subject
	if len(body) > 100 {
		body = body[:97] + "..."
	}
	if body == "" {
		body = analysis.Summary
	}

	failedTokens, err := s.fcmClient.SendToDevices(ctx, tokenStrings, fcm.NotificationData{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"type":       "important_email",
			"provider":   msg.Provider,
			"messageId":  msg.ID,
			"importance": fmt.Sprintf("%d", analysis.Importance),
		},
	})
	if err != nil {
		log.Printf("[FCM] Error sending notifications for user %s: %v", userID, err)
		return
	}

	log.Printf("[FCM] Notified %d device(s) for user %s", len(tokens)-len(failedTokens), userID)

	// Cleanup failed tokens
	for _, token := range failedTokens {
		if err := s.fcmRepo.DeleteToken(token); err != nil {
			log.Printf("[FCM] Failed to delete stale token: %v", err)
		}
	}
}

// Close releases the Pub/Sub client
func (s *Service) Close() error {
	return s.pubsubClient.Close()
}

package usecase

import (
	"context"
	"log"
	"time"

	authrepo "zenith-backend/internal/auth/repository"
	emaildomain "zenith-backend/internal/email/domain"
	"zenith-backend/internal/email/repository"
)

// WebhookRenewalService keeps Gmail watch registrations alive. Watches
// expire after roughly seven days; this scheduler re-registers any
// subscription expiring within the buffer, including ones already marked
// failed so a past outage heals itself.
type WebhookRenewalService struct {
	subRepo   repository.SubscriptionRepository
	userRepo  authrepo.UserRepository
	gmail     GmailAPI
	topicName string
	buffer    time.Duration
	interval  time.Duration
	stopChan  chan struct{}
	doneChan  chan struct{}
}

func NewWebhookRenewalService(
	subRepo repository.SubscriptionRepository,
	userRepo authrepo.UserRepository,
	gmail GmailAPI,
	topicName string,
	buffer time.Duration,
	interval time.Duration,
) *WebhookRenewalService {
	return &WebhookRenewalService{
		subRepo:   subRepo,
		userRepo:  userRepo,
		gmail:     gmail,
		topicName: topicName,
		buffer:    buffer,
		interval:  interval,
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}
}

// Start begins the renewal loop
func (s *WebhookRenewalService) Start(ctx context.Context) {
	log.Printf("[Renewal] Starting webhook renewal service (interval: %s, buffer: %s)", s.interval, s.buffer)

	go func() {
		defer close(s.doneChan)

		// Run immediately on start
		s.RenewDue(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.RenewDue(ctx)
			case <-s.stopChan:
				log.Println("[Renewal] Renewal service stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the renewal loop
func (s *WebhookRenewalService) Stop() {
	close(s.stopChan)
	<-s.doneChan
}

// RenewDue renews every subscription expiring within the buffer. One
// failing subscription never blocks the rest of the scan.
func (s *WebhookRenewalService) RenewDue(ctx context.Context) {
	subs, err := s.subRepo.FindRenewable(time.Now().Add(s.buffer))
	if err != nil {
		log.Printf("[Renewal] Failed to list renewable subscriptions: %v", err)
		return
	}
	if len(subs) == 0 {
		return
	}

	log.Printf("[Renewal] %d subscription(s) due for renewal", len(subs))

	for i := range subs {
		select {
		case <-s.stopChan:
			return
		default:
		}

		sub := &subs[i]
		if sub.Provider != emaildomain.ProviderGmail {
			// IMAP subscriptions have no server-side lease to renew
			continue
		}

		if err := s.renew(ctx, sub); err != nil {
			log.Printf("[Renewal] Failed to renew subscription for user %s: %v", sub.UserID, err)
			if err := s.subRepo.UpdateStatus(sub.UserID, sub.Provider, emaildomain.SubscriptionFailed); err != nil {
				log.Printf("[Renewal] Failed to mark subscription failed for user %s: %v", sub.UserID, err)
			}
		}
	}
}

func (s *WebhookRenewalService) renew(ctx context.Context, sub *emaildomain.Subscription) error {
	user, err := s.userRepo.FindByID(sub.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return &emaildomain.ConfigError{Message: "subscription user no longer exists"}
	}

	source := &gmailSource{userRepo: s.userRepo}
	onRefresh := source.tokenUpdateCallback(sub.UserID)

	result, err := s.gmail.Watch(ctx, user.AccessToken, user.RefreshToken, s.topicName, onRefresh)
	if err != nil {
		return err
	}

	// The watch response carries the mailbox's current history id; store
	// it so the next diff starts from the renewal point. Push was live up
	// to here, so everything older was already synced.
	sub.Cursor = &result.HistoryID
	sub.ExpiresAt = &result.ExpiresAt
	sub.Status = emaildomain.SubscriptionActive

	if err := s.subRepo.Upsert(sub); err != nil {
		return err
	}

	log.Printf("[Renewal] Renewed watch for user %s (expires %s)", sub.UserID, result.ExpiresAt.Format(time.RFC3339))
	return nil
}

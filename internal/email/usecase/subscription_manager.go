package usecase

import (
	"context"
	"log"
	"time"

	authrepo "zenith-backend/internal/auth/repository"
	emaildomain "zenith-backend/internal/email/domain"
	"zenith-backend/internal/email/repository"
	"zenith-backend/pkg/imapx"
	"zenith-backend/pkg/secrets"
)

// SubscriptionManager owns the subscription lifecycle: registering push
// channels, tearing them down, and resuming IMAP connections after a
// restart.
type SubscriptionManager struct {
	subRepo       repository.SubscriptionRepository
	watermarkRepo repository.PollWatermarkRepository
	accountRepo   repository.ImapAccountRepository
	retryRepo     repository.AnalysisRetryRepository
	userRepo      authrepo.UserRepository

	gmail        GmailAPI
	topicChecker TopicChecker
	topicName    string
	idleManager  *imapx.Manager
	box          *secrets.Box
	pollInterval time.Duration
}

func NewSubscriptionManager(
	subRepo repository.SubscriptionRepository,
	watermarkRepo repository.PollWatermarkRepository,
	accountRepo repository.ImapAccountRepository,
	retryRepo repository.AnalysisRetryRepository,
	userRepo authrepo.UserRepository,
	gmail GmailAPI,
	topicChecker TopicChecker,
	topicName string,
	idleManager *imapx.Manager,
	box *secrets.Box,
	pollInterval time.Duration,
) *SubscriptionManager {
	return &SubscriptionManager{
		subRepo:       subRepo,
		watermarkRepo: watermarkRepo,
		accountRepo:   accountRepo,
		retryRepo:     retryRepo,
		userRepo:      userRepo,
		gmail:         gmail,
		topicChecker:  topicChecker,
		topicName:     topicName,
		idleManager:   idleManager,
		box:           box,
		pollInterval:  pollInterval,
	}
}

// ConnectGmail registers a Gmail watch for the user and records the
// subscription with its baseline cursor.
func (m *SubscriptionManager) ConnectGmail(ctx context.Context, userID string) (*emaildomain.Subscription, error) {
	user, err := m.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.AccessToken == "" {
		return nil, &emaildomain.AuthError{
			Provider: emaildomain.ProviderGmail,
			Message:  "user has no Google tokens",
		}
	}

	if m.topicChecker != nil {
		exists, err := m.topicChecker.TopicExists(ctx, m.topicName)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, &emaildomain.ConfigError{Message: "Pub/Sub topic " + m.topicName + " does not exist"}
		}
	}

	source := &gmailSource{userRepo: m.userRepo}
	onRefresh := source.tokenUpdateCallback(userID)

	result, err := m.gmail.Watch(ctx, user.AccessToken, user.RefreshToken, m.topicName, onRefresh)
	if err != nil {
		return nil, err
	}

	address, err := m.gmail.GetProfileAddress(ctx, user.AccessToken, user.RefreshToken, onRefresh)
	if err != nil {
		log.Printf("[Subscription] Could not resolve mailbox address for user %s: %v", userID, err)
		address = user.Email
	}

	sub := &emaildomain.Subscription{
		UserID:       userID,
		Provider:     emaildomain.ProviderGmail,
		EmailAddress: address,
		Cursor:       &result.HistoryID,
		Topic:        &m.topicName,
		ExpiresAt:    &result.ExpiresAt,
		Status:       emaildomain.SubscriptionActive,
	}
	if err := m.subRepo.Upsert(sub); err != nil {
		return nil, err
	}

	if err := m.watermarkRepo.Seed(userID, int(m.pollInterval.Seconds())); err != nil {
		log.Printf("[Subscription] Failed to seed watermark for user %s: %v", userID, err)
	}

	log.Printf("[Subscription] Gmail connected for user %s (%s)", userID, address)
	return sub, nil
}

// DisconnectGmail stops the watch and removes the subscription. The stop
// call is best effort; local state goes away regardless.
func (m *SubscriptionManager) DisconnectGmail(ctx context.Context, userID string) error {
	user, err := m.userRepo.FindByID(userID)
	if err != nil {
		return err
	}
	if user != nil && user.AccessToken != "" {
		source := &gmailSource{userRepo: m.userRepo}
		if err := m.gmail.StopWatch(ctx, user.AccessToken, user.RefreshToken, source.tokenUpdateCallback(userID)); err != nil {
			log.Printf("[Subscription] StopWatch failed for user %s: %v", userID, err)
		}
	}

	if err := m.retryRepo.DeleteForUser(userID, emaildomain.ProviderGmail); err != nil {
		log.Printf("[Subscription] Failed to drop retry entries for user %s: %v", userID, err)
	}
	if err := m.watermarkRepo.ClearProvider(userID, emaildomain.ProviderGmail); err != nil {
		log.Printf("[Subscription] Failed to clear watermark for user %s: %v", userID, err)
	}

	log.Printf("[Subscription] Gmail disconnected for user %s", userID)
	return m.subRepo.Delete(userID, emaildomain.ProviderGmail)
}

// ConnectImap stores the account (password sealed), records the
// subscription and starts the IDLE connection.
func (m *SubscriptionManager) ConnectImap(ctx context.Context, userID, host string, port int, username, password string, useTLS bool) (*emaildomain.Subscription, error) {
	ciphertext, err := m.box.Seal(password)
	if err != nil {
		return nil, err
	}

	account := &emaildomain.ImapAccount{
		UserID:             userID,
		Host:               host,
		Port:               port,
		Username:           username,
		PasswordCiphertext: ciphertext,
		UseTLS:             useTLS,
	}
	if err := m.accountRepo.Save(account); err != nil {
		return nil, err
	}

	sub := &emaildomain.Subscription{
		UserID:       userID,
		Provider:     emaildomain.ProviderImap,
		EmailAddress: username,
		Status:       emaildomain.SubscriptionActive,
	}
	if err := m.subRepo.Upsert(sub); err != nil {
		return nil, err
	}

	if err := m.watermarkRepo.Seed(userID, int(m.pollInterval.Seconds())); err != nil {
		log.Printf("[Subscription] Failed to seed watermark for user %s: %v", userID, err)
	}

	if err := m.idleManager.StartIdle(ctx, userID); err != nil {
		// The subscription stays; the connection keeps retrying and the
		// poller covers the gap
		log.Printf("[Subscription] Failed to start IDLE for user %s: %v", userID, err)
	}

	log.Printf("[Subscription] IMAP connected for user %s (%s@%s)", userID, username, host)
	return sub, nil
}

// DisconnectImap stops the IDLE connection and removes the stored account
func (m *SubscriptionManager) DisconnectImap(ctx context.Context, userID string) error {
	m.idleManager.StopIdle(userID)

	if err := m.accountRepo.Delete(userID); err != nil {
		log.Printf("[Subscription] Failed to delete IMAP account for user %s: %v", userID, err)
	}
	if err := m.retryRepo.DeleteForUser(userID, emaildomain.ProviderImap); err != nil {
		log.Printf("[Subscription] Failed to drop retry entries for user %s: %v", userID, err)
	}
	if err := m.watermarkRepo.ClearProvider(userID, emaildomain.ProviderImap); err != nil {
		log.Printf("[Subscription] Failed to clear watermark for user %s: %v", userID, err)
	}

	log.Printf("[Subscription] IMAP disconnected for user %s", userID)
	return m.subRepo.Delete(userID, emaildomain.ProviderImap)
}

// ResumeImapConnections restarts IDLE for every active IMAP subscription.
// Called once at boot; connections do not survive a process restart.
func (m *SubscriptionManager) ResumeImapConnections(ctx context.Context) {
	subs, err := m.subRepo.FindActive(emaildomain.ProviderImap)
	if err != nil {
		log.Printf("[Subscription] Failed to list IMAP subscriptions: %v", err)
		return
	}

	for i := range subs {
		if err := m.idleManager.StartIdle(ctx, subs[i].UserID); err != nil {
			log.Printf("[Subscription] Failed to resume IDLE for user %s: %v", subs[i].UserID, err)
		}
	}

	if len(subs) > 0 {
		log.Printf("[Subscription] Resumed %d IMAP connection(s)", len(subs))
	}
}

// NewImapConfigLoader resolves and unseals stored IMAP credentials for
// the connection layer.
func NewImapConfigLoader(accountRepo repository.ImapAccountRepository, box *secrets.Box) imapx.ConfigLoader {
	return func(ctx context.Context, userID string) (imapx.Config, error) {
		return LoadImapConfig(accountRepo, box, userID)
	}
}

// LoadImapConfig builds an imapx.Config from a stored account
func LoadImapConfig(accountRepo repository.ImapAccountRepository, box *secrets.Box, userID string) (imapx.Config, error) {
	account, err := accountRepo.Find(userID)
	if err != nil {
		return imapx.Config{}, err
	}
	if account == nil {
		return imapx.Config{}, &emaildomain.ConfigError{Message: "no IMAP account for user " + userID}
	}

	password, err := box.Open(account.PasswordCiphertext)
	if err != nil {
		return imapx.Config{}, err
	}

	return imapx.Config{
		Host:     account.Host,
		Port:     account.Port,
		Username: account.Username,
		Password: password,
		UseTLS:   account.UseTLS,
	}, nil
}

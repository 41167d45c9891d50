package usecase

import (
	"context"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	authrepo "zenith-backend/internal/auth/repository"
	emaildomain "zenith-backend/internal/email/domain"
	"zenith-backend/internal/email/repository"
)

// GmailNotification is the decoded payload of a Gmail push notification
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// WebhookProcessor turns Gmail push notifications into analyzed messages.
// Enqueue returns immediately; the webhook handler must always answer the
// push with 2xx, so all real work happens off the request goroutine.
type WebhookProcessor struct {
	subRepo      repository.SubscriptionRepository
	userRepo     authrepo.UserRepository
	gmail        GmailAPI
	analyzer     *Analyzer
	messageDelay time.Duration

	// Deduplication: track last historyId per user to avoid reprocessing
	// redelivered notifications
	mu            sync.Mutex
	lastHistoryID map[string]uint64
}

func NewWebhookProcessor(
	subRepo repository.SubscriptionRepository,
	userRepo authrepo.UserRepository,
	gmail GmailAPI,
	analyzer *Analyzer,
	messageDelay time.Duration,
) *WebhookProcessor {
	return &WebhookProcessor{
		subRepo:       subRepo,
		userRepo:      userRepo,
		gmail:         gmail,
		analyzer:      analyzer,
		messageDelay:  messageDelay,
		lastHistoryID: make(map[string]uint64),
	}
}

// Enqueue schedules asynchronous processing of one notification
func (w *WebhookProcessor) Enqueue(notification GmailNotification) {
	go w.process(context.Background(), notification)
}

func (w *WebhookProcessor) process(ctx context.Context, notification GmailNotification) {
	log.Printf("[PubSub] Received notification for %s (historyId: %d)", notification.EmailAddress, notification.HistoryID)

	sub, err := w.resolveSubscription(notification.EmailAddress)
	if err != nil {
		log.Printf("[PubSub] Failed to resolve subscription for %s: %v", notification.EmailAddress, err)
		return
	}
	if sub == nil {
		log.Printf("[PubSub] No active subscription for %s, dropping notification", notification.EmailAddress)
		return
	}

	if w.isDuplicate(sub.UserID, notification.HistoryID) {
		log.Printf("[PubSub] Skipping duplicate notification for user %s (historyId %d)", sub.UserID, notification.HistoryID)
		return
	}

	user, err := w.userRepo.FindByID(sub.UserID)
	if err != nil || user == nil {
		log.Printf("[PubSub] User %s not found for subscription: %v", sub.UserID, err)
		return
	}

	newCursor, ok := w.syncHistory(ctx, sub, user.AccessToken, user.RefreshToken)
	if !ok {
		// Transient sync failure: keep the stored cursor so the next
		// notification retries the exact same diff
		return
	}

	sub.Cursor = &newCursor
	if err := w.subRepo.Upsert(sub); err != nil {
		log.Printf("[PubSub] Failed to persist cursor for user %s: %v", sub.UserID, err)
	}
}

// syncHistory diffs the mailbox since the stored cursor and analyzes every
// added message. It returns the cursor to store next; ok is false when the
// diff failed transiently and the stored cursor must stay put.
func (w *WebhookProcessor) syncHistory(ctx context.Context, sub *emaildomain.Subscription, accessToken, refreshToken string) (string, bool) {
	notifiedCursor := w.currentCursor(sub.UserID)

	if sub.Cursor == nil || *sub.Cursor == "" {
		// First notification after registration lost its baseline; start
		// tracking from here
		log.Printf("[PubSub] No cursor for user %s, baselining", sub.UserID)
		return notifiedCursor, true
	}

	onRefresh := w.tokenUpdateCallback(sub.UserID)
	added, newHistoryID, err := w.gmail.History(ctx, accessToken, refreshToken, *sub.Cursor, onRefresh)
	if err != nil {
		if errors.Is(err, emaildomain.ErrCursorExpired) {
			// The retention window passed the stored cursor; that diff is
			// unrecoverable, rebase on the notified history id
			log.Printf("[PubSub] Cursor expired for user %s, rebasing at %s", sub.UserID, notifiedCursor)
			return notifiedCursor, true
		}
		log.Printf("[PubSub] History sync failed for user %s, keeping cursor: %v", sub.UserID, err)
		return "", false
	}

	for i, messageID := range added {
		if i > 0 {
			select {
			case <-ctx.Done():
				return newHistoryID, true
			case <-time.After(w.messageDelay):
			}
		}

		msg, err := w.gmail.GetMessage(ctx, accessToken, refreshToken, messageID, onRefresh)
		if err != nil {
			log.Printf("[PubSub] Failed to fetch message %s for user %s: %v", messageID, sub.UserID, err)
			continue
		}
		if err := w.analyzer.ProcessMessage(ctx, sub.UserID, msg); err != nil {
			log.Printf("[PubSub] Failed to analyze message %s for user %s: %v", messageID, sub.UserID, err)
		}
	}

	return newHistoryID, true
}

// resolveSubscription matches the notification's address against active
// Gmail subscriptions. Older subscriptions may predate address tracking,
// so an unmatched address falls back to the first active subscription.
func (w *WebhookProcessor) resolveSubscription(emailAddress string) (*emaildomain.Subscription, error) {
	subs, err := w.subRepo.FindActive(emaildomain.ProviderGmail)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, nil
	}

	for i := range subs {
		if subs[i].EmailAddress == emailAddress {
			return &subs[i], nil
		}
	}
	return &subs[0], nil
}

func (w *WebhookProcessor) isDuplicate(userID string, historyID uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if last, ok := w.lastHistoryID[userID]; ok && historyID <= last {
		return true
	}
	w.lastHistoryID[userID] = historyID
	return false
}

func (w *WebhookProcessor) currentCursor(userID string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return formatHistoryID(w.lastHistoryID[userID])
}

func (w *WebhookProcessor) tokenUpdateCallback(userID string) emaildomain.TokenUpdateFunc {
	source := &gmailSource{userRepo: w.userRepo}
	return source.tokenUpdateCallback(userID)
}

func formatHistoryID(id uint64) string {
	return strconv.FormatUint(id, 10)
}

package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	emaildomain "zenith-backend/internal/email/domain"
	"zenith-backend/internal/email/repository"
	notesdomain "zenith-backend/internal/notes/domain"
	notesrepo "zenith-backend/internal/notes/repository"
)

const (
	retryBaseDelay   = 5 * time.Minute
	maxRetryAttempts = 5
)

// Analyzer runs the AI gateway over incoming messages and persists the
// result. It is the single funnel all three channels (webhook, IDLE,
// polling) feed into, so cross-channel deduplication lives here.
type Analyzer struct {
	analysisRepo repository.EmailAnalysisRepository
	retryRepo    repository.AnalysisRetryRepository
	noteRepo     notesrepo.NoteRepository
	ai           MessageAnalyzer
	notifier     ImportanceNotifier
	threshold    int
}

func NewAnalyzer(
	analysisRepo repository.EmailAnalysisRepository,
	retryRepo repository.AnalysisRetryRepository,
	noteRepo notesrepo.NoteRepository,
	ai MessageAnalyzer,
	notifier ImportanceNotifier,
	threshold int,
) *Analyzer {
	return &Analyzer{
		analysisRepo: analysisRepo,
		retryRepo:    retryRepo,
		noteRepo:     noteRepo,
		ai:           ai,
		notifier:     notifier,
		threshold:    threshold,
	}
}

// ProcessMessage analyzes one message. Rate limiting is absorbed here: the
// message lands on the durable retry queue and nil is returned, since the
// caller's watermark must advance either way. Other errors are returned
// for the caller to log.
func (a *Analyzer) ProcessMessage(ctx context.Context, userID string, msg *emaildomain.EmailMessage) error {
	err := a.analyze(ctx, userID, msg)
	if err == nil {
		return nil
	}

	if emaildomain.IsRateLimitError(err) {
		log.Printf("[Analyzer] Rate limited analyzing message %s for user %s, queueing retry", msg.ID, userID)
		if qErr := a.retryRepo.Enqueue(userID, msg.Provider, msg.ID, time.Now().Add(retryBaseDelay), err.Error()); qErr != nil {
			log.Printf("[Analyzer] Failed to queue retry for message %s: %v", msg.ID, qErr)
		}
		return nil
	}

	return err
}

// RetryEntry re-runs analysis for a queued entry. The caller supplies the
// refetched message; success or exhausted attempts remove the entry,
// anything else reschedules it with linear backoff.
func (a *Analyzer) RetryEntry(ctx context.Context, entry *emaildomain.AnalysisRetry, msg *emaildomain.EmailMessage) {
	err := a.analyze(ctx, entry.UserID, msg)
	if err == nil {
		if rmErr := a.retryRepo.Remove(entry.ID); rmErr != nil {
			log.Printf("[Analyzer] Failed to remove retry entry %s: %v", entry.ID, rmErr)
		}
		return
	}

	if entry.Attempts >= maxRetryAttempts {
		log.Printf("[Analyzer] Giving up on message %s for user %s after %d attempts: %v",
			entry.MessageID, entry.UserID, entry.Attempts, err)
		_ = a.retryRepo.Remove(entry.ID)
		return
	}

	backoff := retryBaseDelay * time.Duration(entry.Attempts)
	if rsErr := a.retryRepo.Reschedule(entry.ID, time.Now().Add(backoff), err.Error()); rsErr != nil {
		log.Printf("[Analyzer] Failed to reschedule retry entry %s: %v", entry.ID, rsErr)
	}
}

func (a *Analyzer) analyze(ctx context.Context, userID string, msg *emaildomain.EmailMessage) error {
	// Another channel may have gotten here first
	exists, err := a.analysisRepo.Exists(userID, msg.Provider, msg.ID)
	if err != nil {
		return &emaildomain.StoreError{Op: "check analysis", Err: err}
	}
	if exists {
		log.Printf("[Analyzer] Message %s already analyzed for user %s, skipping", msg.ID, userID)
		return nil
	}

	analysis, err := a.ai.AnalyzeEmail(ctx, msg.From, msg.Subject, msg.Body)
	if err != nil {
		return err
	}

	analysis.UserID = userID
	analysis.Provider = msg.Provider
	analysis.MessageID = msg.ID
	if err := a.analysisRepo.Save(analysis); err != nil {
		return &emaildomain.StoreError{Op: "save analysis", Err: err}
	}

	log.Printf("[Analyzer] Analyzed message %s for user %s (importance %d)", msg.ID, userID, analysis.Importance)

	if analysis.Importance >= a.threshold {
		a.surfaceImportant(ctx, userID, msg, analysis)
	}

	return nil
}

// surfaceImportant records a note and pushes a device notification for a
// message above the importance threshold. Failures here never fail the
// analysis itself.
func (a *Analyzer) surfaceImportant(ctx context.Context, userID string, msg *emaildomain.EmailMessage, analysis *emaildomain.EmailAnalysis) {
	title := msg.Subject
	if title == "" {
		title = fmt.Sprintf("Email from %s", msg.From)
	}

	note := &notesdomain.Note{
		UserID:  userID,
		Title:   title,
		Content: analysis.Summary,
		Source:  "email",
	}
	if err := a.noteRepo.Create(note); err != nil {
		log.Printf("[Analyzer] Failed to create note for message %s: %v", msg.ID, err)
	}

	if a.notifier != nil {
		a.notifier.NotifyImportantEmail(ctx, userID, msg, analysis)
	}
}

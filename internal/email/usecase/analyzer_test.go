package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	emaildomain "zenith-backend/internal/email/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnalyzer(analysisRepo *fakeAnalysisRepo, retryRepo *fakeRetryRepo, noteRepo *fakeNoteRepo, ai *fakeAI, notifier *fakeNotifier) *Analyzer {
	return NewAnalyzer(analysisRepo, retryRepo, noteRepo, ai, notifier, 7)
}

func TestAnalyzerSavesResult(t *testing.T) {
	analysisRepo := newFakeAnalysisRepo()
	retryRepo := &fakeRetryRepo{}
	noteRepo := &fakeNoteRepo{}
	ai := &fakeAI{}
	analyzer := newTestAnalyzer(analysisRepo, retryRepo, noteRepo, ai, &fakeNotifier{})

	msg := &emaildomain.EmailMessage{ID: "msg-1", Provider: emaildomain.ProviderGmail, From: "a@example.com", Subject: "status"}
	require.NoError(t, analyzer.ProcessMessage(context.Background(), "user-1", msg))

	require.Len(t, analysisRepo.saved, 1)
	saved := analysisRepo.saved[0]
	assert.Equal(t, "user-1", saved.UserID)
	assert.Equal(t, emaildomain.ProviderGmail, saved.Provider)
	assert.Equal(t, "msg-1", saved.MessageID)

	// Below threshold: no note, no push
	assert.Empty(t, noteRepo.notes)
}

func TestAnalyzerSkipsAlreadyAnalyzedMessage(t *testing.T) {
	analysisRepo := newFakeAnalysisRepo()
	analysisRepo.existing["user-1/gmail/msg-1"] = true
	ai := &fakeAI{}
	analyzer := newTestAnalyzer(analysisRepo, &fakeRetryRepo{}, &fakeNoteRepo{}, ai, &fakeNotifier{})

	msg := &emaildomain.EmailMessage{ID: "msg-1", Provider: emaildomain.ProviderGmail}
	require.NoError(t, analyzer.ProcessMessage(context.Background(), "user-1", msg))

	assert.Zero(t, ai.callCount())
	assert.Empty(t, analysisRepo.saved)
}

func TestAnalyzerQueuesRetryWhenRateLimited(t *testing.T) {
	analysisRepo := newFakeAnalysisRepo()
	retryRepo := &fakeRetryRepo{}
	ai := &fakeAI{analyze: func(from, subject, body string) (*emaildomain.EmailAnalysis, error) {
		return nil, &emaildomain.RateLimitError{Service: "gemini"}
	}}
	analyzer := newTestAnalyzer(analysisRepo, retryRepo, &fakeNoteRepo{}, ai, &fakeNotifier{})

	msg := &emaildomain.EmailMessage{ID: "msg-1", Provider: emaildomain.ProviderGmail}

	// Rate limiting is absorbed so the caller's watermark still advances
	require.NoError(t, analyzer.ProcessMessage(context.Background(), "user-1", msg))

	entries := retryRepo.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "msg-1", entries[0].MessageID)
	assert.Equal(t, 1, entries[0].Attempts)
	assert.True(t, entries[0].NextRetryAt.After(time.Now()))
}

func TestAnalyzerReturnsOtherErrors(t *testing.T) {
	retryRepo := &fakeRetryRepo{}
	ai := &fakeAI{analyze: func(from, subject, body string) (*emaildomain.EmailAnalysis, error) {
		return nil, errors.New("model returned garbage")
	}}
	analyzer := newTestAnalyzer(newFakeAnalysisRepo(), retryRepo, &fakeNoteRepo{}, ai, &fakeNotifier{})

	msg := &emaildomain.EmailMessage{ID: "msg-1", Provider: emaildomain.ProviderGmail}
	err := analyzer.ProcessMessage(context.Background(), "user-1", msg)

	assert.Error(t, err)
	assert.Empty(t, retryRepo.all())
}

func TestAnalyzerSurfacesImportantMessages(t *testing.T) {
	noteRepo := &fakeNoteRepo{}
	notifier := &fakeNotifier{}
	ai := &fakeAI{analyze: func(from, subject, body string) (*emaildomain.EmailAnalysis, error) {
		return &emaildomain.EmailAnalysis{Importance: 9, Summary: "contract needs signing today"}, nil
	}}
	analyzer := newTestAnalyzer(newFakeAnalysisRepo(), &fakeRetryRepo{}, noteRepo, ai, notifier)

	msg := &emaildomain.EmailMessage{ID: "msg-1", Provider: emaildomain.ProviderGmail, From: "legal@example.com", Subject: "Contract"}
	require.NoError(t, analyzer.ProcessMessage(context.Background(), "user-1", msg))

	require.Len(t, noteRepo.notes, 1)
	assert.Equal(t, "Contract", noteRepo.notes[0].Title)
	assert.Equal(t, "contract needs signing today", noteRepo.notes[0].Content)
	assert.Equal(t, "email", noteRepo.notes[0].Source)

	require.Len(t, notifier.calls, 1)
	assert.Equal(t, "user-1", notifier.calls[0].userID)
}

func TestAnalyzerNoteTitleFallsBackToSender(t *testing.T) {
	noteRepo := &fakeNoteRepo{}
	ai := &fakeAI{analyze: func(from, subject, body string) (*emaildomain.EmailAnalysis, error) {
		return &emaildomain.EmailAnalysis{Importance: 8, Summary: "a summary"}, nil
	}}
	analyzer := newTestAnalyzer(newFakeAnalysisRepo(), &fakeRetryRepo{}, noteRepo, ai, &fakeNotifier{})

	msg := &emaildomain.EmailMessage{ID: "msg-1", Provider: emaildomain.ProviderImap, From: "boss@example.com"}
	require.NoError(t, analyzer.ProcessMessage(context.Background(), "user-1", msg))

	require.Len(t, noteRepo.notes, 1)
	assert.Equal(t, "Email from boss@example.com", noteRepo.notes[0].Title)
}

func TestRetryEntryRemovedOnSuccess(t *testing.T) {
	retryRepo := &fakeRetryRepo{}
	require.NoError(t, retryRepo.Enqueue("user-1", emaildomain.ProviderGmail, "msg-1", time.Now(), "rate limited"))
	entry := retryRepo.all()[0]

	analyzer := newTestAnalyzer(newFakeAnalysisRepo(), retryRepo, &fakeNoteRepo{}, &fakeAI{}, &fakeNotifier{})

	msg := &emaildomain.EmailMessage{ID: "msg-1", Provider: emaildomain.ProviderGmail}
	analyzer.RetryEntry(context.Background(), &entry, msg)

	assert.Empty(t, retryRepo.all())
}

func TestRetryEntryReschedulesWithBackoff(t *testing.T) {
	retryRepo := &fakeRetryRepo{}
	require.NoError(t, retryRepo.Enqueue("user-1", emaildomain.ProviderGmail, "msg-1", time.Now(), "rate limited"))
	entry := retryRepo.all()[0]

	ai := &fakeAI{analyze: func(from, subject, body string) (*emaildomain.EmailAnalysis, error) {
		return nil, &emaildomain.RateLimitError{Service: "gemini"}
	}}
	analyzer := newTestAnalyzer(newFakeAnalysisRepo(), retryRepo, &fakeNoteRepo{}, ai, &fakeNotifier{})

	msg := &emaildomain.EmailMessage{ID: "msg-1", Provider: emaildomain.ProviderGmail}
	analyzer.RetryEntry(context.Background(), &entry, msg)

	entries := retryRepo.all()
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].Attempts)
	assert.True(t, entries[0].NextRetryAt.After(time.Now().Add(4*time.Minute)))
}

func TestRetryEntryGivesUpAfterMaxAttempts(t *testing.T) {
	retryRepo := &fakeRetryRepo{}
	require.NoError(t, retryRepo.Enqueue("user-1", emaildomain.ProviderGmail, "msg-1", time.Now(), "rate limited"))
	entry := retryRepo.all()[0]
	entry.Attempts = maxRetryAttempts

	ai := &fakeAI{analyze: func(from, subject, body string) (*emaildomain.EmailAnalysis, error) {
		return nil, &emaildomain.RateLimitError{Service: "gemini"}
	}}
	analyzer := newTestAnalyzer(newFakeAnalysisRepo(), retryRepo, &fakeNoteRepo{}, ai, &fakeNotifier{})

	msg := &emaildomain.EmailMessage{ID: "msg-1", Provider: emaildomain.ProviderGmail}
	analyzer.RetryEntry(context.Background(), &entry, msg)

	assert.Empty(t, retryRepo.all())
}

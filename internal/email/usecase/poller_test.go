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

func newTestPoller(
	watermarkRepo *fakeWatermarkRepo,
	subRepo *fakeSubscriptionRepo,
	retryRepo *fakeRetryRepo,
	analysisRepo *fakeAnalysisRepo,
	ai *fakeAI,
	sources ...MessageSource,
) *Poller {
	analyzer := NewAnalyzer(analysisRepo, retryRepo, &fakeNoteRepo{}, ai, &fakeNotifier{}, 7)
	return NewPoller(watermarkRepo, subRepo, retryRepo, analyzer, sources, time.Hour, 1, time.Millisecond)
}

func seedUser(t *testing.T, watermarkRepo *fakeWatermarkRepo, subRepo *fakeSubscriptionRepo, userID, provider, status string, last *string) {
	t.Helper()
	require.NoError(t, watermarkRepo.Seed(userID, 1800))
	if last != nil {
		require.NoError(t, watermarkRepo.Advance(userID, provider, *last))
		watermarkRepo.mu.Lock()
		watermarkRepo.advances = nil
		watermarkRepo.mu.Unlock()
	}
	require.NoError(t, subRepo.Upsert(&emaildomain.Subscription{
		UserID:   userID,
		Provider: provider,
		Status:   status,
	}))
}

func TestPollerProcessesOldestNewMessageFirst(t *testing.T) {
	watermarkRepo := newFakeWatermarkRepo()
	subRepo := newFakeSubscriptionRepo()
	analysisRepo := newFakeAnalysisRepo()
	ai := &fakeAI{}
	source := &fakeSource{provider: emaildomain.ProviderGmail, ids: []string{"103", "102", "101"}}

	seedUser(t, watermarkRepo, subRepo, "user-1", emaildomain.ProviderGmail, emaildomain.SubscriptionExpired, strPtrU("100"))

	poller := newTestPoller(watermarkRepo, subRepo, &fakeRetryRepo{}, analysisRepo, ai, source)
	poller.RunOnce(context.Background())

	// Batch cap of one: only the oldest unprocessed message this pass
	require.Len(t, analysisRepo.saved, 1)
	assert.Equal(t, "101", analysisRepo.saved[0].MessageID)

	wm, err := watermarkRepo.Get("user-1")
	require.NoError(t, err)
	require.NotNil(t, wm.LastProcessedGmail)
	assert.Equal(t, "101", *wm.LastProcessedGmail)

	// The next pass picks up where this one stopped
	poller.RunOnce(context.Background())
	require.Len(t, analysisRepo.saved, 2)
	assert.Equal(t, "102", analysisRepo.saved[1].MessageID)
}

func TestPollerSkipsProviderWithHealthyPushChannel(t *testing.T) {
	watermarkRepo := newFakeWatermarkRepo()
	subRepo := newFakeSubscriptionRepo()
	analysisRepo := newFakeAnalysisRepo()
	ai := &fakeAI{}
	source := &fakeSource{provider: emaildomain.ProviderGmail, ids: []string{"101"}}

	seedUser(t, watermarkRepo, subRepo, "user-1", emaildomain.ProviderGmail, emaildomain.SubscriptionActive, nil)

	poller := newTestPoller(watermarkRepo, subRepo, &fakeRetryRepo{}, analysisRepo, ai, source)
	poller.RunOnce(context.Background())

	assert.Zero(t, ai.callCount())
	assert.Empty(t, analysisRepo.saved)
}

func TestPollerSkipsUnconnectedProvider(t *testing.T) {
	watermarkRepo := newFakeWatermarkRepo()
	subRepo := newFakeSubscriptionRepo()
	analysisRepo := newFakeAnalysisRepo()
	source := &fakeSource{provider: emaildomain.ProviderGmail, ids: []string{"101"}}

	// Watermark exists but no subscription row at all
	require.NoError(t, watermarkRepo.Seed("user-1", 1800))

	poller := newTestPoller(watermarkRepo, subRepo, &fakeRetryRepo{}, analysisRepo, &fakeAI{}, source)
	poller.RunOnce(context.Background())

	assert.Empty(t, analysisRepo.saved)
	assert.Empty(t, source.fetched)
}

func TestPollerAdvancesWatermarkPastFailedMessage(t *testing.T) {
	watermarkRepo := newFakeWatermarkRepo()
	subRepo := newFakeSubscriptionRepo()
	analysisRepo := newFakeAnalysisRepo()
	source := &fakeSource{
		provider: emaildomain.ProviderGmail,
		ids:      []string{"101"},
		fetchErr: map[string]error{"101": errors.New("message vanished")},
	}

	seedUser(t, watermarkRepo, subRepo, "user-1", emaildomain.ProviderGmail, emaildomain.SubscriptionExpired, strPtrU("100"))

	poller := newTestPoller(watermarkRepo, subRepo, &fakeRetryRepo{}, analysisRepo, &fakeAI{}, source)
	poller.RunOnce(context.Background())

	// A poison message must not wedge the pipeline
	wm, err := watermarkRepo.Get("user-1")
	require.NoError(t, err)
	require.NotNil(t, wm.LastProcessedGmail)
	assert.Equal(t, "101", *wm.LastProcessedGmail)
	assert.Empty(t, analysisRepo.saved)
}

func TestPollerOneUserFailureDoesNotBlockOthers(t *testing.T) {
	watermarkRepo := newFakeWatermarkRepo()
	subRepo := newFakeSubscriptionRepo()
	analysisRepo := newFakeAnalysisRepo()
	source := &fakeSource{provider: emaildomain.ProviderImap, ids: []string{"0000000005"}}

	seedUser(t, watermarkRepo, subRepo, "broken", emaildomain.ProviderImap, emaildomain.SubscriptionFailed, nil)
	seedUser(t, watermarkRepo, subRepo, "healthy", emaildomain.ProviderImap, emaildomain.SubscriptionFailed, nil)

	// Make listing fail only for the first user the sweep happens to visit
	failing := &fakeSource{provider: emaildomain.ProviderImap, listErr: errors.New("imap down")}
	poller := newTestPoller(watermarkRepo, subRepo, &fakeRetryRepo{}, analysisRepo, &fakeAI{}, failing)
	poller.RunOnce(context.Background())
	assert.Empty(t, analysisRepo.saved)

	// Both users are still swept when the source recovers
	poller = newTestPoller(watermarkRepo, subRepo, &fakeRetryRepo{}, analysisRepo, &fakeAI{}, source)
	poller.RunOnce(context.Background())
	assert.Len(t, analysisRepo.saved, 2)
}

func TestPollerDrainsDueRetries(t *testing.T) {
	watermarkRepo := newFakeWatermarkRepo()
	subRepo := newFakeSubscriptionRepo()
	analysisRepo := newFakeAnalysisRepo()
	retryRepo := &fakeRetryRepo{}
	source := &fakeSource{provider: emaildomain.ProviderGmail}

	require.NoError(t, retryRepo.Enqueue("user-1", emaildomain.ProviderGmail, "msg-1", time.Now().Add(-time.Minute), "rate limited"))
	require.NoError(t, retryRepo.Enqueue("user-1", emaildomain.ProviderGmail, "msg-2", time.Now().Add(time.Hour), "rate limited"))

	poller := newTestPoller(watermarkRepo, subRepo, retryRepo, analysisRepo, &fakeAI{}, source)
	poller.RunOnce(context.Background())

	// Only the due entry is retried; it succeeded so it is gone
	require.Len(t, analysisRepo.saved, 1)
	assert.Equal(t, "msg-1", analysisRepo.saved[0].MessageID)

	entries := retryRepo.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "msg-2", entries[0].MessageID)
}

func TestPollerStartAndStop(t *testing.T) {
	watermarkRepo := newFakeWatermarkRepo()
	poller := newTestPoller(watermarkRepo, newFakeSubscriptionRepo(), &fakeRetryRepo{}, newFakeAnalysisRepo(), &fakeAI{})

	poller.Start(context.Background())
	// Stop must not hang even right after start
	done := make(chan struct{})
	go func() {
		poller.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}

func strPtrU(s string) *string { return &s }

package usecase

import (
	"context"
	"log"
	"time"

	emaildomain "zenith-backend/internal/email/domain"
	"zenith-backend/internal/email/repository"
)

const retryDrainBatch = 20

// Poller is the fallback ingestion channel. It periodically sweeps every
// watermark-enabled user and analyzes whatever the push channels missed,
// at most maxPerPoll messages per user per provider per pass.
type Poller struct {
	watermarkRepo repository.PollWatermarkRepository
	subRepo       repository.SubscriptionRepository
	retryRepo     repository.AnalysisRetryRepository
	analyzer      *Analyzer
	sources       []MessageSource

	interval     time.Duration
	maxPerPoll   int
	messageDelay time.Duration

	stopChan chan struct{}
	doneChan chan struct{}
}

func NewPoller(
	watermarkRepo repository.PollWatermarkRepository,
	subRepo repository.SubscriptionRepository,
	retryRepo repository.AnalysisRetryRepository,
	analyzer *Analyzer,
	sources []MessageSource,
	interval time.Duration,
	maxPerPoll int,
	messageDelay time.Duration,
) *Poller {
	return &Poller{
		watermarkRepo: watermarkRepo,
		subRepo:       subRepo,
		retryRepo:     retryRepo,
		analyzer:      analyzer,
		sources:       sources,
		interval:      interval,
		maxPerPoll:    maxPerPoll,
		messageDelay:  messageDelay,
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}
}

// Start begins the polling loop
func (p *Poller) Start(ctx context.Context) {
	log.Printf("[Poller] Starting email poller (interval: %s, batch: %d)", p.interval, p.maxPerPoll)

	go func() {
		defer close(p.doneChan)

		// Run immediately on start
		p.RunOnce(ctx)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p.RunOnce(ctx)
			case <-p.stopChan:
				log.Println("[Poller] Poller stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the poller
func (p *Poller) Stop() {
	close(p.stopChan)
	<-p.doneChan
}

// RunOnce executes a single polling pass: drain the retry queue, then
// sweep every enabled user. A failing user never blocks the others.
func (p *Poller) RunOnce(ctx context.Context) {
	p.drainRetries(ctx)

	watermarks, err := p.watermarkRepo.ListEnabled()
	if err != nil {
		log.Printf("[Poller] Failed to list enabled users: %v", err)
		return
	}

	for i := range watermarks {
		if p.stopped() {
			return
		}
		p.pollUser(ctx, &watermarks[i])
	}
}

func (p *Poller) pollUser(ctx context.Context, wm *emaildomain.PollWatermark) {
	for _, source := range p.sources {
		if p.stopped() {
			return
		}
		if err := p.pollProvider(ctx, wm, source); err != nil {
			log.Printf("[Poller] Poll failed for user %s provider %s: %v", wm.UserID, source.Provider(), err)
		}
	}
}

func (p *Poller) pollProvider(ctx context.Context, wm *emaildomain.PollWatermark, source MessageSource) error {
	provider := source.Provider()

	sub, err := p.subRepo.Find(wm.UserID, provider)
	if err != nil {
		return err
	}
	if sub == nil {
		// Provider not connected for this user
		return nil
	}
	if sub.Status == emaildomain.SubscriptionActive {
		// Push channel is healthy, nothing for the fallback to do
		return nil
	}

	since := wm.LastProcessed(provider)
	ids, err := source.ListNew(ctx, wm.UserID, since)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	if len(ids) > p.maxPerPoll {
		ids = ids[:p.maxPerPoll]
	}

	for i, id := range ids {
		if i > 0 && !p.pause(p.messageDelay) {
			return nil
		}

		msg, err := source.Fetch(ctx, wm.UserID, id)
		if err != nil {
			log.Printf("[Poller] Failed to fetch message %s for user %s: %v", id, wm.UserID, err)
		} else if err := p.analyzer.ProcessMessage(ctx, wm.UserID, msg); err != nil {
			log.Printf("[Poller] Failed to analyze message %s for user %s: %v", id, wm.UserID, err)
		}

		// The watermark records the last *attempted* id so a poison
		// message cannot wedge the pipeline
		if err := p.watermarkRepo.Advance(wm.UserID, provider, id); err != nil {
			return err
		}
	}

	return nil
}

// drainRetries retries queued analyses whose backoff has elapsed
func (p *Poller) drainRetries(ctx context.Context) {
	entries, err := p.retryRepo.Due(time.Now(), retryDrainBatch)
	if err != nil {
		log.Printf("[Poller] Failed to load retry queue: %v", err)
		return
	}

	for i := range entries {
		if p.stopped() {
			return
		}
		entry := &entries[i]

		source := p.sourceFor(entry.Provider)
		if source == nil {
			log.Printf("[Poller] No source for provider %s, dropping retry %s", entry.Provider, entry.ID)
			_ = p.retryRepo.Remove(entry.ID)
			continue
		}

		msg, err := source.Fetch(ctx, entry.UserID, entry.MessageID)
		if err != nil {
			log.Printf("[Poller] Failed to refetch message %s for retry: %v", entry.MessageID, err)
			if entry.Attempts >= maxRetryAttempts {
				_ = p.retryRepo.Remove(entry.ID)
			} else {
				_ = p.retryRepo.Reschedule(entry.ID, time.Now().Add(retryBaseDelay*time.Duration(entry.Attempts)), err.Error())
			}
			continue
		}

		p.analyzer.RetryEntry(ctx, entry, msg)
	}
}

func (p *Poller) sourceFor(provider string) MessageSource {
	for _, source := range p.sources {
		if source.Provider() == provider {
			return source
		}
	}
	return nil
}

func (p *Poller) stopped() bool {
	select {
	case <-p.stopChan:
		return true
	default:
		return false
	}
}

// pause waits for the inter-message delay unless the poller is stopping
func (p *Poller) pause(d time.Duration) bool {
	select {
	case <-p.stopChan:
		return false
	case <-time.After(d):
		return true
	}
}

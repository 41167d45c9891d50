package usecase

import (
	"context"
	"log"
	"sort"
	"strconv"
	"time"

	emaildomain "zenith-backend/internal/email/domain"
	"zenith-backend/internal/email/repository"
	"zenith-backend/pkg/imapx"
)

// ImapMailboxProcessor handles mailbox contents after an IDLE wakeup:
// find unseen messages past the watermark, analyze them oldest first,
// advance the watermark per attempt. The same watermark backs the poller,
// so the two channels never double-analyze.
type ImapMailboxProcessor struct {
	watermarkRepo repository.PollWatermarkRepository
	analyzer      *Analyzer
	messageDelay  time.Duration
}

func NewImapMailboxProcessor(watermarkRepo repository.PollWatermarkRepository, analyzer *Analyzer, messageDelay time.Duration) *ImapMailboxProcessor {
	return &ImapMailboxProcessor{
		watermarkRepo: watermarkRepo,
		analyzer:      analyzer,
		messageDelay:  messageDelay,
	}
}

func (p *ImapMailboxProcessor) ProcessMailbox(ctx context.Context, userID string, sess imapx.Session) error {
	wm, err := p.watermarkRepo.Get(userID)
	if err != nil {
		return err
	}

	var since *string
	if wm != nil {
		since = wm.LastProcessedImap
	}

	uids, err := sess.SearchUnseen()
	if err != nil {
		return err
	}

	var fresh []string
	for _, uid := range uids {
		id := imapx.FormatUID(uid)
		if since != nil && id <= *since {
			continue
		}
		fresh = append(fresh, id)
	}
	if len(fresh) == 0 {
		return nil
	}

	sort.Strings(fresh)
	log.Printf("[IMAP] %d new message(s) for user %s", len(fresh), userID)

	for i, id := range fresh {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.messageDelay):
			}
		}

		uid, _ := strconv.ParseUint(id, 10, 32)
		msg, err := sess.FetchMessage(uint32(uid))
		if err != nil {
			log.Printf("[IMAP] Failed to fetch message %s for user %s: %v", id, userID, err)
		} else if err := p.analyzer.ProcessMessage(ctx, userID, msg); err != nil {
			log.Printf("[IMAP] Failed to analyze message %s for user %s: %v", id, userID, err)
		}

		if err := p.watermarkRepo.Advance(userID, emaildomain.ProviderImap, id); err != nil {
			return err
		}
	}

	return nil
}

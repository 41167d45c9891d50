package usecase

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	emaildomain "zenith-backend/internal/email/domain"
	"zenith-backend/pkg/imapx"
)

// imapSource adapts a short-lived IMAP session to the poller's
// MessageSource. Each call dials its own session; the poller is the
// fallback path and runs on a long interval, so connection reuse is not
// worth the bookkeeping here (the IDLE path holds its own connection).
type imapSource struct {
	dial       imapx.Dialer
	loadConfig imapx.ConfigLoader
}

func NewImapSource(dial imapx.Dialer, loadConfig imapx.ConfigLoader) MessageSource {
	return &imapSource{
		dial:       dial,
		loadConfig: loadConfig,
	}
}

func (s *imapSource) Provider() string {
	return emaildomain.ProviderImap
}

func (s *imapSource) ListNew(ctx context.Context, userID string, since *string) ([]string, error) {
	sess, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	uids, err := sess.SearchUnseen()
	if err != nil {
		return nil, err
	}

	var fresh []string
	for _, uid := range uids {
		id := imapx.FormatUID(uid)
		if since != nil && id <= *since {
			continue
		}
		fresh = append(fresh, id)
	}

	sort.Strings(fresh)
	return fresh, nil
}

func (s *imapSource) Fetch(ctx context.Context, userID, messageID string) (*emaildomain.EmailMessage, error) {
	uid, err := strconv.ParseUint(messageID, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid IMAP uid %q: %v", messageID, err)
	}

	sess, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	return sess.FetchMessage(uint32(uid))
}

func (s *imapSource) session(ctx context.Context, userID string) (imapx.Session, error) {
	cfg, err := s.loadConfig(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.dial(cfg)
}

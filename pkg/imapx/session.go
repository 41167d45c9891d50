package imapx

import (
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"
	"time"

	emaildomain "zenith-backend/internal/email/domain"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
)

// Config holds the connection settings for one IMAP account
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	UseTLS   bool
}

func (c Config) addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Session is one authenticated IMAP connection with INBOX selected.
// Implementations must be safe to Close from another goroutine; Close
// unblocks any pending WaitForNotification.
type Session interface {
	SupportsIdle() bool
	StartIdle() error
	StopIdle() error
	// WaitForNotification blocks until the server pushes a mailbox
	// update, the timeout elapses (false, nil), or the connection
	// fails (false, err).
	WaitForNotification(timeout time.Duration) (bool, error)
	SearchUnseen() ([]uint32, error)
	FetchMessage(uid uint32) (*emaildomain.EmailMessage, error)
	Close() error
}

// Dialer opens a Session for the given account
type Dialer func(cfg Config) (Session, error)

// FormatUID renders a UID zero-padded so string comparison matches
// numeric ordering.
func FormatUID(uid uint32) string {
	return fmt.Sprintf("%010d", uid)
}

type imapSession struct {
	client  *imapclient.Client
	updates chan struct{}

	idleCmd  *imapclient.IdleCommand
	idleDone chan error
}

// DialSession connects, authenticates and selects INBOX
func DialSession(cfg Config) (Session, error) {
	s := &imapSession{
		updates: make(chan struct{}, 1),
	}

	opts := &imapclient.Options{
		UnilateralDataHandler: &imapclient.UnilateralDataHandler{
			Mailbox: func(data *imapclient.UnilateralDataMailbox) {
				if data.NumMessages != nil {
					select {
					case s.updates <- struct{}{}:
					default:
					}
				}
			},
		},
	}

	var client *imapclient.Client
	var err error
	if cfg.UseTLS {
		client, err = imapclient.DialTLS(cfg.addr(), opts)
	} else {
		client, err = imapclient.DialInsecure(cfg.addr(), opts)
	}
	if err != nil {
		return nil, &emaildomain.ConnectionError{
			Provider: emaildomain.ProviderImap,
			Message:  fmt.Sprintf("unable to connect to %s", cfg.addr()),
			Err:      err,
		}
	}

	if err := client.Login(cfg.Username, cfg.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, &emaildomain.AuthError{
			Provider: emaildomain.ProviderImap,
			Message:  fmt.Sprintf("login failed for %s", cfg.Username),
			Err:      err,
		}
	}

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		_ = client.Close()
		return nil, &emaildomain.ConnectionError{
			Provider: emaildomain.ProviderImap,
			Message:  "unable to select INBOX",
			Err:      err,
		}
	}

	s.client = client
	return s, nil
}

func (s *imapSession) SupportsIdle() bool {
	caps := s.client.Caps()
	if caps != nil {
		return caps.Has(imap.CapIdle)
	}
	data, err := s.client.Capability().Wait()
	if err != nil {
		return false
	}
	return data.Has(imap.CapIdle)
}

func (s *imapSession) StartIdle() error {
	cmd, err := s.client.Idle()
	if err != nil {
		return fmt.Errorf("unable to start IDLE: %v", err)
	}
	s.idleCmd = cmd
	s.idleDone = make(chan error, 1)
	go func(cmd *imapclient.IdleCommand, done chan error) {
		done <- cmd.Wait()
	}(cmd, s.idleDone)
	return nil
}

func (s *imapSession) StopIdle() error {
	if s.idleCmd == nil {
		return nil
	}
	err := s.idleCmd.Close()
	<-s.idleDone
	s.idleCmd = nil
	return err
}

func (s *imapSession) WaitForNotification(timeout time.Duration) (bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.updates:
		return true, nil
	case err := <-s.idleDone:
		s.idleCmd = nil
		if err != nil {
			return false, &emaildomain.ConnectionError{
				Provider: emaildomain.ProviderImap,
				Message:  "IDLE terminated",
				Err:      err,
			}
		}
		// Server ended IDLE cleanly; treat it like a wakeup so the
		// caller re-checks the mailbox
		return true, nil
	case <-timer.C:
		return false, nil
	}
}

func (s *imapSession) SearchUnseen() ([]uint32, error) {
	data, err := s.client.UIDSearch(&imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("unable to search unseen messages: %v", err)
	}

	var uids []uint32
	for _, uid := range data.AllUIDs() {
		uids = append(uids, uint32(uid))
	}
	return uids, nil
}

func (s *imapSession) FetchMessage(uid uint32) (*emaildomain.EmailMessage, error) {
	uidSet := imap.UIDSetNum(imap.UID(uid))
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := s.client.Fetch(uidSet, &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	msg := &emaildomain.EmailMessage{
		ID:       FormatUID(uid),
		Provider: emaildomain.ProviderImap,
	}

	fetchMsg := fetchCmd.Next()
	if fetchMsg == nil {
		return nil, fmt.Errorf("message %d not found", uid)
	}

	for {
		item := fetchMsg.Next()
		if item == nil {
			break
		}
		switch data := item.(type) {
		case imapclient.FetchItemDataEnvelope:
			if data.Envelope != nil {
				msg.Subject = data.Envelope.Subject
				if len(data.Envelope.From) > 0 {
					msg.From = data.Envelope.From[0].Addr()
				}
			}
		case imapclient.FetchItemDataBodySection:
			// Literals must be consumed immediately or the parser stalls
			if data.Literal == nil {
				continue
			}
			raw, err := io.ReadAll(data.Literal)
			if err != nil {
				log.Printf("[IMAP] Failed to read body of message %d: %v", uid, err)
				continue
			}
			msg.Body = extractBody(raw)
		}
	}

	return msg, nil
}

func (s *imapSession) Close() error {
	return s.client.Close()
}

// extractBody parses the MIME structure, preferring text/plain over
// stripped text/html.
func extractBody(raw []byte) string {
	mr, err := mail.CreateReader(strings.NewReader(string(raw)))
	if err != nil {
		return strings.TrimSpace(string(raw))
	}
	defer mr.Close()

	var textBody, htmlBody string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		if h, ok := part.Header.(*mail.InlineHeader); ok {
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			switch {
			case strings.HasPrefix(contentType, "text/plain") && textBody == "":
				textBody = string(body)
			case strings.HasPrefix(contentType, "text/html") && htmlBody == "":
				htmlBody = string(body)
			}
		}
	}

	if textBody != "" {
		return strings.TrimSpace(textBody)
	}
	return stripTags(htmlBody)
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

func stripTags(html string) string {
	text := tagRe.ReplaceAllString(html, " ")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	return strings.Join(strings.Fields(text), " ")
}

package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	emaildomain "zenith-backend/internal/email/domain"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// TokenUpdateFunc is a callback function that handles token updates
type TokenUpdateFunc = emaildomain.TokenUpdateFunc

const watchLifetime = 7 * 24 * time.Hour

type Service struct {
	clientID     string
	clientSecret string
}

// WatchResult is the outcome of registering a mailbox watch.
type WatchResult struct {
	HistoryID string
	ExpiresAt time.Time
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			log.Printf("[Gmail] Failed to persist refreshed token: %v", err)
		}
	}
	return t, nil
}

func NewService(clientID, clientSecret string) *Service {
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// GetGmailService creates Gmail service with user's access token
func (s *Service) GetGmailService(ctx context.Context, accessToken, refreshToken string, onTokenRefresh TokenUpdateFunc) (*gmail.Service, error) {
	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	}

	// Only force refresh if we have a refresh token
	if refreshToken != "" {
		token.Expiry = time.Now()
	}

	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}

	tokenSource := config.TokenSource(ctx, token)

	// Wrap token source to detect refreshes
	wrappedSource := &notifyTokenSource{
		src:      tokenSource,
		current:  token,
		callback: onTokenRefresh,
	}

	client := oauth2.NewClient(ctx, wrappedSource)

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %v", err)
	}

	return srv, nil
}

// Watch sets up push notifications for the user's mailbox and returns the
// server-issued history cursor and expiry. Any existing watch is stopped
// first ("Only one user push notification client allowed").
func (s *Service) Watch(ctx context.Context, accessToken, refreshToken, topicName string, onTokenRefresh TokenUpdateFunc) (*WatchResult, error) {
	srv, err := s.GetGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	_ = srv.Users.Stop("me").Do()

	req := &gmail.WatchRequest{
		TopicName: topicName,
		LabelIds:  []string{"INBOX"},
	}

	resp, err := srv.Users.Watch("me", req).Do()
	if err != nil {
		return nil, wrapAPIError(err, "unable to watch mailbox")
	}

	expiresAt := time.Now().Add(watchLifetime)
	if resp.Expiration > 0 {
		expiresAt = time.Unix(0, resp.Expiration*int64(time.Millisecond))
	}

	log.Printf("[Gmail] Watch registered on topic %s (historyId=%d, expires %s)",
		topicName, resp.HistoryId, expiresAt.Format(time.RFC3339))

	return &WatchResult{
		HistoryID: strconv.FormatUint(resp.HistoryId, 10),
		ExpiresAt: expiresAt,
	}, nil
}

// StopWatch stops push notifications for the user's mailbox
func (s *Service) StopWatch(ctx context.Context, accessToken, refreshToken string, onTokenRefresh TokenUpdateFunc) error {
	srv, err := s.GetGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return err
	}

	if err := srv.Users.Stop("me").Do(); err != nil {
		return wrapAPIError(err, "unable to stop mailbox watch")
	}
	return nil
}

// History fetches the incremental diff since startHistoryID and returns
// the ids of added messages (deduplicated, oldest first) plus the server's
// current history id.
func (s *Service) History(ctx context.Context, accessToken, refreshToken, startHistoryID string, onTokenRefresh TokenUpdateFunc) ([]string, string, error) {
	srv, err := s.GetGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, "", err
	}

	start, err := strconv.ParseUint(startHistoryID, 10, 64)
	if err != nil {
		return nil, "", fmt.Errorf("invalid history id %q: %v", startHistoryID, err)
	}

	var added []string
	seen := make(map[string]bool)
	pageToken := ""

	for {
		call := srv.Users.History.List("me").
			StartHistoryId(start).
			HistoryTypes("messageAdded").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			if apiErr, ok := err.(*googleapi.Error); ok && apiErr.Code == http.StatusNotFound {
				// Gmail answers 404 when startHistoryId is older than its
				// retention window
				return nil, "", emaildomain.ErrCursorExpired
			}
			return nil, "", wrapAPIError(err, "unable to list history")
		}

		for _, record := range resp.History {
			for _, msg := range record.MessagesAdded {
				if msg.Message == nil || msg.Message.Id == "" {
					continue
				}
				if !seen[msg.Message.Id] {
					seen[msg.Message.Id] = true
					added = append(added, msg.Message.Id)
				}
			}
		}

		if resp.NextPageToken == "" {
			return added, strconv.FormatUint(resp.HistoryId, 10), nil
		}
		pageToken = resp.NextPageToken
	}
}

// ListMessageIDs returns ids of the most recent inbox messages, newest
// first (Gmail API order).
func (s *Service) ListMessageIDs(ctx context.Context, accessToken, refreshToken string, max int, onTokenRefresh TokenUpdateFunc) ([]string, error) {
	srv, err := s.GetGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	if max <= 0 {
		max = 10
	}

	resp, err := srv.Users.Messages.List("me").
		LabelIds("INBOX").
		MaxResults(int64(max)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, wrapAPIError(err, "unable to list messages")
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		ids = append(ids, msg.Id)
	}
	return ids, nil
}

// GetMessage fetches a full message and reduces it to the fields the
// analysis gateway consumes.
func (s *Service) GetMessage(ctx context.Context, accessToken, refreshToken, messageID string, onTokenRefresh TokenUpdateFunc) (*emaildomain.EmailMessage, error) {
	srv, err := s.GetGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	msg, err := srv.Users.Messages.Get("me", messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, wrapAPIError(err, "unable to retrieve message")
	}

	body, isHTML := getEmailBody(msg.Payload)
	if isHTML {
		body = stripHTML(body)
	}

	return &emaildomain.EmailMessage{
		ID:       msg.Id,
		Provider: emaildomain.ProviderGmail,
		From:     getHeader(msg.Payload.Headers, "From"),
		Subject:  getHeader(msg.Payload.Headers, "Subject"),
		Body:     body,
	}, nil
}

// GetProfileAddress returns the email address of the authorized mailbox.
func (s *Service) GetProfileAddress(ctx context.Context, accessToken, refreshToken string, onTokenRefresh TokenUpdateFunc) (string, error) {
	srv, err := s.GetGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return "", err
	}

	profile, err := srv.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", wrapAPIError(err, "unable to fetch profile")
	}
	return profile.EmailAddress, nil
}

// Helper functions

func wrapAPIError(err error, msg string) error {
	if apiErr, ok := err.(*googleapi.Error); ok {
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			return &emaildomain.RateLimitError{Service: "gmail", Err: err}
		case http.StatusUnauthorized, http.StatusForbidden:
			return &emaildomain.AuthError{Provider: emaildomain.ProviderGmail, Message: msg, Err: err}
		}
	}
	return fmt.Errorf("%s: %v", msg, err)
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if header.Name == name {
			return header.Value
		}
	}
	return ""
}

// getEmailBody prefers text/plain and falls back to text/html, walking
// nested multipart payloads.
func getEmailBody(payload *gmail.MessagePart) (string, bool) {
	if payload == nil {
		return "", false
	}

	// If the payload itself is the body
	if payload.Body != nil && payload.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(payload.Body.Data)
		if err == nil {
			return string(data), payload.MimeType == "text/html"
		}
	}

	var htmlBody string
	var plainBody string

	var findBody func(parts []*gmail.MessagePart)
	findBody = func(parts []*gmail.MessagePart) {
		for _, part := range parts {
			if part.MimeType == "text/plain" {
				if part.Body != nil && part.Body.Data != "" {
					data, err := base64.URLEncoding.DecodeString(part.Body.Data)
					if err == nil && plainBody == "" {
						plainBody = string(data)
					}
				}
			} else if part.MimeType == "text/html" {
				if part.Body != nil && part.Body.Data != "" {
					data, err := base64.URLEncoding.DecodeString(part.Body.Data)
					if err == nil && htmlBody == "" {
						htmlBody = string(data)
					}
				}
			}

			if len(part.Parts) > 0 {
				findBody(part.Parts)
			}
		}
	}

	findBody(payload.Parts)

	if plainBody != "" {
		return plainBody, false
	}
	return htmlBody, true
}

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

func stripHTML(body string) string {
	text := htmlTagRe.ReplaceAllString(body, " ")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&quot;", "\"")
	return strings.Join(strings.Fields(text), " ")
}

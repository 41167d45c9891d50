package usecase

import (
	"context"
	"fmt"
	"sort"

	authrepo "zenith-backend/internal/auth/repository"
	emaildomain "zenith-backend/internal/email/domain"

	"golang.org/x/oauth2"
)

// how far back one polling pass looks; anything older waits for the next
// pass
const gmailListWindow = 20

// gmailSource adapts the Gmail client to the poller's MessageSource
type gmailSource struct {
	gmail    GmailAPI
	userRepo authrepo.UserRepository
}

func NewGmailSource(gmail GmailAPI, userRepo authrepo.UserRepository) MessageSource {
	return &gmailSource{
		gmail:    gmail,
		userRepo: userRepo,
	}
}

func (s *gmailSource) Provider() string {
	return emaildomain.ProviderGmail
}

func (s *gmailSource) ListNew(ctx context.Context, userID string, since *string) ([]string, error) {
	accessToken, refreshToken, err := s.userTokens(userID)
	if err != nil {
		return nil, err
	}

	// Gmail lists newest first
	ids, err := s.gmail.ListMessageIDs(ctx, accessToken, refreshToken, gmailListWindow, s.tokenUpdateCallback(userID))
	if err != nil {
		return nil, err
	}

	var fresh []string
	for _, id := range ids {
		if since != nil && id <= *since {
			continue
		}
		fresh = append(fresh, id)
	}

	// Oldest first so the batch cap takes the earliest unprocessed message
	sort.Strings(fresh)
	return fresh, nil
}

func (s *gmailSource) Fetch(ctx context.Context, userID, messageID string) (*emaildomain.EmailMessage, error) {
	accessToken, refreshToken, err := s.userTokens(userID)
	if err != nil {
		return nil, err
	}
	return s.gmail.GetMessage(ctx, accessToken, refreshToken, messageID, s.tokenUpdateCallback(userID))
}

func (s *gmailSource) userTokens(userID string) (string, string, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return "", "", err
	}
	if user == nil {
		return "", "", fmt.Errorf("user %s not found", userID)
	}
	if user.AccessToken == "" {
		return "", "", &emaildomain.AuthError{
			Provider: emaildomain.ProviderGmail,
			Message:  "user has no Google tokens",
		}
	}
	return user.AccessToken, user.RefreshToken, nil
}

func (s *gmailSource) tokenUpdateCallback(userID string) emaildomain.TokenUpdateFunc {
	return func(token *oauth2.Token) error {
		user, err := s.userRepo.FindByID(userID)
		if err != nil {
			return err
		}
		if user == nil {
			return nil
		}

		user.AccessToken = token.AccessToken
		if token.RefreshToken != "" {
			user.RefreshToken = token.RefreshToken
		}
		user.TokenExpiry = token.Expiry

		return s.userRepo.Update(user)
	}
}

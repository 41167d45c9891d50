package delivery

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	authdomain "zenith-backend/internal/auth/domain"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubAuthUsecase struct {
	user *authdomain.User
}

func (s *stubAuthUsecase) ValidateToken(token string) (*authdomain.User, error) {
	if s.user != nil && token == "good-token" {
		return s.user, nil
	}
	return nil, errors.New("invalid token")
}

func (s *stubAuthUsecase) GenerateAccessToken(user *authdomain.User) (string, error) {
	return "", errors.New("not implemented")
}

func getProtected(t *testing.T, auth *stubAuthUsecase, header string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/protected", AuthMiddleware(auth), func(c *gin.Context) {
		user := c.MustGet("user").(*authdomain.User)
		c.JSON(http.StatusOK, gin.H{"user_id": user.ID})
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddlewareAcceptsValidBearerToken(t *testing.T) {
	auth := &stubAuthUsecase{user: &authdomain.User{ID: "user-1"}}

	rec := getProtected(t, auth, "Bearer good-token")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "user-1")
}

func TestAuthMiddlewareRejectsBadHeaders(t *testing.T) {
	auth := &stubAuthUsecase{user: &authdomain.User{ID: "user-1"}}

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "no bearer prefix", header: "good-token"},
		{name: "empty token", header: "Bearer "},
		{name: "unknown token", header: "Bearer forged-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := getProtected(t, auth, tt.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

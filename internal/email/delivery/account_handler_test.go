package delivery

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	authdomain "zenith-backend/internal/auth/domain"
	emaildomain "zenith-backend/internal/email/domain"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWatermarkRepo struct {
	watermark *emaildomain.PollWatermark
}

func (r *stubWatermarkRepo) Get(userID string) (*emaildomain.PollWatermark, error) {
	if r.watermark != nil && r.watermark.UserID == userID {
		return r.watermark, nil
	}
	return nil, nil
}

func (r *stubWatermarkRepo) Seed(userID string, intervalSeconds int) error { return nil }
func (r *stubWatermarkRepo) ListEnabled() ([]emaildomain.PollWatermark, error) {
	return nil, nil
}
func (r *stubWatermarkRepo) Advance(userID, provider, messageID string) error { return nil }
func (r *stubWatermarkRepo) ClearProvider(userID, provider string) error      { return nil }
func (r *stubWatermarkRepo) Delete(userID string) error                       { return nil }

func getPollState(t *testing.T, repo *stubWatermarkRepo, userID string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	handler := NewAccountHandler(nil, nil, nil, repo)
	router := gin.New()
	router.GET("/api/email/poll-state", func(c *gin.Context) {
		c.Set("user", &authdomain.User{ID: userID})
		handler.GetPollState(c)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/email/poll-state", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetPollStateReturnsWatermark(t *testing.T) {
	last := "0000000042"
	repo := &stubWatermarkRepo{watermark: &emaildomain.PollWatermark{
		UserID:            "user-1",
		Enabled:           true,
		IntervalSeconds:   1800,
		LastProcessedImap: &last,
		LastPollAt:        time.Now(),
	}}

	rec := getPollState(t, repo, "user-1")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body emaildomain.PollWatermark
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Enabled)
	assert.Equal(t, 1800, body.IntervalSeconds)
	require.NotNil(t, body.LastProcessedImap)
	assert.Equal(t, "0000000042", *body.LastProcessedImap)
	assert.Nil(t, body.LastProcessedGmail)
}

func TestGetPollStateWithoutRecord(t *testing.T) {
	rec := getPollState(t, &stubWatermarkRepo{}, "user-1")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["enabled"])
}

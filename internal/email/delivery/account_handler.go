package delivery

import (
	"net/http"
	"strconv"

	authdomain "zenith-backend/internal/auth/domain"
	emaildomain "zenith-backend/internal/email/domain"
	emaildto "zenith-backend/internal/email/dto"
	"zenith-backend/internal/email/repository"
	"zenith-backend/internal/email/usecase"

	"github.com/gin-gonic/gin"
)

type AccountHandler struct {
	manager       *usecase.SubscriptionManager
	subRepo       repository.SubscriptionRepository
	analysisRepo  repository.EmailAnalysisRepository
	watermarkRepo repository.PollWatermarkRepository
}

func NewAccountHandler(manager *usecase.SubscriptionManager, subRepo repository.SubscriptionRepository, analysisRepo repository.EmailAnalysisRepository, watermarkRepo repository.PollWatermarkRepository) *AccountHandler {
	return &AccountHandler{
		manager:       manager,
		subRepo:       subRepo,
		analysisRepo:  analysisRepo,
		watermarkRepo: watermarkRepo,
	}
}

func (h *AccountHandler) ConnectGmail(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	sub, err := h.manager.ConnectGmail(c.Request.Context(), userID)
	if err != nil {
		status := http.StatusInternalServerError
		if emaildomain.IsAuthError(err) {
			status = http.StatusUnauthorized
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, sub)
}

func (h *AccountHandler) DisconnectGmail(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.manager.DisconnectGmail(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *AccountHandler) ConnectImap(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req emaildto.ConnectImapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	useTLS := true
	if req.UseTLS != nil {
		useTLS = *req.UseTLS
	}

	sub, err := h.manager.ConnectImap(c.Request.Context(), userID, req.Host, req.Port, req.Username, req.Password, useTLS)
	if err != nil {
		status := http.StatusInternalServerError
		if emaildomain.IsAuthError(err) {
			status = http.StatusUnauthorized
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, sub)
}

func (h *AccountHandler) DisconnectImap(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.manager.DisconnectImap(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

// GetSubscriptions lists the caller's provider subscriptions
func (h *AccountHandler) GetSubscriptions(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var subs []emaildomain.Subscription
	for _, provider := range []string{emaildomain.ProviderGmail, emaildomain.ProviderImap} {
		sub, err := h.subRepo.Find(userID, provider)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if sub != nil {
			subs = append(subs, *sub)
		}
	}

	c.JSON(http.StatusOK, gin.H{"subscriptions": subs})
}

// GetPollState reports the caller's polling fallback state: whether it is
// enabled, its interval, and the last processed id per provider
func (h *AccountHandler) GetPollState(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	wm, err := h.watermarkRepo.Get(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if wm == nil {
		// No account connected yet, so nothing is being polled
		c.JSON(http.StatusOK, gin.H{"enabled": false})
		return
	}

	c.JSON(http.StatusOK, wm)
}

// GetAnalyses lists recent analysis results for the caller
func (h *AccountHandler) GetAnalyses(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	analyses, err := h.analysisRepo.ListByUser(userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"analyses": analyses})
}

// currentUserID pulls the authenticated user out of the gin context
func currentUserID(c *gin.Context) (string, bool) {
	value, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return "", false
	}
	user, ok := value.(*authdomain.User)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return "", false
	}
	return user.ID, true
}

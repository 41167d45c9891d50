package delivery

import (
	"net/http"

	authdomain "zenith-backend/internal/auth/domain"
	"zenith-backend/internal/auth/repository"

	"github.com/gin-gonic/gin"
)

type FCMHandler struct {
	fcmRepo repository.FCMTokenRepository
}

func NewFCMHandler(fcmRepo repository.FCMTokenRepository) *FCMHandler {
	return &FCMHandler{
		fcmRepo: fcmRepo,
	}
}

type registerFCMTokenRequest struct {
	Token      string `json:"token" binding:"required"`
	DeviceInfo string `json:"device_info"`
}

func (h *FCMHandler) RegisterToken(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	var req registerFCMTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.fcmRepo.SaveToken(user.ID, req.Token, req.DeviceInfo); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "registered"})
}

func (h *FCMHandler) UnregisterToken(c *gin.Context) {
	if _, ok := mustUser(c); !ok {
		return
	}

	token := c.Param("token")
	if err := h.fcmRepo.DeleteToken(token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

func mustUser(c *gin.Context) (*authdomain.User, bool) {
	value, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return nil, false
	}
	user, ok := value.(*authdomain.User)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return nil, false
	}
	return user, true
}

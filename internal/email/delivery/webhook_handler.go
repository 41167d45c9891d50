package delivery

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"

	emaildto "zenith-backend/internal/email/dto"
	"zenith-backend/internal/email/usecase"

	"github.com/gin-gonic/gin"
)

// NotificationEnqueuer accepts a decoded Gmail notification for
// asynchronous processing
type NotificationEnqueuer interface {
	Enqueue(notification usecase.GmailNotification)
}

// WebhookHandler terminates Gmail push deliveries. It always answers
// 204: a non-2xx makes Pub/Sub redeliver, and a malformed payload will
// not get better on the second try.
type WebhookHandler struct {
	processor NotificationEnqueuer
}

func NewWebhookHandler(processor NotificationEnqueuer) *WebhookHandler {
	return &WebhookHandler{
		processor: processor,
	}
}

func (h *WebhookHandler) HandleGmailPush(c *gin.Context) {
	var envelope emaildto.PubSubPushEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		log.Printf("[Webhook] Malformed push envelope: %v", err)
		c.Status(http.StatusNoContent)
		return
	}

	data, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		log.Printf("[Webhook] Push data is not valid base64: %v", err)
		c.Status(http.StatusNoContent)
		return
	}

	var notification usecase.GmailNotification
	if err := json.Unmarshal(data, &notification); err != nil {
		log.Printf("[Webhook] Push data is not a Gmail notification: %v", err)
		c.Status(http.StatusNoContent)
		return
	}

	if notification.EmailAddress == "" || notification.HistoryID == 0 {
		log.Printf("[Webhook] Incomplete Gmail notification, dropping")
		c.Status(http.StatusNoContent)
		return
	}

	h.processor.Enqueue(notification)
	c.Status(http.StatusNoContent)
}

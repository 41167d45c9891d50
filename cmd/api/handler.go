package api

import (
	"context"
	"net/http"

	"zenith-backend/internal/auth/delivery"
	authUsecase "zenith-backend/internal/auth/usecase"
	emailDelivery "zenith-backend/internal/email/delivery"
	notesDelivery "zenith-backend/internal/notes/delivery"
	"zenith-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	authUsecase    authUsecase.AuthUsecase
	webhookHandler *emailDelivery.WebhookHandler
	accountHandler *emailDelivery.AccountHandler
	fcmHandler     *delivery.FCMHandler
	noteHandler    *notesDelivery.NoteHandler
	config         *config.Config

	server *http.Server
}

func NewHandler(
	authUc authUsecase.AuthUsecase,
	webhookHandler *emailDelivery.WebhookHandler,
	accountHandler *emailDelivery.AccountHandler,
	fcmHandler *delivery.FCMHandler,
	noteHandler *notesDelivery.NoteHandler,
	cfg *config.Config,
) *Handler {
	return &Handler{
		authUsecase:    authUc,
		webhookHandler: webhookHandler,
		accountHandler: accountHandler,
		fcmHandler:     fcmHandler,
		noteHandler:    noteHandler,
		config:         cfg,
	}
}

func (h *Handler) Start(addr string) error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.authUsecase, h.webhookHandler, h.accountHandler, h.fcmHandler, h.noteHandler)

	h.server = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting new requests and drains in-flight ones
func (h *Handler) Shutdown(ctx context.Context) error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

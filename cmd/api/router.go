package api

import (
	"net/http"

	"zenith-backend/internal/auth/delivery"
	authUsecase "zenith-backend/internal/auth/usecase"
	emailDelivery "zenith-backend/internal/email/delivery"
	notesDelivery "zenith-backend/internal/notes/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	r *gin.Engine,
	authUsecase authUsecase.AuthUsecase,
	webhookHandler *emailDelivery.WebhookHandler,
	accountHandler *emailDelivery.AccountHandler,
	fcmHandler *delivery.FCMHandler,
	noteHandler *notesDelivery.NoteHandler,
) {
	// Gmail push endpoint. Pub/Sub authenticates at the transport level;
	// the handler validates the payload itself. The root path is what the
	// Pub/Sub subscription is configured with, the /api alias is kept for
	// older deployments.
	r.POST("/webhooks/gmail", webhookHandler.HandleGmailPush)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		api.POST("/webhooks/gmail", webhookHandler.HandleGmailPush)

		// Account routes (protected)
		accounts := api.Group("/accounts")
		accounts.Use(delivery.AuthMiddleware(authUsecase))
		{
			accounts.POST("/gmail", accountHandler.ConnectGmail)
			accounts.DELETE("/gmail", accountHandler.DisconnectGmail)
			accounts.POST("/imap", accountHandler.ConnectImap)
			accounts.DELETE("/imap", accountHandler.DisconnectImap)
			accounts.GET("/subscriptions", accountHandler.GetSubscriptions)
		}

		// Analysis results and pipeline state (protected)
		emails := api.Group("/emails")
		emails.Use(delivery.AuthMiddleware(authUsecase))
		{
			emails.GET("/analyses", accountHandler.GetAnalyses)
		}

		email := api.Group("/email")
		email.Use(delivery.AuthMiddleware(authUsecase))
		{
			email.GET("/poll-state", accountHandler.GetPollState)
		}

		// FCM routes (protected)
		fcm := api.Group("/fcm")
		fcm.Use(delivery.AuthMiddleware(authUsecase))
		{
			fcm.POST("/register", fcmHandler.RegisterToken)
			fcm.DELETE("/:token", fcmHandler.UnregisterToken)
		}

		// Notes routes (protected)
		notes := api.Group("/notes")
		notes.Use(delivery.AuthMiddleware(authUsecase))
		{
			notes.GET("", noteHandler.ListNotes)
			notes.POST("", noteHandler.CreateNote)
		}
	}
}

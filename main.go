package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	api "zenith-backend/cmd/api"
	authDelivery "zenith-backend/internal/auth/delivery"
	authdomain "zenith-backend/internal/auth/domain"
	authRepo "zenith-backend/internal/auth/repository"
	authUsecase "zenith-backend/internal/auth/usecase"
	emailDelivery "zenith-backend/internal/email/delivery"
	emaildomain "zenith-backend/internal/email/domain"
	emailRepo "zenith-backend/internal/email/repository"
	emailUsecase "zenith-backend/internal/email/usecase"
	notesDelivery "zenith-backend/internal/notes/delivery"
	notesdomain "zenith-backend/internal/notes/domain"
	notesRepo "zenith-backend/internal/notes/repository"
	"zenith-backend/internal/notification"
	"zenith-backend/pkg/ai"
	"zenith-backend/pkg/config"
	"zenith-backend/pkg/database"
	"zenith-backend/pkg/fcm"
	"zenith-backend/pkg/gmail"
	"zenith-backend/pkg/imapx"
	"zenith-backend/pkg/secrets"
)

const imapReconnectDelay = time.Minute

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&authdomain.User{},
		&authdomain.FCMToken{},
		&emaildomain.Subscription{},
		&emaildomain.PollWatermark{},
		&emaildomain.AnalysisRetry{},
		&emaildomain.ImapAccount{},
		&emaildomain.EmailAnalysis{},
		&notesdomain.Note{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	userRepo := authRepo.NewUserRepository(db)
	fcmTokenRepo := authRepo.NewFCMTokenRepository(db)
	subRepo := emailRepo.NewSubscriptionRepository(db)
	watermarkRepo := emailRepo.NewPollWatermarkRepository(db)
	retryRepo := emailRepo.NewAnalysisRetryRepository(db)
	accountRepo := emailRepo.NewImapAccountRepository(db)
	analysisRepo := emailRepo.NewEmailAnalysisRepository(db)
	noteRepo := notesRepo.NewNoteRepository(db)

	// Credential sealing for stored IMAP passwords
	box, err := secrets.NewBox(cfg.CredentialsKey)
	if err != nil {
		log.Fatal("Failed to load credentials key:", err)
	}

	// Gmail client
	gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret)

	// Extract short topic name from full resource name if necessary
	topicName := cfg.GooglePubSubTopic
	if parts := strings.Split(topicName, "/"); len(parts) > 1 {
		topicName = parts[len(parts)-1]
	}

	// FCM client (optional, pipeline works without push notifications)
	var fcmClient *fcm.Client
	if cfg.FirebaseCredentials != "" {
		fcmClient, err = fcm.NewClient(cfg.FirebaseCredentials)
		if err != nil {
			log.Printf("[WARN] Failed to initialize FCM client (push notifications disabled): %v", err)
		}
	}

	// Notification service fronts Pub/Sub and FCM; optional when no
	// Google project is configured
	var notifier emailUsecase.ImportanceNotifier
	var topicChecker emailUsecase.TopicChecker
	if cfg.GoogleProjectID != "" {
		notifService, err := notification.NewService(cfg.GoogleProjectID, cfg.GoogleCredentials, fcmTokenRepo, fcmClient)
		if err != nil {
			log.Printf("[WARN] Failed to initialize notification service: %v", err)
		} else {
			notifier = notifService
			topicChecker = notifService
			defer notifService.Close()
		}
	} else {
		log.Println("[WARN] GOOGLE_PROJECT_ID not configured, Pub/Sub checks and push notifications disabled")
	}

	// AI analysis gateway
	aiService, err := ai.NewAnalyzerService(ai.Config{
		Provider:      ai.ProviderType(cfg.AIProvider),
		GeminiAPIKey:  cfg.GeminiAPIKey,
		OllamaBaseURL: cfg.OllamaBaseURL,
		OllamaModel:   cfg.OllamaModel,
	})
	if err != nil {
		log.Fatal("Failed to initialize AI service:", err)
	}

	// Core pipeline
	analyzer := emailUsecase.NewAnalyzer(analysisRepo, retryRepo, noteRepo, aiService, notifier, cfg.ImportanceThreshold)

	imapLoader := emailUsecase.NewImapConfigLoader(accountRepo, box)
	imapProcessor := emailUsecase.NewImapMailboxProcessor(watermarkRepo, analyzer, cfg.MessageDelay)
	idleManager := imapx.NewManager(imapx.DialSession, imapProcessor, imapLoader, cfg.IdleTimeout, imapReconnectDelay)

	sources := []emailUsecase.MessageSource{
		emailUsecase.NewGmailSource(gmailService, userRepo),
		emailUsecase.NewImapSource(imapx.DialSession, imapLoader),
	}
	poller := emailUsecase.NewPoller(watermarkRepo, subRepo, retryRepo, analyzer, sources,
		cfg.PollInterval, cfg.MaxMessagesPerPoll, cfg.MessageDelay)

	webhookProcessor := emailUsecase.NewWebhookProcessor(subRepo, userRepo, gmailService, analyzer, cfg.MessageDelay)
	renewalService := emailUsecase.NewWebhookRenewalService(subRepo, userRepo, gmailService, topicName,
		cfg.RenewalBuffer, cfg.RenewalInterval)

	subscriptionManager := emailUsecase.NewSubscriptionManager(subRepo, watermarkRepo, accountRepo, retryRepo,
		userRepo, gmailService, topicChecker, topicName, idleManager, box, cfg.PollInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// IMAP IDLE connections do not survive a restart; reattach them
	subscriptionManager.ResumeImapConnections(ctx)

	poller.Start(ctx)
	renewalService.Start(ctx)

	// Use cases and HTTP surface
	authUsecaseInstance := authUsecase.NewAuthUsecase(userRepo, cfg)
	webhookHandler := emailDelivery.NewWebhookHandler(webhookProcessor)
	accountHandler := emailDelivery.NewAccountHandler(subscriptionManager, subRepo, analysisRepo, watermarkRepo)
	fcmHandler := authDelivery.NewFCMHandler(fcmTokenRepo)
	noteHandler := notesDelivery.NewNoteHandler(noteRepo)

	handler := api.NewHandler(authUsecaseInstance, webhookHandler, accountHandler, fcmHandler, noteHandler, cfg)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		errCh <- handler.Start(":" + cfg.Port)
	}()

	// Graceful shutdown: stop ingress first, then the background loops
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil {
			log.Printf("Server error: %v", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := handler.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	cancel()
	poller.Stop()
	renewalService.Stop()
	idleManager.StopAll()

	log.Println("Shutdown complete")
}

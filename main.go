package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatwidget/config"
	"chatwidget/database"
	bookingsRepo "chatwidget/database/repository/bookings"
	"chatwidget/handlers"
	"chatwidget/middleware"
	"chatwidget/models"
	"chatwidget/routes"
	"chatwidget/services/analytics"
	"chatwidget/services/conversation"
	"chatwidget/services/gateway"
	"chatwidget/services/session"
	"chatwidget/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitSessionCache()

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware())

	// Session store.
	store := session.NewRedisStore(utils.GetSessionCacheClient(), config.SessionIdleTimeout())

	// Gateway against the booking API, with optional direct AI backends.
	api := gateway.NewAPIGateway(
		config.AppConfig.APIBaseURL,
		config.AppConfig.APIKey,
		time.Duration(config.AppConfig.GatewayTimeoutSec)*time.Second,
		logger,
	)
	if config.AppConfig.GeminiAPIKey != "" {
		chatBackend, err := gateway.NewGeminiChat(config.AppConfig.GeminiAPIKey)
		if err != nil {
			logger.Sugar().Fatalf("main: failed to initialize gemini chat backend: %v", err)
		}
		api.Chat = chatBackend
		api.History = func(ctx context.Context, sessionID string) []models.ChatMessage {
			sess, err := store.Get(ctx, sessionID)
			if err != nil {
				return nil
			}
			return sess.Messages
		}
	}
	if config.AppConfig.EnableVoice && config.AppConfig.GoogleServiceAccountFile != "" {
		api.Voice = &gateway.SpeechTranscriber{
			CredentialsFile: config.AppConfig.GoogleServiceAccountFile,
		}
	}

	policy := gateway.RetryPolicy{
		MaxRetries:    config.AppConfig.GatewayMaxRetries,
		BaseDelay:     time.Duration(config.AppConfig.GatewayBaseDelayMs) * time.Millisecond,
		MaxDelay:      time.Duration(config.AppConfig.GatewayMaxDelayMs) * time.Millisecond,
		ProbeInterval: 10 * time.Second,
	}
	coord := gateway.NewCoordinator(api, policy, logger)

	// Background analytics pipeline.
	redisOpt := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
	tracker := analytics.NewTracker(redisOpt, logger)
	worker := analytics.NewWorker(redisOpt, coord, logger)
	if err := worker.Start(); err != nil {
		logger.Sugar().Fatalf("main: %v", err)
	}

	history := bookingsRepo.NewMongoRepo(database.MongoClient, "chatwidget")

	manager := conversation.NewManager(conversation.Config{
		WelcomeMessage: config.AppConfig.WelcomeMessage,
		EnableVoice:    config.AppConfig.EnableVoice,
		ConfirmAbandon: config.AppConfig.BookingAbandonConfirm,
	}, conversation.Deps{
		Store:   store,
		Gateway: coord,
		History: history,
		Tracker: tracker,
		Logger:  logger,
	})

	// Reap orchestrators for idle sessions; their stored transcripts
	// survive and can be resumed through the session endpoint.
	reapStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := manager.ReapIdle(context.Background(), config.SessionIdleTimeout()); n > 0 {
					logger.Info("reaped idle orchestrators", zap.Int("count", n))
				}
			case <-reapStop:
				return
			}
		}
	}()

	chatHandler := handlers.NewChatHandler(manager, logger)
	voiceHandler := handlers.NewVoiceHandler(manager, logger)
	bookingHandler := handlers.NewBookingHandler(manager, coord, logger)
	widgetHandler := handlers.NewWidgetHandler(manager, logger)

	// Assemble the handler bundle.
	handlerBundle := &handlers.HandlerBundle{
		StartSessionHandler: chatHandler.StartSessionHandler,
		SendMessageHandler:  chatHandler.SendMessageHandler,
		GetMessagesHandler:  chatHandler.GetMessagesHandler,
		ClearSessionHandler: chatHandler.ClearSessionHandler,

		TranscribeHandler: voiceHandler.TranscribeHandler,

		UpdateFieldHandler:   bookingHandler.UpdateFieldHandler,
		GetSlotsHandler:      bookingHandler.GetSlotsHandler,
		SelectSlotHandler:    bookingHandler.SelectSlotHandler,
		SubmitBookingHandler: bookingHandler.SubmitBookingHandler,
		CancelDraftHandler:   bookingHandler.CancelDraftHandler,
		UpdateBookingHandler: bookingHandler.UpdateBookingHandler,
		CancelBookingHandler: bookingHandler.CancelBookingHandler,

		WidgetConfigHandler: widgetHandler.WidgetConfigHandler,
		WidgetStateHandler:  widgetHandler.WidgetStateHandler,
		OpenWidgetHandler:   widgetHandler.OpenWidgetHandler,
		CloseWidgetHandler:  widgetHandler.CloseWidgetHandler,
		MinimizeHandler:     widgetHandler.MinimizeHandler,
	}

	routes.SetupRoutes(router, handlerBundle)

	srv := &http.Server{
		Addr:    ":" + config.AppConfig.AppPort,
		Handler: router,
	}

	go func() {
		logger.Info("chat widget engine listening", zap.String("port", config.AppConfig.AppPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed: %v", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("server shutdown failed", zap.Error(err))
	}
	close(reapStop)
	manager.Shutdown()
	worker.Stop()
	if err := tracker.Close(); err != nil {
		logger.Warn("tracker close failed", zap.Error(err))
	}
	coord.Close()
}

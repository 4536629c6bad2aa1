package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"whatsapp-sender/internal/api"
	"whatsapp-sender/internal/broadcast"
	"whatsapp-sender/internal/config"
	"whatsapp-sender/internal/credentials"
	"whatsapp-sender/internal/database"
	"whatsapp-sender/internal/logging"
	"whatsapp-sender/internal/templates"
	"whatsapp-sender/internal/webhook"
	"whatsapp-sender/internal/whatsapp"
	"whatsapp-sender/internal/ws"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfg := config.LoadConfig()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	history := database.NewHistoryRepository(db)

	whatsappClient := whatsapp.NewClient(cfg, logger.Named("whatsapp"))

	var backend templates.Backend = templates.NewMemoryBackend()
	if cfg.RedisAddr != "" {
		redisBackend := templates.NewRedisBackend(cfg.RedisAddr, cfg.RedisPassword)
		defer redisBackend.Close()
		backend = redisBackend
		logger.Info("sharing template cache through redis", zap.String("addr", cfg.RedisAddr))
	}
	templateCache := templates.NewCache(whatsappClient, backend, cfg.TemplateCacheTTL, logger.Named("templates"))

	store := credentials.NewStore(cfg)

	hub := ws.NewHub(logger.Named("ws"))
	go hub.Run(ctx)

	sender := broadcast.NewSender(whatsappClient, cfg.SendDelay, history, logger.Named("broadcast"))
	session := broadcast.NewSession(sender)
	session.OnProgress = hub.NotifyProgress
	session.OnFinish = hub.NotifyFinished

	middleware := api.NewMiddleware(cfg.AppPasswordHash, rate.Every(12*time.Second), 5, logger.Named("auth"))
	webhookHandler := webhook.NewHandler(cfg, history, logger.Named("webhook"))
	credentialsHandler := api.NewCredentialsHandler(store, session, logger)
	leadsHandler := api.NewLeadsHandler(session, logger)
	templatesHandler := api.NewTemplatesHandler(templateCache, store, session, logger)
	broadcastHandler := api.NewBroadcastHandler(ctx, session, templateCache, store, history, logger)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware())

	// Webhook Routes
	r.GET("/webhook", webhookHandler.VerifyWebhook)
	r.POST("/webhook", webhookHandler.HandleStatus)

	r.GET("/ws", middleware.PasswordGate(), gin.WrapF(hub.ServeWs))

	apiGroup := r.Group("/api", middleware.PasswordGate())
	{
		apiGroup.GET("/credentials", credentialsHandler.GetCredentials)
		apiGroup.PUT("/credentials", credentialsHandler.UpdateCredentials)

		apiGroup.POST("/leads", leadsHandler.UploadLeads)
		apiGroup.GET("/leads", leadsHandler.GetLeads)

		apiGroup.GET("/templates", templatesHandler.GetTemplates)
		apiGroup.GET("/templates/:name", templatesHandler.GetTemplate)
		apiGroup.POST("/templates/refresh", templatesHandler.RefreshTemplates)

		// Broadcast Routes
		apiGroup.POST("/broadcast", broadcastHandler.StartBroadcast)
		apiGroup.POST("/broadcast/cancel", broadcastHandler.CancelBroadcast)
		apiGroup.GET("/broadcast", broadcastHandler.GetStatus)
		apiGroup.GET("/broadcast/log", broadcastHandler.DownloadLog)
		apiGroup.GET("/broadcast/runs", broadcastHandler.GetRuns)
		apiGroup.GET("/broadcast/runs/:id", broadcastHandler.GetRun)
	}

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to run server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	hubStopped := make(chan struct{})
	go func() {
		hub.Wait()
		close(hubStopped)
	}()
	select {
	case <-hubStopped:
	case <-shutdownCtx.Done():
	}

	// The run context derives from ctx, so an active broadcast is already
	// stopping; wait for its history to be written.
	if done := session.Done(); done != nil {
		select {
		case <-done:
		case <-shutdownCtx.Done():
		}
	}
}

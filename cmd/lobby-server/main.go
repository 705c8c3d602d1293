package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"lobbyserver/database"
	"lobbyserver/internal/config"
	"lobbyserver/internal/microservices/http-api/handler"
	"lobbyserver/internal/microservices/http-api/middleware"
	"lobbyserver/internal/microservices/http-api/repository"
	"lobbyserver/internal/microservices/http-api/service"
	"lobbyserver/internal/microservices/lobby"
)

func main() {
	// Load config (fallback to env/default)
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Setup structured logging
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	// Connect to the database
	db, err := database.ConnectDB(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Parse Redis URL to get address (remove redis:// prefix if present)
	redisAddr := cfg.RedisURL
	redisAddr = strings.TrimPrefix(redisAddr, "redis://")
	redisAddr = strings.TrimPrefix(redisAddr, "rediss://")

	muteStore, err := lobby.NewRedisMuteStore(redisAddr, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer muteStore.Close()

	// Repositories
	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	banRepo := repository.NewBanRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// Realtime core
	core := lobby.New(cfg, banRepo, muteStore, auditRepo)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	core.Start(sweepCtx)

	// Services
	authService := service.NewAuthService(userRepo, refreshTokenRepo, cfg)
	moderationService := service.NewModerationService(banRepo, auditRepo, core)

	// Handlers
	authHandler := handler.NewAuthHandler(authService)
	moderationHandler := handler.NewModerationHandler(moderationService, cfg.DefaultMuteDuration)
	listingHandler := handler.NewListingHandler(moderationService)

	// Setup Gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	r.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public auth endpoints
	authRoutes := r.Group("/api/v1/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/refresh", authHandler.RefreshToken)
	}

	// Authenticated endpoints
	api := r.Group("/api/v1", middleware.AuthMiddleware(authService))
	{
		api.GET("/lobby/games", listingHandler.FetchGames)

		mod := api.Group("/moderation", middleware.RequireModerator())
		{
			mod.POST("/ban", moderationHandler.BanUser)
			mod.GET("/ban", moderationHandler.ListBans)
			mod.DELETE("/ban/:id", moderationHandler.LiftBan)
			mod.POST("/disconnect", moderationHandler.DisconnectUser)
			mod.POST("/mute", moderationHandler.MuteUser)
			mod.POST("/unmute", moderationHandler.UnmuteUser)
			mod.POST("/games/:id/boot", moderationHandler.BootGame)
			mod.GET("/audit", moderationHandler.AuditLog)
		}
	}

	// Realtime entrypoints (same JWT middleware, token in Authorization header)
	ws := r.Group("/ws", middleware.AuthMiddleware(authService))
	{
		ws.GET("/player", lobby.PlayerWSHandler(core))
		ws.GET("/host", lobby.HostWSHandler(core))
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: r,
	}

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		logger.Info("starting_lobby_server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("received_shutdown_signal")
	case err := <-errChan:
		logger.Error("server_error", "error", err.Error())
		os.Exit(1)
	}

	stopSweep()
	core.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_failed", "error", err.Error())
	}
	logger.Info("server_stopped_gracefully")
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

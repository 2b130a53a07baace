package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"librehub/database"
	"librehub/internal/cache"
	"librehub/internal/config"
	"librehub/internal/handler"
	"librehub/internal/middleware"
	"librehub/internal/repository"
	"librehub/internal/service"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	db, err := database.ConnectDB(cfg, logger)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}

	availability, err := cache.NewAvailabilityCache(cfg.RedisURL, cfg.AvailabilityTTL)
	if err != nil {
		logger.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	defer availability.Close()

	// Repositories
	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	bookRepo := repository.NewBookRepository(db)
	borrowRepo := repository.NewBorrowRepository(db)
	ledger := repository.NewInventoryLedger()

	// Services
	authService := service.NewAuthService(userRepo, refreshTokenRepo, cfg)
	userService := service.NewUserService(userRepo)
	bookService := service.NewBookService(db, bookRepo, availability, logger)
	borrowService := service.NewBorrowService(db, borrowRepo, ledger, availability, logger)

	// Handlers
	authHandler := handler.NewAuthHandler(authService, userService, cfg.AccessTokenTTL)
	bookHandler := handler.NewBookHandler(bookService, borrowService)
	borrowHandler := handler.NewBorrowHandler(borrowService)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authRequired := middleware.AuthMiddleware(authService)
	loginLimiter := middleware.RateLimit(cfg.LoginRatePerSecond, cfg.LoginRateBurst)

	authHandler.RegisterRoutes(r.Group("/auth"), loginLimiter, authRequired)

	books := r.Group("/books", authRequired)
	bookHandler.RegisterRoutes(books)

	borrows := r.Group("/borrows", authRequired)
	borrowHandler.RegisterRoutes(borrows)

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	logger.Info("starting api server", "addr", addr)
	if err := r.Run(addr); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelDebug
	switch cfg.LogLevel {
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(h)
}

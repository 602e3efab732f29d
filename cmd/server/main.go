// Package main runs the polls HTTP server with live results and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/openpolls/backend/config"
	"github.com/openpolls/backend/internal/admin"
	"github.com/openpolls/backend/internal/auth"
	"github.com/openpolls/backend/internal/middleware"
	"github.com/openpolls/backend/internal/polls"
	"github.com/openpolls/backend/internal/realtime"
	"github.com/openpolls/backend/internal/votes"
	"github.com/openpolls/backend/internal/worker"
	"github.com/openpolls/backend/pkg/database"
	"github.com/openpolls/backend/pkg/queue"
	"github.com/openpolls/backend/pkg/redis"
	"github.com/openpolls/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Polls (index / detail / results)
	pollRepo := polls.NewRepository(pool)
	resultsCache := polls.NewResultsCache(rdb.Client, logger)
	voteRepo := votes.NewRepository(pool)
	pollHandler := polls.NewHandler(pollRepo, voteRepo, resultsCache, cfg.Polls.IndexLimit)

	// Voting
	jobQueue := queue.NewQueue(rdb.Client, logger)
	voteService := votes.NewService(pollRepo, pollRepo, voteRepo)
	voteHandler := votes.NewHandler(voteService, pollRepo, resultsCache, jobQueue, hub, logger)

	// Admin CRUD
	adminHandler := admin.NewHandler(pollRepo, logger)

	// Background tally worker (also runs standalone via cmd/worker)
	tallyProcessor := worker.NewTallyProcessor(pollRepo, resultsCache, jobQueue, redisPubSub, logger)

	jwtValidate := func(token string) (userID string, err error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", err
		}
		return claims.UserID.String(), nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Root redirects to the poll index.
	router.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/polls/") })

	// Accounts (public)
	accounts := router.Group("/accounts")
	{
		accounts.GET("/login/", authHandler.LoginPage)
		accounts.POST("/login/", authHandler.Login)
		accounts.POST("/register/", authHandler.Register)
		accounts.POST("/logout/", authHandler.Logout)
	}

	// Polls: index and results are public; detail and voting require a user
	// and redirect anonymous visitors to the login page.
	pollPages := router.Group("/polls")
	{
		pollPages.GET("/", pollHandler.Index)
		pollPages.GET("/:id/results/", pollHandler.Results)

		restricted := pollPages.Group("")
		restricted.Use(middleware.RequireUserOrLogin(jwtService, cfg.Polls.LoginURL))
		{
			restricted.GET("/:id/", pollHandler.Detail)
			restricted.POST("/:id/vote/", voteHandler.Cast)
		}
	}

	// Admin CRUD (JWT + admin role)
	adminGroup := router.Group("/admin")
	adminGroup.Use(middleware.JWT(jwtService), middleware.RequireRole("admin"))
	{
		adminGroup.GET("/questions", adminHandler.ListQuestions)
		adminGroup.POST("/questions", adminHandler.CreateQuestion)
		adminGroup.PATCH("/questions/:id", adminHandler.UpdateQuestion)
		adminGroup.DELETE("/questions/:id", adminHandler.DeleteQuestion)
		adminGroup.GET("/questions/:id/choices", adminHandler.ListChoices)
		adminGroup.POST("/questions/:id/choices", adminHandler.CreateChoice)
		adminGroup.DELETE("/choices/:id", adminHandler.DeleteChoice)
	}

	// WebSocket live results (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go tallyProcessor.Run(workerCtx)
	logger.Info("tally worker started")

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}

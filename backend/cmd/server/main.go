package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lokalhub/backend/internal/assistant"
	"lokalhub/backend/internal/graph"
	"lokalhub/backend/internal/recorder"
	"lokalhub/backend/pkg/apperr"
	"lokalhub/backend/pkg/config"
	"lokalhub/backend/pkg/logger"
)

func main() {
	// Load configuration first so the logger knows the environment
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	if err := logger.Init(cfg.Env); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting marketplace API server...")

	// Connect to Neo4j; Connect owns the bounded startup retry
	ctx := context.Background()
	driver, err := graph.Connect(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to connect to Neo4j", zap.Error(err))
	}
	defer driver.Close(context.Background())

	if err := graph.EnsureSchema(ctx, driver, cfg.Neo4jDatabase); err != nil {
		log.Fatal("Failed to ensure schema", zap.Error(err))
	}

	// Initialize dependencies
	repo := graph.New(driver, cfg.Neo4jDatabase, cfg.QueryTimeout)
	rec := recorder.New(repo, 256, cfg.QueryTimeout)
	chat := assistant.New(cfg.AssistantBaseURL, cfg.AssistantAPIKey, cfg.AssistantModel, repo)

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		registerUserRoutes(api, repo, rec)
		registerBusinessRoutes(api, repo, rec)
		registerJobRoutes(api, repo, rec)
		registerServiceRoutes(api, repo, rec)
		registerSearchRoutes(api, repo)
		registerNotificationRoutes(api, repo)
		registerActivityRoutes(api, repo)

		// Assistant (read-only)
		api.POST("/assistant/ask", func(c *gin.Context) {
			var req struct {
				Question string `json:"question" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			answer, err := chat.Answer(c.Request.Context(), req.Question)
			if err != nil {
				log.Error("Assistant failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to answer question"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"answer": answer})
		})
	}

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := rec.Close(shutdownCtx); err != nil {
		log.Error("Recorder drain interrupted", zap.Error(err))
	}

	log.Info("Server exited")
}

// fail writes a typed repository error as the matching HTTP status
func fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logger.Get().Error("Unhandled repository error", zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": string(apperr.KindOf(err))})
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}

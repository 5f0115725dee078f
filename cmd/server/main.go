package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"approval-workflow/auth"
	"approval-workflow/internal/actor"
	"approval-workflow/internal/blob"
	"approval-workflow/internal/config"
	"approval-workflow/internal/db"
	"approval-workflow/internal/document"
	"approval-workflow/internal/logger"
	"approval-workflow/internal/middleware"
	"approval-workflow/internal/notify"
	"approval-workflow/internal/worker"
	"approval-workflow/internal/workflow"
	"approval-workflow/redis"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	config.LoadConfig()
	cfg := config.AppConfig

	zl, err := logger.New(cfg.Environment)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()

	auth.SetSecret(cfg.JWTSecret)

	// Initialize repositories
	var (
		docRepo  document.DocumentRepository
		roleRepo actor.RoleRepository
	)
	switch cfg.StorageDriver {
	case "memory":
		docRepo = document.NewMemoryRepository()
		roleRepo = actor.NewMemoryRepository()
		zl.Warn("Using in-memory storage, data is lost on restart")
	default:
		if err := db.ConnectDb(zl); err != nil {
			zl.Fatal("database unavailable", zap.Error(err))
		}
		defer db.CloseDb(zl)

		// Migrate database schema
		if err := db.Migrate(); err != nil {
			zl.Fatal("migration failed", zap.Error(err))
		}
		zl.Info("Database schema migrated successfully")

		docRepo = document.NewRepository(db.AppDb)
		roleRepo = actor.NewRepository(db.AppDb)
	}

	// Seed development actors
	if cfg.Environment == "development" {
		db.SeedData(context.Background(), roleRepo, zl)
	}

	// Initialize Redis
	redis.InitRedis(zl)
	cache := redis.NewCache(redis.RedisClient, zl)

	awsCfg := loadAWSConfig(cfg, zl)

	// Notification fan-out
	pool := worker.NewWorkerPool(cfg.WorkerPoolSize, cfg.WorkerPoolSize*64, 10*time.Second, zl)
	sinks := []notify.Sink{notify.NewLogSink(zl)}
	if cache.Enabled() {
		sinks = append(sinks, notify.NewRedisSink(cache, cfg.NotifyRedisChannel))
	}
	if cfg.SNSTopicARN != "" && awsCfg != nil {
		sinks = append(sinks, notify.NewSNSSink(sns.NewFromConfig(*awsCfg), cfg.SNSTopicARN))
	}
	if cfg.NotifyWebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(cfg.NotifyWebhookURL, cfg.NotifyWebhookSecret))
	}
	dispatcher := notify.NewDispatcher(pool, zl, sinks...)

	var locator blob.Locator = blob.StaticLocator{BaseURL: cfg.BlobBaseURL}
	if cfg.S3Bucket != "" && awsCfg != nil {
		locator = blob.NewS3Locator(*awsCfg, cfg.S3Bucket, cfg.S3Endpoint, cfg.DownloadURLTTL)
	}

	// Initialize services
	machine := workflow.DefaultMachine()
	gate := workflow.NewGate(workflow.DefaultPolicy())
	mailboxes := document.NewRouter(docRepo, gate, cache, cfg.MailboxCacheTTL, zl)
	actorService := actor.NewService(roleRepo)
	docService := document.NewService(docRepo, machine, gate, mailboxes, dispatcher, locator, zl)

	// Initialize handlers
	docHandler := document.NewHandler(docService)
	actorHandler := actor.NewHandler(actorService)
	authMiddleware := &middleware.Auth{Actors: actorService}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.ErrorHandler(zl))

	// cors setting
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: false,
	}
	if cfg.Environment == "development" {
		// Allow all origins in development
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{cfg.FrontendAddress}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "redis": cache.Enabled()})
	})

	api := router.Group("/", authMiddleware.AuthMiddleWare())
	api.GET("/me", actorHandler.GetProfile)
	docHandler.RegisterRoutes(api)

	// Server configuration
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router.Handler(),
	}

	// Start server
	go func() {
		zl.Info("Server listening", zap.String("port", cfg.ServerPort))
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			zl.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zl.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		zl.Error("Server shutdown error", zap.Error(err))
	}

	// Deliver queued events before exiting
	pool.Shutdown()
	zl.Info("Server shutdown complete")
}

// loadAWSConfig returns nil when neither S3 nor SNS is configured.
func loadAWSConfig(cfg config.Config, zl *zap.Logger) *aws.Config {
	if cfg.S3Bucket == "" && cfg.SNSTopicARN == "" {
		return nil
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		zl.Warn("AWS config unavailable, falling back to static blob URLs", zap.Error(err))
		return nil
	}
	return &awsCfg
}

// BacktestService 主程序
// 功能：提供回测撮合服务，模拟一个交易柜台，按分钟线撮合委托、维护账户/持仓
// 状态、处理除权除息事件并计算策略表现指标
// 架构：DDD 分层 + HTTP + Kafka
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
	"github.com/wyfcoding/backtestengine/internal/backtest/application"
	"github.com/wyfcoding/backtestengine/internal/backtest/domain"
	"github.com/wyfcoding/backtestengine/internal/backtest/infrastructure/feed"
	"github.com/wyfcoding/backtestengine/internal/backtest/infrastructure/messaging"
	"github.com/wyfcoding/backtestengine/internal/backtest/infrastructure/persistence/mysql"
	httphandler "github.com/wyfcoding/backtestengine/internal/backtest/interfaces/http"
	"github.com/wyfcoding/backtestengine/pkg/cache"
	"github.com/wyfcoding/backtestengine/pkg/config"
	"github.com/wyfcoding/backtestengine/pkg/db"
	"github.com/wyfcoding/backtestengine/pkg/logger"
	"github.com/wyfcoding/backtestengine/pkg/metrics"
	"github.com/wyfcoding/backtestengine/pkg/middleware"
	"github.com/wyfcoding/backtestengine/pkg/mq"
	"github.com/wyfcoding/backtestengine/pkg/ratelimit"
)

func main() {
	configPath := "configs/backtestd/config.toml"
	cfg, err := config.LoadWithDefaults(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	loggerCfg := logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}
	if err := logger.Init(loggerCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	logger.Info(ctx, "Starting BacktestService",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize database", "error", err)
	}
	defer database.Close()

	redisCache, err := cache.New(cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ConnTimeout:  cfg.Redis.ConnTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize Redis", "error", err)
	}
	defer redisCache.Close()

	rateLimiter := ratelimit.NewRedisRateLimiter(redisCache.GetClient())

	kafkaProducer, err := mq.NewProducer(mq.KafkaConfig{
		Brokers:        cfg.Kafka.Brokers,
		GroupID:        cfg.Kafka.GroupID,
		Partitions:     cfg.Kafka.Partitions,
		Replication:    cfg.Kafka.Replication,
		SessionTimeout: cfg.Kafka.SessionTimeout,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize Kafka producer", "error", err)
	}
	defer kafkaProducer.Close()

	marketDataBaseURL := config.GetEnv("BACKTEST_MARKETDATA_URL", "http://marketdata.internal/v1")
	rawFeed := feed.NewHTTPFeed(marketDataBaseURL, 10*time.Second)
	var marketFeed domain.FeedAdapter = feed.NewCachingFeed(rawFeed, redisCache.GetClient())

	snapshotRepo := mysql.NewSnapshotRepository(database.DB)
	tradePublisher := messaging.NewKafkaTradePublisher(kafkaProducer, logger.Get())

	metricsInstance := metrics.New(cfg.ServiceName)
	if err := metricsInstance.Register(); err != nil {
		logger.Fatal(ctx, "Failed to register metrics", "error", err)
	}
	if err := metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
		logger.Fatal(ctx, "Failed to start metrics HTTP server", "error", err)
	}

	registry := domain.NewRegistry(metricsInstance)
	appCfg := application.Config{
		StrictSuspensionBlocksAccount: cfg.Backtest.StrictSuspensionBlocksAccount,
		RiskFreeRate:                  cfg.Backtest.RiskFreeRate,
		DefaultBaseline:               cfg.Backtest.DefaultBaseline,
	}
	appService := application.NewBacktestApplicationService(registry, marketFeed, snapshotRepo, tradePublisher, logger.Get(), appCfg)

	adminToken := config.GetEnv("BACKTEST_ADMIN_TOKEN", "")
	httpServer := createHTTPServer(cfg, appService, rateLimiter, adminToken)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		logger.Info(ctx, "Starting HTTP server", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "HTTP server error", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info(ctx, "Shutting down BacktestService")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "HTTP server shutdown error", "error", err)
	}

	logger.Info(ctx, "BacktestService stopped")
}

func createHTTPServer(cfg *config.Config, appService *application.BacktestApplicationService, rateLimiter ratelimit.RateLimiter, adminToken string) *http.Server {
	router := gin.Default()

	router.Use(middleware.GinLoggingMiddleware())
	router.Use(middleware.GinRecoveryMiddleware())
	router.Use(middleware.GinCORSMiddleware())
	router.Use(middleware.RateLimitMiddleware(rateLimiter, cfg.RateLimit))

	handler := httphandler.NewHandler(appService, adminToken)
	handler.RegisterRoutes(router.Group("/backtest/api/trade/v0.3"))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   cfg.ServiceName,
			"timestamp": time.Now().Unix(),
		})
	})

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mailrelay/backend/internal/config"
	"mailrelay/backend/internal/health"
	"mailrelay/backend/internal/logger"
	"mailrelay/backend/internal/monitoring"
	"mailrelay/backend/internal/pool"
	"mailrelay/backend/internal/seed"
	"mailrelay/backend/internal/service"
	"mailrelay/backend/internal/storage"
	redisstore "mailrelay/backend/internal/storage/redis"
	httptransport "mailrelay/backend/internal/transport/http"
	"mailrelay/backend/internal/websocket"
)

// main 启动中继策略 HTTP 服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		File:        cfg.Log.File,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("starting mail relay server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	if err := run(cfg, log); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
	log.Info("server exited cleanly")
}

func run(cfg *config.Config, log *zap.Logger) error {
	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化存储层
	backend, err := storage.Open(cfg.Database, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	// 初始化监控系统
	metrics := monitoring.NewMetrics()
	healthChecker := health.NewHealthChecker(log)
	if backend.Persistent() {
		healthChecker.AddDependency("database", backend)
	}

	// 初始化告警系统
	alertManager := monitoring.NewAlertManager(log.Named("alert"))
	alertManager.AddReceiver(monitoring.NewLogAlertReceiver(log.Named("alert")))
	alertManager.AddRule(monitoring.HighMemoryUsageRule(512.0)) // 512MB
	if backend.Persistent() {
		alertManager.AddRule(monitoring.DependencyRule("database", backend.Ping))
	}

	// 创建 WebSocket Hub
	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, log.Named("websocket"))
	wsHub.OnClientsChanged = metrics.UpdateStreamClients

	// 日志推送：配置了 Redis 时经频道广播到所有实例，否则直接推给本地 Hub
	var publisher service.LogPublisher = wsHub
	var logBus *redisstore.LogBus
	if cfg.Redis.Address != "" {
		redisClient, err := redisstore.New(ctx, cfg.Redis, log.Named("redis"))
		if err != nil {
			return err
		}
		defer redisClient.Close()

		healthChecker.AddDependency("redis", redisClient)
		alertManager.AddRule(monitoring.DependencyRule("redis", redisClient.Ping))
		logBus = redisstore.NewLogBus(redisClient, cfg.Redis.Channel)
		publisher = logBus
	}

	// Webhook 投递协程池
	workers := pool.NewWorkerPool(cfg.Webhook.Workers, cfg.Webhook.QueueSize, log.Named("pool"))
	dispatcher := service.NewWebhookDispatcher(workers, cfg.Webhook.Secret, cfg.Webhook.Timeout, log)
	dispatcher.SetMetrics(metrics)
	if cfg.Webhook.QueueSize > 0 {
		alertManager.AddRule(monitoring.WebhookBacklogRule(workers.Pending, cfg.Webhook.QueueSize*3/4+1))
	}

	// 初始化服务层
	relayService := service.NewRelayService(backend, log)
	relayService.SetMetrics(metrics)

	logService := service.NewEvaluationLogService(backend, log)
	logService.SetPublisher(publisher)
	logService.SetMetrics(metrics)

	simulationService := service.NewSimulationService(backend, logService, log)
	simulationService.SetDispatcher(dispatcher)
	simulationService.SetMetrics(metrics)

	// 导入种子中继
	if created, err := seed.LoadAndApply(cfg.Relay.SeedFile, relayService, log.Named("seed")); err != nil {
		return fmt.Errorf("failed to seed relays: %w", err)
	} else if created > 0 {
		log.Info("seed file applied", zap.String("path", cfg.Relay.SeedFile), zap.Int("created", created))
	}

	relays, err := relayService.List()
	if err != nil {
		return fmt.Errorf("failed to list relays: %w", err)
	}
	metrics.UpdateRelaysTotal(len(relays))

	// 创建 HTTP 服务器
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:            cfg,
		RelayService:      relayService,
		SimulationService: simulationService,
		LogService:        logService,
		WebSocketHub:      wsHub,
		Metrics:           metrics,
		HealthChecker:     healthChecker,
		Logger:            log,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("starting WebSocket hub")
		wsHub.Run(groupCtx)
		return nil
	})

	// Redis 订阅 goroutine，把频道中的日志转给本地 Hub
	if logBus != nil {
		group.Go(func() error {
			log.Info("subscribing to log channel", zap.String("channel", cfg.Redis.Channel))
			if err := logBus.Subscribe(groupCtx, wsHub.Broadcast); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("log channel subscription ended", zap.Error(err))
				return err
			}
			return nil
		})
	}

	// 告警监控 goroutine
	group.Go(func() error {
		alertManager.StartMonitoring(groupCtx, time.Minute)
		return nil
	})

	// 协程池独立于信号上下文，关闭时由 Stop 排空队列
	workers.Start(context.Background())

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		// 等待已入队的 Webhook 投递结束
		workers.Stop()

		log.Info("servers stopped")
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

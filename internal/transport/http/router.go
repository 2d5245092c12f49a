package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailrelay/backend/internal/config"
	"mailrelay/backend/internal/health"
	"mailrelay/backend/internal/middleware"
	"mailrelay/backend/internal/monitoring"
	"mailrelay/backend/internal/service"
	"mailrelay/backend/internal/websocket"
)

// Handler 聚合所有 HTTP 处理逻辑。
type Handler struct {
	relays       *service.RelayService
	simulation   *service.SimulationService
	logs         *service.EvaluationLogService
	logListLimit int
}

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config            *config.Config
	RelayService      *service.RelayService
	SimulationService *service.SimulationService
	LogService        *service.EvaluationLogService
	WebSocketHub      *websocket.Hub        // 可选，为空时不注册日志流
	Metrics           *monitoring.Metrics   // 可选
	HealthChecker     *health.HealthChecker // 可选
	Logger            *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()

	if deps.Metrics != nil {
		mm := middleware.NewMonitoringMiddleware(deps.Metrics, log)
		router.Use(mm.PanicRecovery())
		router.Use(mm.HTTPMetrics())
	} else {
		router.Use(middleware.RecoveryHandler(log))
	}
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:  deps.Config.CORS.AllowedOrigins,
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length", "X-RateLimit-Limit", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowAllOrigins = true
			corsConfig.AllowOrigins = nil
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	handler := &Handler{
		relays:       deps.RelayService,
		simulation:   deps.SimulationService,
		logs:         deps.LogService,
		logListLimit: deps.Config.Relay.LogListLimit,
	}

	simulateLimit := middleware.NewRateLimiter(deps.Config.Simulate.RateLimit, deps.Config.Simulate.Burst, log)
	if deps.Metrics != nil {
		simulateLimit.SetMetrics(deps.Metrics)
	}

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.HealthChecker != nil {
		router.GET("/health/live", gin.WrapF(deps.HealthChecker.LiveHandler()))
		router.GET("/health/ready", gin.WrapF(deps.HealthChecker.ReadyHandler()))
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// V1 API
	v1 := router.Group("/v1")
	v1.Use(middleware.ValidateContentType("application/json"))
	{
		relayRoutes := v1.Group("/relays")
		{
			relayRoutes.POST("", handler.createRelay)
			relayRoutes.GET("", handler.listRelays)
			relayRoutes.POST("/simulate", simulateLimit.Middleware("simulate"), handler.simulate)
			relayRoutes.GET("/:id", handler.getRelay)
			relayRoutes.PATCH("/:id", handler.updateRelay)
			relayRoutes.DELETE("/:id", handler.deleteRelay)
		}

		v1.POST("/inbound", handler.inbound)

		logRoutes := v1.Group("/logs")
		{
			logRoutes.GET("", handler.listLogs)
			if deps.WebSocketHub != nil {
				logRoutes.GET("/stream", websocket.HandleWebSocket(deps.WebSocketHub))
			}
		}
	}

	return router
}

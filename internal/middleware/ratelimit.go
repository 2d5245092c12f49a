package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"mailrelay/backend/internal/monitoring"
)

// limiterIdleTTL 超过该时间未访问的客户端限流器会被回收
const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 按客户端 IP 的令牌桶限流
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	metrics *monitoring.Metrics
	log     *zap.Logger

	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter 创建限流器
//
// 参数:
//   - perSecond: 每秒补充的令牌数，<= 0 表示不限流
//   - burst: 桶容量
func NewRateLimiter(perSecond float64, burst int, log *zap.Logger) *RateLimiter {
	if burst <= 0 {
		burst = int(math.Max(1, math.Ceil(perSecond)))
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		log:     log,
		clients: make(map[string]*clientLimiter),
		now:     time.Now,
	}
}

// SetMetrics 设置监控指标（可选）
func (rl *RateLimiter) SetMetrics(metrics *monitoring.Metrics) {
	rl.metrics = metrics
}

// Allow 判断该客户端本次请求是否放行
func (rl *RateLimiter) Allow(key string) bool {
	if rl.limit <= 0 {
		return true
	}

	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.sweep(now)

	cl, ok := rl.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

// sweep 回收空闲的限流器，调用方持有 mu
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < limiterIdleTTL {
		return
	}
	rl.lastSweep = now
	for key, cl := range rl.clients {
		if now.Sub(cl.lastSeen) > limiterIdleTTL {
			delete(rl.clients, key)
		}
	}
}

// Middleware 返回 gin 中间件，超限时返回 429
func (rl *RateLimiter) Middleware(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.FormatFloat(float64(rl.limit), 'f', -1, 64))
		}

		if !rl.Allow(c.ClientIP()) {
			rl.log.Warn("rate limit exceeded",
				zap.String("endpoint", endpoint),
				zap.String("ip", c.ClientIP()),
			)
			if rl.metrics != nil {
				rl.metrics.RecordRateLimitBlock(endpoint)
			}
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code": http.StatusTooManyRequests,
				"msg":  "请求过于频繁，请稍后重试",
			})
			return
		}

		c.Next()
	}
}

package health

import (
	"context"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"
)

// Pinger 可探测连通性的依赖（数据库、Redis）
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker 健康检查器
//
// /live 只检查进程自身，/ready 额外检查已注册的外部依赖。
type HealthChecker struct {
	health  healthcheck.Handler
	timeout time.Duration
	logger  *zap.Logger
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(logger *zap.Logger) *HealthChecker {
	hc := &HealthChecker{
		health:  healthcheck.NewHandler(),
		timeout: 3 * time.Second,
		logger:  logger,
	}

	// 协程数量异常通常意味着泄漏
	hc.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(10000))
	return hc
}

// AddDependency 注册就绪检查
func (hc *HealthChecker) AddDependency(name string, p Pinger) {
	hc.health.AddReadinessCheck(name, hc.pingCheck(name, p))
}

func (hc *HealthChecker) pingCheck(name string, p Pinger) healthcheck.Check {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), hc.timeout)
		defer cancel()

		if err := p.Ping(ctx); err != nil {
			hc.logger.Warn("readiness check failed", zap.String("dependency", name), zap.Error(err))
			return err
		}
		return nil
	}
}

// LiveHandler 存活检查
func (hc *HealthChecker) LiveHandler() http.HandlerFunc {
	return hc.health.LiveEndpoint
}

// ReadyHandler 就绪检查
func (hc *HealthChecker) ReadyHandler() http.HandlerFunc {
	return hc.health.ReadyEndpoint
}

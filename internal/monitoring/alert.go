package monitoring

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AlertLevel 告警级别
type AlertLevel string

const (
	AlertLevelWarning  AlertLevel = "warning"
	AlertLevelCritical AlertLevel = "critical"
)

// Alert 告警
type Alert struct {
	RuleID    string     `json:"ruleId"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Level     AlertLevel `json:"level"`
	Component string     `json:"component"`
	Timestamp time.Time  `json:"timestamp"`
}

// AlertRule 告警规则，Condition 返回非空描述时触发
type AlertRule struct {
	ID        string
	Name      string
	Condition func(ctx context.Context) (string, bool)
	Level     AlertLevel
	Component string
	Cooldown  time.Duration
}

// AlertReceiver 告警接收器接口
type AlertReceiver interface {
	SendAlert(alert *Alert) error
}

// AlertManager 周期检查规则，同一规则在冷却时间内只告警一次
type AlertManager struct {
	mu            sync.Mutex
	rules         []AlertRule
	lastTriggered map[string]time.Time
	receivers     []AlertReceiver
	logger        *zap.Logger
	now           func() time.Time
}

// NewAlertManager 创建告警管理器
func NewAlertManager(logger *zap.Logger) *AlertManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertManager{
		lastTriggered: make(map[string]time.Time),
		logger:        logger,
		now:           time.Now,
	}
}

// AddReceiver 添加告警接收器
func (am *AlertManager) AddReceiver(receiver AlertReceiver) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.receivers = append(am.receivers, receiver)
}

// AddRule 添加告警规则
func (am *AlertManager) AddRule(rule AlertRule) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.rules = append(am.rules, rule)
}

// CheckRules 检查全部规则，返回本轮触发的告警
func (am *AlertManager) CheckRules(ctx context.Context) []Alert {
	am.mu.Lock()
	rules := make([]AlertRule, len(am.rules))
	copy(rules, am.rules)
	receivers := make([]AlertReceiver, len(am.receivers))
	copy(receivers, am.receivers)
	am.mu.Unlock()

	var fired []Alert
	for _, rule := range rules {
		now := am.now()

		am.mu.Lock()
		last, ok := am.lastTriggered[rule.ID]
		am.mu.Unlock()
		if ok && now.Sub(last) < rule.Cooldown {
			continue
		}

		msg, triggered := rule.Condition(ctx)
		if !triggered {
			continue
		}

		alert := Alert{
			RuleID:    rule.ID,
			Title:     rule.Name,
			Message:   msg,
			Level:     rule.Level,
			Component: rule.Component,
			Timestamp: now,
		}
		for _, receiver := range receivers {
			if err := receiver.SendAlert(&alert); err != nil {
				am.logger.Error("failed to send alert", zap.String("rule_id", rule.ID), zap.Error(err))
			}
		}

		am.mu.Lock()
		am.lastTriggered[rule.ID] = now
		am.mu.Unlock()
		fired = append(fired, alert)
	}
	return fired
}

// StartMonitoring 按间隔检查规则，阻塞直到 ctx 结束
func (am *AlertManager) StartMonitoring(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			am.CheckRules(ctx)
		}
	}
}

// ========== 内置告警规则 ==========

// HighMemoryUsageRule 堆内存超过阈值
func HighMemoryUsageRule(thresholdMB float64) AlertRule {
	return AlertRule{
		ID:   "high_memory_usage",
		Name: "High Memory Usage",
		Condition: func(context.Context) (string, bool) {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			usedMB := float64(m.Alloc) / 1024 / 1024
			if usedMB <= thresholdMB {
				return "", false
			}
			return fmt.Sprintf("heap usage %.1f MB exceeds %.1f MB", usedMB, thresholdMB), true
		},
		Level:     AlertLevelWarning,
		Component: "memory",
		Cooldown:  5 * time.Minute,
	}
}

// DependencyRule 依赖（数据库、Redis）不可用
func DependencyRule(name string, ping func(ctx context.Context) error) AlertRule {
	return AlertRule{
		ID:   "dependency_" + name,
		Name: "Dependency Unavailable",
		Condition: func(ctx context.Context) (string, bool) {
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := ping(pingCtx); err != nil {
				return fmt.Sprintf("%s ping failed: %v", name, err), true
			}
			return "", false
		},
		Level:     AlertLevelCritical,
		Component: name,
		Cooldown:  time.Minute,
	}
}

// WebhookBacklogRule Webhook 投递队列积压
func WebhookBacklogRule(pending func() int, threshold int) AlertRule {
	return AlertRule{
		ID:   "webhook_backlog",
		Name: "Webhook Backlog",
		Condition: func(context.Context) (string, bool) {
			n := pending()
			if n < threshold {
				return "", false
			}
			return fmt.Sprintf("%d webhook deliveries queued (threshold %d)", n, threshold), true
		},
		Level:     AlertLevelWarning,
		Component: "webhook",
		Cooldown:  2 * time.Minute,
	}
}

// ========== 告警接收器实现 ==========

// LogAlertReceiver 日志告警接收器
type LogAlertReceiver struct {
	logger *zap.Logger
}

// NewLogAlertReceiver 创建日志告警接收器
func NewLogAlertReceiver(logger *zap.Logger) *LogAlertReceiver {
	return &LogAlertReceiver{logger: logger}
}

// SendAlert 发送告警到日志
func (lar *LogAlertReceiver) SendAlert(alert *Alert) error {
	fields := []zap.Field{
		zap.String("rule_id", alert.RuleID),
		zap.String("title", alert.Title),
		zap.String("message", alert.Message),
		zap.String("component", alert.Component),
		zap.Time("timestamp", alert.Timestamp),
	}
	if alert.Level == AlertLevelCritical {
		lar.logger.Error("CRITICAL ALERT", fields...)
	} else {
		lar.logger.Warn("WARNING ALERT", fields...)
	}
	return nil
}

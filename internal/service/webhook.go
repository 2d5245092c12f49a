package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailrelay/backend/internal/domain"
	"mailrelay/backend/internal/monitoring"
	"mailrelay/backend/internal/pool"
)

const (
	// HeaderSignature 请求体的 HMAC-SHA256 签名
	HeaderSignature = "X-Relay-Signature"
	// HeaderEvent 事件类型
	HeaderEvent = "X-Relay-Event"
	// HeaderDelivery 投递 ID
	HeaderDelivery = "X-Relay-Delivery"
)

// WebhookDispatcher 通过协程池异步投递中继 Webhook
type WebhookDispatcher struct {
	pool       *pool.WorkerPool
	httpClient *http.Client
	secret     string
	metrics    *monitoring.Metrics
	log        *zap.Logger

	// 投递完成回调，测试用
	onDelivered func(domain.WebhookDelivery)
}

// NewWebhookDispatcher 创建 Webhook 投递器
func NewWebhookDispatcher(workers *pool.WorkerPool, secret string, timeout time.Duration, log *zap.Logger) *WebhookDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &WebhookDispatcher{
		pool: workers,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		secret: secret,
		log:    log.Named("webhook"),
	}
}

// SetMetrics 设置监控指标（可选）
func (d *WebhookDispatcher) SetMetrics(metrics *monitoring.Metrics) {
	d.metrics = metrics
}

// Dispatch 把事件放入投递队列，不等待结果。队列已满时丢弃并返回错误。
func (d *WebhookDispatcher) Dispatch(event domain.WebhookEvent) error {
	err := d.pool.TrySubmit(func() {
		d.deliver(context.Background(), event)
	})
	if err != nil {
		d.log.Warn("webhook dropped",
			zap.String("event_id", event.ID),
			zap.String("relay_id", event.Relay.ID),
			zap.Error(err),
		)
		if d.metrics != nil {
			d.metrics.RecordWebhookDelivery(monitoring.DeliveryDropped, 0)
		}
		return err
	}
	return nil
}

// deliver 发送一次 POST 请求，2xx 视为成功
func (d *WebhookDispatcher) deliver(ctx context.Context, event domain.WebhookEvent) domain.WebhookDelivery {
	delivery := domain.WebhookDelivery{
		EventID: event.ID,
		URL:     event.URL,
	}
	defer d.finish(&delivery)

	payload, err := json.Marshal(event)
	if err != nil {
		delivery.Error = err.Error()
		return delivery
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, event.URL, bytes.NewReader(payload))
	if err != nil {
		delivery.Error = err.Error()
		return delivery
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, string(event.Event))
	req.Header.Set(HeaderDelivery, event.ID)
	if d.secret != "" {
		req.Header.Set(HeaderSignature, generateSignature(payload, d.secret))
	}

	startTime := time.Now()
	resp, err := d.httpClient.Do(req)
	delivery.Duration = time.Since(startTime)
	if err != nil {
		delivery.Error = err.Error()
		return delivery
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	delivery.StatusCode = resp.StatusCode
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		delivery.Success = true
	} else {
		delivery.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	return delivery
}

func (d *WebhookDispatcher) finish(delivery *domain.WebhookDelivery) {
	result := monitoring.DeliverySuccess
	if delivery.Success {
		d.log.Debug("webhook delivered",
			zap.String("event_id", delivery.EventID),
			zap.Int("status", delivery.StatusCode),
			zap.Duration("duration", delivery.Duration),
		)
	} else {
		result = monitoring.DeliveryFailure
		d.log.Warn("webhook delivery failed",
			zap.String("event_id", delivery.EventID),
			zap.String("url", delivery.URL),
			zap.Int("status", delivery.StatusCode),
			zap.String("error", delivery.Error),
		)
	}
	if d.metrics != nil {
		d.metrics.RecordWebhookDelivery(result, delivery.Duration)
	}
	if d.onDelivered != nil {
		d.onDelivered(*delivery)
	}
}

// newRelayMatchedEvent 构造中继命中事件
func newRelayMatchedEvent(relay *domain.Relay, result domain.EvaluationResult, msg domain.InboundMessage, now time.Time) domain.WebhookEvent {
	return domain.WebhookEvent{
		ID:        uuid.NewString(),
		Event:     domain.WebhookEventRelayMatched,
		Timestamp: now,
		URL:       relay.Actions.WebhookURL,
		Relay: domain.WebhookRelay{
			ID:   relay.ID,
			Name: relay.Name,
		},
		Message: domain.WebhookMessage{
			Subject:     msg.Subject,
			From:        msg.From,
			To:          msg.To,
			CC:          msg.CC,
			BodyPreview: msg.BodyPreview,
		},
		Actions: result.Actions,
	}
}

// generateSignature 生成 HMAC-SHA256 签名
func generateSignature(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

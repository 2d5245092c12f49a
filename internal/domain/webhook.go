package domain

import "time"

// WebhookEventType Webhook 事件类型
type WebhookEventType string

const (
	WebhookEventRelayMatched WebhookEventType = "relay.matched" // 入站邮件命中中继
)

// WebhookRelay 事件中的中继快照
type WebhookRelay struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// WebhookMessage 事件中的邮件摘要
type WebhookMessage struct {
	Subject     string   `json:"subject"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	CC          []string `json:"cc,omitempty"`
	BodyPreview string   `json:"bodyPreview,omitempty"`
}

// WebhookEvent Webhook 事件数据，只投递一次，不重试
type WebhookEvent struct {
	ID        string           `json:"id"`
	Event     WebhookEventType `json:"event"`     // 事件类型
	Timestamp time.Time        `json:"timestamp"` // 事件时间
	URL       string           `json:"-"`         // 投递地址
	Relay     WebhookRelay     `json:"relay"`
	Message   WebhookMessage   `json:"message"`
	Actions   []string         `json:"actions"`
}

// WebhookDelivery 单次投递结果
type WebhookDelivery struct {
	EventID    string        `json:"eventId"`
	URL        string        `json:"url"`
	StatusCode int           `json:"statusCode"` // HTTP 状态码，请求失败时为 0
	Duration   time.Duration `json:"duration"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
}

package domain

import (
	"strings"
	"time"
)

// InboundMessage 评估输入的入站邮件描述，只在单次评估中使用，不持久化
type InboundMessage struct {
	Subject     string   `json:"subject" validate:"required"`
	From        string   `json:"from" validate:"required"`
	To          string   `json:"to" validate:"required"`
	CC          []string `json:"cc"`
	BodyPreview string   `json:"bodyPreview,omitempty"` // 仅供展示，不参与匹配
}

// Validate 在调用评估器之前校验入站邮件，subject/from/to 不能为空白
func (m *InboundMessage) Validate() error {
	check := InboundMessage{
		Subject: strings.TrimSpace(m.Subject),
		From:    strings.TrimSpace(m.From),
		To:      strings.TrimSpace(m.To),
	}
	return ValidateStruct(check)
}

// EvaluationResult 单条中继的评估结果
type EvaluationResult struct {
	RelayID   string   `json:"relayId"`
	RelayName string   `json:"relayName"`
	Matched   bool     `json:"matched"`
	Reasons   []string `json:"reasons"` // 命中与未命中的条件都会记录
	Actions   []string `json:"actions"` // 未命中时为空
}

// LogStatus 评估日志状态
type LogStatus string

const (
	LogStatusRelayed LogStatus = "relayed" // 已命中并中继
)

// LogEntry 评估日志条目，只追加不修改。
// 中继信息为快照，删除中继不影响已有条目。
type LogEntry struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	RelayID       string    `json:"relayId"`
	RelayName     string    `json:"relayName"`
	Subject       string    `json:"subject"`
	From          string    `json:"from"`
	Status        LogStatus `json:"status"`
	ActionSummary string    `json:"actionSummary"`
}

// EvaluationLogRepository 评估日志存储接口
type EvaluationLogRepository interface {
	// AppendLogEntries 原子追加一批条目
	AppendLogEntries(entries []LogEntry) error
	// ListLogEntries 按时间倒序返回，limit <= 0 表示全部
	ListLogEntries(limit int) ([]LogEntry, error)
}

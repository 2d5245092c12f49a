package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailrelay/backend/internal/domain"
	"mailrelay/backend/internal/monitoring"
)

// LogPublisher 接收新写入的评估日志（WebSocket Hub 或 Redis 频道）
type LogPublisher interface {
	PublishLogEntries(ctx context.Context, entries []domain.LogEntry) error
}

// EvaluationLogService 评估日志，只追加
type EvaluationLogService struct {
	repo      domain.EvaluationLogRepository
	publisher LogPublisher
	metrics   *monitoring.Metrics
	log       *zap.Logger
	now       func() time.Time
}

// NewEvaluationLogService 创建评估日志服务
func NewEvaluationLogService(repo domain.EvaluationLogRepository, log *zap.Logger) *EvaluationLogService {
	if log == nil {
		log = zap.NewNop()
	}
	return &EvaluationLogService{
		repo: repo,
		log:  log.Named("evaluation_log"),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// SetPublisher 设置日志推送目标（可选）
func (s *EvaluationLogService) SetPublisher(publisher LogPublisher) {
	s.publisher = publisher
}

// SetMetrics 设置监控指标（可选）
func (s *EvaluationLogService) SetMetrics(metrics *monitoring.Metrics) {
	s.metrics = metrics
}

// Record 为每个命中的结果追加一条日志，同一次调用的条目一次性写入。
// 推送失败只记录告警，不影响返回。
func (s *EvaluationLogService) Record(ctx context.Context, results []domain.EvaluationResult, msg domain.InboundMessage) ([]domain.LogEntry, error) {
	now := s.now()
	entries := make([]domain.LogEntry, 0, len(results))
	for _, r := range results {
		if !r.Matched {
			continue
		}
		entries = append(entries, domain.LogEntry{
			ID:            uuid.NewString(),
			Timestamp:     now,
			RelayID:       r.RelayID,
			RelayName:     r.RelayName,
			Subject:       msg.Subject,
			From:          msg.From,
			Status:        domain.LogStatusRelayed,
			ActionSummary: strings.Join(r.Actions, "; "),
		})
	}
	if len(entries) == 0 {
		return entries, nil
	}

	if err := s.repo.AppendLogEntries(entries); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordLogEntries(len(entries))
	}

	if s.publisher != nil {
		if err := s.publisher.PublishLogEntries(ctx, entries); err != nil {
			s.log.Warn("failed to publish log entries", zap.Int("count", len(entries)), zap.Error(err))
			if s.metrics != nil {
				s.metrics.RecordError("publish_failed", "evaluation_log")
			}
		}
	}
	return entries, nil
}

// List 按时间倒序返回日志，limit <= 0 表示全部
func (s *EvaluationLogService) List(limit int) ([]domain.LogEntry, error) {
	return s.repo.ListLogEntries(limit)
}

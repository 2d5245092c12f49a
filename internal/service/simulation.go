package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mailrelay/backend/internal/domain"
	"mailrelay/backend/internal/engine"
	"mailrelay/backend/internal/monitoring"
)

// ProcessResult 入站处理结果
type ProcessResult struct {
	Results        []domain.EvaluationResult `json:"results"`
	WebhooksQueued int                       `json:"webhooksQueued"`
}

// SimulationService 把入站邮件交给评估器，并为命中的中继写入评估日志
type SimulationService struct {
	relays     domain.RelayRepository
	logs       *EvaluationLogService
	dispatcher *WebhookDispatcher
	metrics    *monitoring.Metrics
	log        *zap.Logger
	now        func() time.Time
}

// NewSimulationService 创建模拟服务
func NewSimulationService(relays domain.RelayRepository, logs *EvaluationLogService, log *zap.Logger) *SimulationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SimulationService{
		relays: relays,
		logs:   logs,
		log:    log.Named("simulation"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetDispatcher 设置 Webhook 投递器（可选）
func (s *SimulationService) SetDispatcher(dispatcher *WebhookDispatcher) {
	s.dispatcher = dispatcher
}

// SetMetrics 设置监控指标（可选）
func (s *SimulationService) SetMetrics(metrics *monitoring.Metrics) {
	s.metrics = metrics
}

// Simulate 对当前全部中继评估一封邮件，按中继创建顺序返回每条中继的结果。
// 输入校验失败时不评估也不写日志。
func (s *SimulationService) Simulate(ctx context.Context, msg domain.InboundMessage) ([]domain.EvaluationResult, error) {
	results, _, err := s.evaluate(ctx, msg, monitoring.SourceSimulate)
	return results, err
}

// Process 与 Simulate 相同，另外为命中且配置了 webhookUrl 的中继投递一次 Webhook
func (s *SimulationService) Process(ctx context.Context, msg domain.InboundMessage) (*ProcessResult, error) {
	results, relays, err := s.evaluate(ctx, msg, monitoring.SourceInbound)
	if err != nil {
		return nil, err
	}

	out := &ProcessResult{Results: results}
	if s.dispatcher == nil {
		return out, nil
	}

	now := s.now()
	for i, r := range results {
		// 结果与快照一一对应
		relay := &relays[i]
		if !r.Matched || relay.Actions.WebhookURL == "" {
			continue
		}
		event := newRelayMatchedEvent(relay, r, msg, now)
		if err := s.dispatcher.Dispatch(event); err != nil {
			continue
		}
		out.WebhooksQueued++
	}
	return out, nil
}

func (s *SimulationService) evaluate(ctx context.Context, msg domain.InboundMessage, source string) ([]domain.EvaluationResult, []domain.Relay, error) {
	if err := msg.Validate(); err != nil {
		return nil, nil, err
	}

	relays, err := s.relays.ListRelays()
	if err != nil {
		return nil, nil, err
	}

	start := time.Now()
	results := engine.Evaluate(msg, relays)
	duration := time.Since(start)

	entries, err := s.logs.Record(ctx, results, msg)
	if err != nil {
		s.log.Error("failed to record evaluation log", zap.Error(err))
		return nil, nil, err
	}

	s.log.Debug("message evaluated",
		zap.String("source", source),
		zap.String("subject", msg.Subject),
		zap.String("from", msg.From),
		zap.Int("relays", len(relays)),
		zap.Int("matched", len(entries)),
	)
	if s.metrics != nil {
		s.metrics.RecordEvaluation(source, duration, len(entries))
	}
	return results, relays, nil
}

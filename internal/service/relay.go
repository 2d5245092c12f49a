package service

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailrelay/backend/internal/domain"
	"mailrelay/backend/internal/monitoring"
)

// RelayService 中继注册表，负责 ID 分配、校验和规范化，持久化交给 RelayRepository。
type RelayService struct {
	repo    domain.RelayRepository
	metrics *monitoring.Metrics
	log     *zap.Logger
	now     func() time.Time
}

// NewRelayService 创建中继服务。
func NewRelayService(repo domain.RelayRepository, log *zap.Logger) *RelayService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RelayService{
		repo: repo,
		log:  log.Named("relay"),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// SetMetrics 设置监控指标（可选）
func (s *RelayService) SetMetrics(metrics *monitoring.Metrics) {
	s.metrics = metrics
}

// Create 创建中继，分配新的 UUID。
func (s *RelayService) Create(input domain.CreateRelayInput) (*domain.Relay, error) {
	relay, err := domain.NewRelay(uuid.NewString(), input, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateRelay(relay); err != nil {
		return nil, err
	}

	s.log.Info("relay created",
		zap.String("relay_id", relay.ID),
		zap.String("name", relay.Name),
		zap.String("inbound_address", relay.InboundAddress),
	)
	if s.metrics != nil {
		s.metrics.RecordRelayChange("create")
		s.metrics.RelaysTotal.Inc()
	}
	return relay, nil
}

// Get 获取中继。
func (s *RelayService) Get(id string) (*domain.Relay, error) {
	return s.repo.GetRelay(id)
}

// List 按创建顺序返回全部中继。
func (s *RelayService) List() ([]domain.Relay, error) {
	return s.repo.ListRelays()
}

// Update 局部更新中继，只合并输入中提供的字段。
func (s *RelayService) Update(id string, input domain.UpdateRelayInput) (*domain.Relay, error) {
	now := s.now()
	relay, err := s.repo.UpdateRelay(id, func(r *domain.Relay) error {
		return input.ApplyTo(r, now)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("relay updated", zap.String("relay_id", id), zap.Bool("active", relay.Active))
	if s.metrics != nil {
		s.metrics.RecordRelayChange("update")
	}
	return relay, nil
}

// Delete 删除中继，返回删除前是否存在。已有的评估日志不受影响。
func (s *RelayService) Delete(id string) (bool, error) {
	existed, err := s.repo.DeleteRelay(id)
	if err != nil {
		return false, err
	}

	if existed {
		s.log.Info("relay deleted", zap.String("relay_id", id))
		if s.metrics != nil {
			s.metrics.RecordRelayChange("delete")
			s.metrics.RelaysTotal.Dec()
		}
	}
	return existed, nil
}

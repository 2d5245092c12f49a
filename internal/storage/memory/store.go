package memory

import (
	"sync"

	"mailrelay/backend/internal/domain"
)

// Store 使用内存保存中继与评估日志，主要用于开发验证和单实例部署。
//
// 中继索引由 mu 保护（成员和创建顺序），每条中继另有独立的锁，
// 同一 ID 的 读取-修改-写入 串行执行，不同 ID 之间互不阻塞。
type Store struct {
	mu     sync.RWMutex
	relays map[string]*relayEntry
	order  []string // 创建顺序

	logMu sync.RWMutex
	logs  []domain.LogEntry // 追加顺序，最旧在前
}

type relayEntry struct {
	mu      sync.Mutex
	relay   *domain.Relay
	deleted bool
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		relays: make(map[string]*relayEntry),
		order:  make([]string, 0),
		logs:   make([]domain.LogEntry, 0),
	}
}

// CreateRelay 保存新中继，ID 重复时返回 ErrRelayExists。
func (s *Store) CreateRelay(relay *domain.Relay) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.relays[relay.ID]; ok {
		return domain.ErrRelayExists
	}
	s.relays[relay.ID] = &relayEntry{relay: relay.Clone()}
	s.order = append(s.order, relay.ID)
	return nil
}

// GetRelay 根据 ID 获取中继副本。
func (s *Store) GetRelay(id string) (*domain.Relay, error) {
	entry, ok := s.lookup(id)
	if !ok {
		return nil, domain.ErrRelayNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.deleted {
		return nil, domain.ErrRelayNotFound
	}
	return entry.relay.Clone(), nil
}

// ListRelays 按创建顺序返回全部中继的快照。
func (s *Store) ListRelays() ([]domain.Relay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Relay, 0, len(s.order))
	for _, id := range s.order {
		entry := s.relays[id]
		entry.mu.Lock()
		result = append(result, *entry.relay.Clone())
		entry.mu.Unlock()
	}
	return result, nil
}

// UpdateRelay 在该中继的锁内执行 mutate。
// mutate 作用于副本，返回错误时原数据不变。
func (s *Store) UpdateRelay(id string, mutate func(relay *domain.Relay) error) (*domain.Relay, error) {
	entry, ok := s.lookup(id)
	if !ok {
		return nil, domain.ErrRelayNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.deleted {
		return nil, domain.ErrRelayNotFound
	}

	next := entry.relay.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.ID = entry.relay.ID
	entry.relay = next
	return next.Clone(), nil
}

// DeleteRelay 删除中继，返回删除前是否存在。
func (s *Store) DeleteRelay(id string) (bool, error) {
	s.mu.Lock()
	entry, ok := s.relays[id]
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	delete(s.relays, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	// 等待进行中的更新结束，之后的更新会看到 deleted
	entry.mu.Lock()
	entry.deleted = true
	entry.mu.Unlock()
	return true, nil
}

func (s *Store) lookup(id string) (*relayEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.relays[id]
	return entry, ok
}

package memory

import "mailrelay/backend/internal/domain"

// AppendLogEntries 一次性追加一批评估日志，读者看不到只追加了一部分的状态。
func (s *Store) AppendLogEntries(entries []domain.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	s.logMu.Lock()
	defer s.logMu.Unlock()
	s.logs = append(s.logs, entries...)
	return nil
}

// ListLogEntries 按时间倒序返回日志副本，limit <= 0 表示全部。
func (s *Store) ListLogEntries(limit int) ([]domain.LogEntry, error) {
	s.logMu.RLock()
	defer s.logMu.RUnlock()

	n := len(s.logs)
	if limit > 0 && limit < n {
		n = limit
	}

	result := make([]domain.LogEntry, 0, n)
	for i := len(s.logs) - 1; i >= 0 && len(result) < n; i-- {
		result = append(result, s.logs[i])
	}
	return result, nil
}

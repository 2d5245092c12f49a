package sql

import (
	"gorm.io/gorm"

	"mailrelay/backend/internal/domain"
)

// ========== Evaluation Log Repository ==========

// AppendLogEntries 在一个事务中插入整批日志
func (s *Store) AppendLogEntries(entries []domain.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	records := make([]logEntryRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, newLogEntryRecord(e))
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&records).Error
	})
}

// ListLogEntries 按插入顺序倒序返回，limit <= 0 表示全部
func (s *Store) ListLogEntries(limit int) ([]domain.LogEntry, error) {
	query := s.db.Order("seq DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []logEntryRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}

	entries := make([]domain.LogEntry, 0, len(records))
	for i := range records {
		entries = append(entries, records[i].toDomain())
	}
	return entries, nil
}

package sql

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mailrelay/backend/internal/domain"
)

// ========== Relay Repository ==========

// CreateRelay 保存新中继，ID 重复时返回 ErrRelayExists
func (s *Store) CreateRelay(relay *domain.Relay) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&relayRecord{}).Where("relay_id = ?", relay.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return domain.ErrRelayExists
		}

		rec := newRelayRecord(relay)
		if err := tx.Create(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrRelayExists
			}
			return err
		}
		return nil
	})
}

// GetRelay 根据 ID 获取中继
func (s *Store) GetRelay(id string) (*domain.Relay, error) {
	var rec relayRecord
	err := s.db.Where("relay_id = ?", id).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRelayNotFound
		}
		return nil, err
	}
	return rec.toDomain(), nil
}

// ListRelays 按创建顺序返回全部中继
func (s *Store) ListRelays() ([]domain.Relay, error) {
	var records []relayRecord
	if err := s.db.Order("seq ASC").Find(&records).Error; err != nil {
		return nil, err
	}

	relays := make([]domain.Relay, 0, len(records))
	for i := range records {
		relays = append(relays, *records[i].toDomain())
	}
	return relays, nil
}

// UpdateRelay 在事务内加行锁执行 读取-修改-写入
func (s *Store) UpdateRelay(id string, mutate func(relay *domain.Relay) error) (*domain.Relay, error) {
	var updated *domain.Relay

	err := s.db.Transaction(func(tx *gorm.DB) error {
		query := tx
		if s.supportsRowLock() {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var rec relayRecord
		if err := query.Where("relay_id = ?", id).First(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrRelayNotFound
			}
			return err
		}

		relay := rec.toDomain()
		if err := mutate(relay); err != nil {
			return err
		}
		relay.ID = rec.RelayID

		next := newRelayRecord(relay)
		next.Seq = rec.Seq
		if err := tx.Save(&next).Error; err != nil {
			return err
		}
		updated = relay
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteRelay 删除中继，返回删除前是否存在
func (s *Store) DeleteRelay(id string) (bool, error) {
	result := s.db.Where("relay_id = ?", id).Delete(&relayRecord{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"mailrelay/backend/internal/config"
	"mailrelay/backend/internal/domain"
	"mailrelay/backend/internal/storage/memory"
	sqlstore "mailrelay/backend/internal/storage/sql"
)

// Store 聚合中继注册表与评估日志的存储接口。
type Store interface {
	domain.RelayRepository
	domain.EvaluationLogRepository
}

var (
	_ Store = (*memory.Store)(nil)
	_ Store = (*sqlstore.Store)(nil)
)

// Backend 已打开的存储后端
type Backend struct {
	Store
	Kind string // "memory" 或数据库类型

	sql *sqlstore.Store
}

// Open 根据数据库配置打开存储，Type 为空时使用内存存储
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*Backend, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if cfg.Type == "" {
		log.Info("using memory storage")
		return &Backend{Store: memory.NewStore(), Kind: "memory"}, nil
	}

	store, err := sqlstore.NewStore(cfg.Type, cfg.DSN, sqlstore.Options{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Type, err)
	}

	if cfg.AutoMigrate {
		if err := store.Migrate(); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to migrate %s storage: %w", cfg.Type, err)
		}
		log.Info("database schema migrated", zap.String("type", cfg.Type))
	}

	log.Info("using database storage", zap.String("type", cfg.Type))
	return &Backend{Store: store, Kind: cfg.Type, sql: store}, nil
}

// Persistent 是否为数据库存储
func (b *Backend) Persistent() bool {
	return b.sql != nil
}

// Ping 检查数据库连接，内存存储始终可用
func (b *Backend) Ping(ctx context.Context) error {
	if b.sql == nil {
		return nil
	}
	return b.sql.Ping(ctx)
}

// Close 释放数据库连接
func (b *Backend) Close() error {
	if b.sql == nil {
		return nil
	}
	return b.sql.Close()
}

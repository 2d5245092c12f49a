package sql

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 支持的数据库类型
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// Options 连接池参数
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store 基于 GORM 的中继与评估日志存储（支持 PostgreSQL、MySQL 和 SQLite）
type Store struct {
	db *gorm.DB
}

// NewStore 按数据库类型打开存储
func NewStore(driverName, dsn string, opts Options) (*Store, error) {
	var dialector gorm.Dialector
	switch driverName {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverMySQL:
		dialector = mysql.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: postgres, mysql, sqlite)", driverName)
	}
	return NewStoreWithDialector(dialector, opts)
}

// NewStoreWithDialector 使用指定的 GORM dialector 创建存储实例
func NewStoreWithDialector(dialector gorm.Dialector, opts Options) (*Store, error) {
	config := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent), // 静默模式
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// SQLite 只允许一个写连接，事务串行执行
	if db.Dialector.Name() == DriverSQLite {
		opts.MaxOpenConns = 1
		opts.MaxIdleConns = 1
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	return &Store{db: db}, nil
}

// Migrate 自动迁移表结构
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&relayRecord{}, &logEntryRecord{})
}

// DropTables 删除全部表，供迁移工具回滚使用
func (s *Store) DropTables() error {
	return s.db.Migrator().DropTable(&logEntryRecord{}, &relayRecord{})
}

// Ping 检查数据库连接
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// supportsRowLock SQLite 不支持 SELECT ... FOR UPDATE
func (s *Store) supportsRowLock() bool {
	return s.db.Dialector.Name() != DriverSQLite
}

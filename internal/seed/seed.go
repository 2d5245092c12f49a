// Package seed 从 YAML 文件导入初始中继定义。
package seed

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"mailrelay/backend/internal/domain"
)

// File 种子文件结构
//
//	relays:
//	  - name: Billing
//	    inboundAddress: billing@relay.dev
//	    targetInbox: finance@corp.com
//	    conditions:
//	      subjectKeywords: [invoice]
type File struct {
	Relays []domain.CreateRelayInput `yaml:"relays"`
}

// RelayCreator 创建并列出中继，由 service.RelayService 实现
type RelayCreator interface {
	Create(input domain.CreateRelayInput) (*domain.Relay, error)
	List() ([]domain.Relay, error)
}

// Load 读取并解析种子文件
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %q: %w", path, err)
	}
	return Parse(data)
}

// Parse 解析种子内容
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &f, nil
}

// Apply 依次创建文件中的中继。注册表非空时跳过，避免持久化存储重启后重复导入。
// 返回新建的中继数量，任一条目校验失败时停止并返回错误。
func Apply(creator RelayCreator, f *File, log *zap.Logger) (int, error) {
	if log == nil {
		log = zap.NewNop()
	}

	existing, err := creator.List()
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		log.Info("relay registry not empty, skipping seed", zap.Int("existing", len(existing)))
		return 0, nil
	}

	created := 0
	for i, input := range f.Relays {
		if _, err := creator.Create(input); err != nil {
			return created, fmt.Errorf("seed relay #%d (%s): %w", i+1, input.Name, err)
		}
		created++
	}
	log.Info("relays seeded", zap.Int("count", created))
	return created, nil
}

// LoadAndApply 读取种子文件并导入，path 为空时什么都不做
func LoadAndApply(path string, creator RelayCreator, log *zap.Logger) (int, error) {
	if path == "" {
		return 0, nil
	}
	f, err := Load(path)
	if err != nil {
		return 0, err
	}
	return Apply(creator, f, log)
}

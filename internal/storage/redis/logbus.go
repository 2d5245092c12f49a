package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mailrelay/backend/internal/domain"
)

// LogBus 通过 Redis 频道在多个实例之间广播新写入的评估日志。
// 日志本身仍由存储层持久化，频道只负责实时推送。
type LogBus struct {
	rdb     goredis.UniversalClient
	channel string
	log     *zap.Logger
}

// logBatch 频道消息体，一次追加对应一条消息
type logBatch struct {
	Entries []domain.LogEntry `json:"entries"`
}

// NewLogBus 创建日志广播总线
func NewLogBus(client *Client, channel string) *LogBus {
	return newLogBus(client.rdb, channel, client.log)
}

func newLogBus(rdb goredis.UniversalClient, channel string, log *zap.Logger) *LogBus {
	if channel == "" {
		channel = "mailrelay:logs"
	}
	return &LogBus{
		rdb:     rdb,
		channel: channel,
		log:     log.Named("logbus"),
	}
}

// PublishLogEntries 发布一批日志
func (b *LogBus) PublishLogEntries(ctx context.Context, entries []domain.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	payload, err := encodeBatch(entries)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish log entries: %w", err)
	}
	return nil
}

// Subscribe 订阅频道并把收到的日志交给 handler，阻塞直到 ctx 结束
func (b *LogBus) Subscribe(ctx context.Context, handler func([]domain.LogEntry)) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	// 等待订阅确认，确保之后发布的消息不会丢失
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.log.Info("subscribed to log channel", zap.String("channel", b.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			entries, err := decodeBatch(msg.Payload)
			if err != nil {
				b.log.Warn("dropping malformed log batch", zap.Error(err))
				continue
			}
			handler(entries)
		}
	}
}

func encodeBatch(entries []domain.LogEntry) (string, error) {
	data, err := json.Marshal(logBatch{Entries: entries})
	if err != nil {
		return "", fmt.Errorf("encode log batch: %w", err)
	}
	return string(data), nil
}

func decodeBatch(payload string) ([]domain.LogEntry, error) {
	var batch logBatch
	if err := json.Unmarshal([]byte(payload), &batch); err != nil {
		return nil, fmt.Errorf("decode log batch: %w", err)
	}
	return batch.Entries, nil
}

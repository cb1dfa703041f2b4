package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/maizdemicorazon/pos-connectivity/internal/connectivity"
)

const publishTimeout = 3 * time.Second

// SnapshotMessage 写入 Redis 的快照消息
type SnapshotMessage struct {
	AgentID     string                `json:"agentId"`
	PublishedAt time.Time             `json:"publishedAt"`
	Snapshot    connectivity.Snapshot `json:"snapshot"`
}

// SnapshotPublisher 将连接状态发布到 Redis：
// SET <prefix>:<agentID>（带 TTL，供看板读取最新状态），并 PUBLISH 到 <prefix>:events。
// Offer 不阻塞，积压时只保留最新快照。
type SnapshotPublisher struct {
	rdb     redis.Cmdable
	agentID string
	key     string
	channel string
	ttl     time.Duration
	logger  *zap.Logger

	pending chan connectivity.Snapshot
	now     func() time.Time
}

// NewSnapshotPublisher 创建发布器
func NewSnapshotPublisher(rdb redis.Cmdable, keyPrefix, agentID string, ttl time.Duration, logger *zap.Logger) *SnapshotPublisher {
	if keyPrefix == "" {
		keyPrefix = "pos:connectivity"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotPublisher{
		rdb:     rdb,
		agentID: agentID,
		key:     keyPrefix + ":" + agentID,
		channel: keyPrefix + ":events",
		ttl:     ttl,
		logger:  logger,
		pending: make(chan connectivity.Snapshot, 1),
		now:     time.Now,
	}
}

// Key 最新快照所在的 key
func (p *SnapshotPublisher) Key() string { return p.key }

// Channel 变化通知频道
func (p *SnapshotPublisher) Channel() string { return p.channel }

// Offer 提交待发布快照，替换尚未发布的旧快照。
// 仅由 Monitor 的串行通知调用，单一生产者
func (p *SnapshotPublisher) Offer(snap connectivity.Snapshot) {
	for {
		select {
		case p.pending <- snap:
			return
		default:
		}
		select {
		case <-p.pending:
		default:
		}
	}
}

// Run 持续发布直到 ctx 结束
func (p *SnapshotPublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-p.pending:
			pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
			if err := p.Publish(pubCtx, snap); err != nil {
				p.logger.Warn("publish connectivity snapshot failed", zap.String("key", p.key), zap.Error(err))
			}
			cancel()
		}
	}
}

// Publish 同步发布一次快照
func (p *SnapshotPublisher) Publish(ctx context.Context, snap connectivity.Snapshot) error {
	data, err := json.Marshal(SnapshotMessage{
		AgentID:     p.agentID,
		PublishedAt: p.now().UTC(),
		Snapshot:    snap,
	})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, p.key, data, p.ttl)
		pipe.Publish(ctx, p.channel, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Latest 读取某个收银端最近发布的快照
func Latest(ctx context.Context, rdb redis.Cmdable, keyPrefix, agentID string) (*SnapshotMessage, error) {
	if keyPrefix == "" {
		keyPrefix = "pos:connectivity"
	}
	data, err := rdb.Get(ctx, keyPrefix+":"+agentID).Bytes()
	if err != nil {
		return nil, err
	}
	var msg SnapshotMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &msg, nil
}

package app

import (
	"go.uber.org/zap"

	cfgpkg "github.com/maizdemicorazon/pos-connectivity/internal/config"
	redisstorage "github.com/maizdemicorazon/pos-connectivity/internal/storage/redis"
)

// NewRedisClient 创建Redis客户端，未启用时返回 nil
func NewRedisClient(cfg cfgpkg.RedisConfig, logger *zap.Logger) (*redisstorage.Client, error) {
	if !cfg.Enabled {
		logger.Info("redis is disabled, skipping initialization")
		return nil, nil
	}

	client, err := redisstorage.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("redis client initialized",
		zap.String("addr", cfg.Addr),
		zap.Int("pool_size", cfg.PoolSize))

	return client, nil
}

// NewSnapshotPublisher 创建连接状态发布器
func NewSnapshotPublisher(client *redisstorage.Client, cfg cfgpkg.RedisConfig, agentID string, logger *zap.Logger) *redisstorage.SnapshotPublisher {
	return redisstorage.NewSnapshotPublisher(client, cfg.KeyPrefix, agentID, cfg.SnapshotTTL, logger)
}

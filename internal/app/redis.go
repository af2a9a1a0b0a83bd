package app

import (
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/amr-console/internal/config"
	"github.com/taoyao-code/amr-console/internal/health"
	"github.com/taoyao-code/amr-console/internal/robot"
	redisstorage "github.com/taoyao-code/amr-console/internal/storage/redis"
)

// NewRedisClient 创建Redis客户端；未启用时返回 nil
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

// NewTelemetry 有 Redis 时遥测快照写入 Redis 并广播，否则保存在进程内。
// 返回的 cache 在内存模式下为 nil。
func NewTelemetry(client *redisstorage.Client, cfg cfgpkg.RedisConfig) (robot.TelemetryStore, *redisstorage.TelemetryCache) {
	if client == nil {
		return robot.NewMemoryTelemetry(), nil
	}
	cache := redisstorage.NewTelemetryCache(client, cfg.TelemetryTTL)
	return robot.NewRedisTelemetry(cache), cache
}

// AddRedisChecker 添加Redis检查器到聚合器
func AddRedisChecker(aggregator *health.Aggregator, redisClient *redisstorage.Client) {
	if redisClient != nil {
		aggregator.AddChecker(health.NewRedisChecker(redisClient))
	}
}

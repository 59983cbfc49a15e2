package config

import (
	"github.com/redis/rueidis"

	"task-timer.com/task-timer/internal/tracking"
)

// NewDeviceTracker builds the tracker selected by DEVICE_CACHE_BACKEND. The
// returned client is nil for the memory backend.
func NewDeviceTracker(cfg Config) (tracking.DeviceTracker, rueidis.Client) {
	if cfg.DeviceCacheBackend == DeviceCacheRedis {
		client := NewRedisClient(cfg.RedisAddr)
		return tracking.NewRedisDeviceTracker(client, cfg.DeviceCacheKeyPrefix, cfg.DeviceCacheTTL()), client
	}
	return tracking.NewMemoryDeviceTracker(cfg.DeviceCacheSize, cfg.DeviceCacheTTL()), nil
}

package bootstrap

import (
	"fmt"

	"spark/pkg/config"
	"spark/pkg/logger"
	"spark/pkg/redis"
)

// SetupRedis connects the limiter and queue instances. Without REDIS_HOST the
// service runs on in-process fallbacks.
func SetupRedis() {
	if config.GetString("redis.host") == "" {
		logger.InfoString("Redis", "Setup", "REDIS_HOST not set, using in-memory limiter and direct receipts")
		return
	}

	redis.InitRedis(
		fmt.Sprintf("%v:%v", config.GetString("redis.host"), config.GetString("redis.port")),
		config.GetString("redis.username"),
		config.GetString("redis.password"),
		config.GetInt("redis.database"),
		config.GetInt("redis.queue_database"),
	)
}

package config

import (
	"spark/pkg/config"
)

func init() {
	config.Add("redis", func() map[string]interface{} {
		return map[string]interface{}{
			// empty host disables redis; limiter and receipts fall back to in-process
			"host":     config.Env("REDIS_HOST", ""),
			"port":     config.Env("REDIS_PORT", "6379"),
			"username": config.Env("REDIS_USERNAME", ""),
			"password": config.Env("REDIS_PASSWORD", ""),

			// limiter store
			"database": config.Env("REDIS_MAIN_DB", 1),

			// receipt queue
			"queue_database": config.Env("REDIS_QUEUE_DB", 2),
			"queue_prefix":   config.Env("REDIS_QUEUE_PREFIX", "spark:queue"),
			"queue_timeout":  config.Env("REDIS_QUEUE_TIMEOUT", 86400),
		}
	})
}

package config

import "spark/pkg/config"

func init() {
	config.Add("queue", func() map[string]interface{} {
		return map[string]interface{}{
			// receipts go through redis when enabled and redis is configured,
			// otherwise they are posted directly in a goroutine
			"enabled":      config.Env("RECEIPT_QUEUE_ENABLED", true),
			"rate_limit":   config.Env("QUEUE_RATE_LIMIT", 50),
			"rate_burst":   config.Env("QUEUE_RATE_BURST", 100),
			"worker_count": config.Env("QUEUE_WORKER_COUNT", 4),
			"retry_times":  config.Env("QUEUE_RETRY_TIMES", 3),
			"retry_delay":  config.Env("QUEUE_RETRY_DELAY", 2),
		}
	})
}

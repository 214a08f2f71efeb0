package config

import "spark/pkg/config"

func init() {
	config.Add("app", func() map[string]interface{} {
		return map[string]interface{}{

			// application name, also used as the limiter key prefix
			"name": config.Env("APP_NAME", "Spark"),

			// local, testing, staging, production
			"env": config.Env("APP_ENV", "production"),

			"debug": config.Env("APP_DEBUG", false),

			"port": config.Env("APP_PORT", "3000"),

			// M-Pesa timestamps are East Africa Time
			"timezone": config.Env("TIMEZONE", "Africa/Nairobi"),

			// per-IP throttles, format <n>-<S|M|H|D>
			"api_rate_limit":      config.Env("API_RATE_LIMIT", "30000-H"),
			"stk_push_rate_limit": config.Env("STK_PUSH_RATE_LIMIT", "30-M"),
			"status_rate_limit":   config.Env("STATUS_RATE_LIMIT", "300-M"),

			// comma separated
			"cors_allow_origins": config.Env("CORS_ALLOW_ORIGINS", "*"),
			"trusted_proxies":    config.Env("TRUSTED_PROXIES", ""),
		}
	})
}

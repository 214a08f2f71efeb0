package config

import "spark/pkg/config"

func init() {
	config.Add("receipt", func() map[string]interface{} {
		return map[string]interface{}{
			// shared secret between the callback handler and the receipt endpoint
			"internal_secret": config.Env("INTERNAL_API_SECRET", ""),

			// where receipts are posted; defaults to this service's own endpoint
			"url":     config.Env("RECEIPT_URL", "http://127.0.0.1:3000/internal/receipts"),
			"timeout": config.Env("RECEIPT_TIMEOUT", 15),
		}
	})
}

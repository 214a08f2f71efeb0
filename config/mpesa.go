package config

import "spark/pkg/config"

// DefaultAllowedCallbackIPs are the Safaricom ranges Daraja posts callbacks from
const DefaultAllowedCallbackIPs = "196.201.214.,196.201.212.,196.201.213.,41.215.112.,41.215.113.,41.215.114."

func init() {
	config.Add("mpesa", func() map[string]interface{} {
		return map[string]interface{}{
			"base_url":          config.Env("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"),
			"consumer_key":      config.Env("MPESA_CONSUMER_KEY", ""),
			"consumer_secret":   config.Env("MPESA_CONSUMER_SECRET", ""),
			"shortcode":         config.Env("MPESA_SHORTCODE", "174379"),
			"passkey":           config.Env("MPESA_PASSKEY", ""),
			"callback_url":      config.Env("MPESA_CALLBACK_URL", ""),
			"account_reference": config.Env("MPESA_ACCOUNT_REFERENCE", "AdventistSpark"),
			"timeout":           config.Env("MPESA_TIMEOUT", 30),

			// prefixes ("196.201.214.") or CIDRs ("196.201.214.0/24")
			"allowed_ips": config.Env("MPESA_ALLOWED_IPS", DefaultAllowedCallbackIPs),

			"rate_limit_window_minutes": config.Env("MPESA_RATE_LIMIT_WINDOW_MINUTES", 5),
			"rate_limit_max":            config.Env("MPESA_RATE_LIMIT_MAX", 3),
			// allow initiation when the attempt count query fails
			"rate_limit_fail_open": config.Env("MPESA_RATE_LIMIT_FAIL_OPEN", true),
		}
	})
}

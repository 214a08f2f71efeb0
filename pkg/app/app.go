// Package app holds application level helpers
package app

import (
	"time"
	_ "time/tzdata"

	"spark/pkg/config"
)

// IsLocal reports whether APP_ENV is local
func IsLocal() bool {
	return config.Get("app.env") == "local"
}

// IsProduction reports whether APP_ENV is production.
// Anything that relaxes a security check (loopback callbacks, verbose logs)
// must stay off when this is true.
func IsProduction() bool {
	return config.Get("app.env") == "production"
}

// IsTesting reports whether APP_ENV is testing
func IsTesting() bool {
	return config.Get("app.env") == "testing"
}

// TimenowInTimezone returns the current time in the configured app.timezone.
// M-Pesa expects request timestamps in East Africa Time, so this is what
// the STK password is built from.
func TimenowInTimezone() time.Time {
	return TimeIn(time.Now())
}

// TimeIn converts t into the configured app.timezone, leaving it unchanged
// when the zone cannot be loaded
func TimeIn(t time.Time) time.Time {
	loc, err := time.LoadLocation(config.GetString("app.timezone", "Africa/Nairobi"))
	if err != nil {
		return t
	}
	return t.In(loc)
}

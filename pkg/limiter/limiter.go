// Package limiter holds the request throttles: per-route IP limits backed by
// ulule/limiter and the per-phone attempt window backed by the payment ledger.
package limiter

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"spark/pkg/config"
	"spark/pkg/logger"
	"spark/pkg/redis"

	"github.com/gin-gonic/gin"
	limiterlib "github.com/ulule/limiter/v3"
	smemory "github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Rate is a limit expressed as requests per second
type Rate struct {
	Rate float64
}

var (
	memoryStoreOnce sync.Once
	memoryStore     limiterlib.Store
)

// ParseLimit parses "5-S", "10-M", "1000-H" or "2000-D"
func ParseLimit(limit string) (*Rate, error) {
	if _, err := limiterlib.NewRateFromFormatted(limit); err != nil {
		return nil, fmt.Errorf("invalid limit format: %w", err)
	}

	parts := strings.Split(limit, "-")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid limit format: %s", limit)
	}

	value, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid rate value: %s", parts[0])
	}

	var ratePerSecond float64
	switch strings.ToUpper(parts[1]) {
	case "S":
		ratePerSecond = value
	case "M":
		ratePerSecond = value / 60.0
	case "H":
		ratePerSecond = value / 3600.0
	case "D":
		ratePerSecond = value / 86400.0
	default:
		return nil, fmt.Errorf("invalid time unit: %s", parts[1])
	}

	return &Rate{Rate: ratePerSecond}, nil
}

// GetKeyIP keys a limit on the client IP
func GetKeyIP(c *gin.Context) string {
	return c.ClientIP()
}

// GetKeyRouteWithIP keys a limit on route plus client IP
func GetKeyRouteWithIP(c *gin.Context) string {
	return routeToKeyString(c.FullPath()) + c.ClientIP()
}

// CheckRate counts one hit for key against formatted. Redis backs the counter
// when it is configured, otherwise a process-wide memory store does.
func CheckRate(c *gin.Context, key string, formatted string) (limiterlib.Context, error) {
	var lctx limiterlib.Context
	rate, err := limiterlib.NewRateFromFormatted(formatted)
	if err != nil {
		logger.LogIf(err)
		return lctx, err
	}

	store, err := getStore()
	if err != nil {
		logger.LogIf(err)
		return lctx, err
	}

	limiterObj := limiterlib.New(store, rate)

	// several route groups may call this for one request; only the first counts
	if c.GetBool("limiter-once") {
		return limiterObj.Peek(c, key)
	}
	c.Set("limiter-once", true)
	return limiterObj.Get(c, key)
}

func getStore() (limiterlib.Store, error) {
	prefix := config.GetString("app.name") + ":limiter"
	if redis.Enabled() {
		return sredis.NewStoreWithOptions(redis.Redis.Client, limiterlib.StoreOptions{
			Prefix: prefix,
		})
	}

	memoryStoreOnce.Do(func() {
		memoryStore = smemory.NewStoreWithOptions(limiterlib.StoreOptions{
			Prefix:          prefix,
			CleanUpInterval: 10 * time.Minute,
		})
	})
	return memoryStore, nil
}

// routeToKeyString turns "/v1/payments/:id/status" into "-v1-payments-_id-status"
func routeToKeyString(routeName string) string {
	routeName = strings.ReplaceAll(routeName, "/", "-")
	routeName = strings.ReplaceAll(routeName, ":", "_")
	return routeName
}

package middlewares

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"golang.org/x/time/rate"

	"spark/pkg/app"
	"spark/pkg/limiter"
	"spark/pkg/logger"
	"spark/pkg/response"
)

const (
	// DefaultBurst is the token bucket burst for LimitIP
	DefaultBurst = 100
	// limiterIdleTTL drops per-IP buckets that have not been used for a day
	limiterIdleTTL = 24 * time.Hour
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen seenAt
}

type seenAt struct {
	mu sync.Mutex
	t  time.Time
}

func (a *seenAt) Store(t time.Time) {
	a.mu.Lock()
	a.t = t
	a.mu.Unlock()
}

func (a *seenAt) Load() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.t
}

var (
	limiters    sync.Map // key -> *ipLimiter
	cleanupOnce sync.Once
)

// LimitIP is a per-IP token bucket held in memory
//
// Formats:
// - 5 reqs/second:   "5-S"
// - 10 reqs/minute:  "10-M"
// - 1000 reqs/hour:  "1000-H"
// - 2000 reqs/day:   "2000-D"
func LimitIP(limit string) gin.HandlerFunc {
	if app.IsTesting() {
		limit = "1000000-H"
	}

	r, err := limiter.ParseLimit(limit)
	if err != nil {
		logger.ErrorString("Limiter", "Parse", err.Error())
	}

	cleanupOnce.Do(func() { go cleanupLimiters() })

	return func(c *gin.Context) {
		// an invalid limit lets traffic through rather than taking the API down
		if r == nil {
			c.Next()
			return
		}

		lim := getLimiter(limit+":"+limiter.GetKeyIP(c), r)
		if !lim.Allow() {
			response.TooManyRequests(c, time.Second, "Too many requests")
			return
		}

		c.Header("X-RateLimit-Limit", cast.ToString(float64(lim.Limit())))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(int(lim.Tokens())))
		c.Next()
	}
}

// LimitPerRoute throttles one route per IP with ulule/limiter, shared across
// instances through Redis when it is configured
func LimitPerRoute(limit string) gin.HandlerFunc {
	if app.IsTesting() {
		limit = "1000000-H"
	}

	return func(c *gin.Context) {
		key := limiter.GetKeyRouteWithIP(c)
		lctx, err := limiter.CheckRate(c, key, limit)
		if err != nil {
			logger.LogIf(err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", cast.ToString(lctx.Limit))
		c.Header("X-RateLimit-Remaining", cast.ToString(lctx.Remaining))
		c.Header("X-RateLimit-Reset", cast.ToString(lctx.Reset))

		if lctx.Reached {
			retry := time.Until(time.Unix(lctx.Reset, 0))
			response.TooManyRequests(c, retry, "Too many requests")
			return
		}

		c.Next()
	}
}

func getLimiter(key string, r *limiter.Rate) *rate.Limiter {
	now := time.Now()
	if v, ok := limiters.Load(key); ok {
		entry := v.(*ipLimiter)
		entry.lastSeen.Store(now)
		return entry.limiter
	}

	entry := &ipLimiter{limiter: rate.NewLimiter(rate.Limit(r.Rate), DefaultBurst)}
	entry.lastSeen.Store(now)
	actual, _ := limiters.LoadOrStore(key, entry)
	return actual.(*ipLimiter).limiter
}

func cleanupLimiters() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		limiters.Range(func(key, value interface{}) bool {
			if now.Sub(value.(*ipLimiter).lastSeen.Load()) > limiterIdleTTL {
				limiters.Delete(key)
			}
			return true
		})
	}
}

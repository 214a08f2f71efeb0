/*
Package redis manages the shared Redis connections.

Two logical databases are used: the main one backs the route rate limiter,
the queue one holds pending receipt jobs.
*/
package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	// DefaultPoolSize is the connection pool size per instance
	DefaultPoolSize = 100
	// DefaultTimeout bounds pings and pool waits
	DefaultTimeout = 5 * time.Second
	// DefaultMinIdleConns keeps a few warm connections
	DefaultMinIdleConns = 10
	// DefaultMaxRetries is the go-redis command retry count
	DefaultMaxRetries = 3
	// DefaultIdleTimeout closes idle connections
	DefaultIdleTimeout = 5 * time.Minute
)

// RedisInstance names one logical database
type RedisInstance string

const (
	MainDB  RedisInstance = "main"  // rate limiting
	QueueDB RedisInstance = "queue" // receipt jobs
)

// RedisClient wraps a go-redis client with a base context
type RedisClient struct {
	Client  *redis.Client
	Context context.Context
}

// RedisConfig holds connection settings for one instance
type RedisConfig struct {
	Address      string
	Username     string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	Timeout      time.Duration
}

// RedisManager holds every configured instance
type RedisManager struct {
	instances map[RedisInstance]*RedisClient
	mutex     sync.RWMutex
}

var (
	once    sync.Once
	Manager *RedisManager
	// Redis is the main instance, nil when Redis is not configured
	Redis *RedisClient
)

// NewClient connects and pings, returning an error when the server is unreachable
func NewClient(config RedisConfig) (*RedisClient, error) {
	rds := &RedisClient{
		Context: context.Background(),
	}

	rds.Client = redis.NewClient(&redis.Options{
		Addr:         config.Address,
		Username:     config.Username,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,

		PoolTimeout:     config.Timeout,
		ConnMaxIdleTime: DefaultIdleTimeout,
		ConnMaxLifetime: 24 * time.Hour,

		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,

		MaxRetries:      DefaultMaxRetries,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
	})

	if err := rds.Ping(); err != nil {
		_ = rds.Client.Close()
		return nil, fmt.Errorf("redis connect %s: %w", config.Address, err)
	}

	return rds, nil
}

// Wrap adopts an existing go-redis client
func Wrap(client *redis.Client) *RedisClient {
	return &RedisClient{Client: client, Context: context.Background()}
}

// Ping checks the connection
func (rds *RedisClient) Ping() error {
	ctx, cancel := context.WithTimeout(rds.Context, DefaultTimeout)
	defer cancel()

	_, err := rds.Client.Ping(ctx).Result()
	return err
}

// InitRedis connects the main and queue instances. It panics when either is
// unreachable, the same as a failed database connection.
func InitRedis(address, username, password string, mainDB, queueDB int) {
	once.Do(func() {
		Manager = &RedisManager{
			instances: make(map[RedisInstance]*RedisClient),
		}

		for instance, db := range map[RedisInstance]int{MainDB: mainDB, QueueDB: queueDB} {
			client, err := NewClient(RedisConfig{
				Address:      address,
				Username:     username,
				Password:     password,
				DB:           db,
				PoolSize:     DefaultPoolSize,
				MinIdleConns: DefaultMinIdleConns,
				Timeout:      DefaultTimeout,
			})
			if err != nil {
				panic(err)
			}
			Manager.instances[instance] = client
		}

		Redis = Manager.instances[MainDB]
	})
}

// Enabled reports whether InitRedis has run
func Enabled() bool {
	return Manager != nil && Redis != nil
}

// GetRedis returns the named instance, falling back to the main one
func GetRedis(instance RedisInstance) *RedisClient {
	if Manager == nil {
		return nil
	}
	Manager.mutex.RLock()
	defer Manager.mutex.RUnlock()

	if client, ok := Manager.instances[instance]; ok {
		return client
	}
	return Redis
}

// Close closes every instance
func Close() {
	if Manager == nil {
		return
	}
	Manager.mutex.Lock()
	defer Manager.mutex.Unlock()

	for _, client := range Manager.instances {
		_ = client.Client.Close()
	}
}

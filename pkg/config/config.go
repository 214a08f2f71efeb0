// Package config loads settings from the environment and .env files
package config

import (
	"os"
	"strings"
	"sync"

	"github.com/spf13/cast"
	viperlib "github.com/spf13/viper"
)

// viper instance
var viper *viperlib.Viper

// ConfigFunc lazily builds one config group
type ConfigFunc func() map[string]interface{}

// ConfigFuncs holds every group registered through Add
var ConfigFuncs map[string]ConfigFunc

var mu sync.RWMutex

func init() {
	viper = viperlib.New()
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("")
	viper.AutomaticEnv()

	ConfigFuncs = make(map[string]ConfigFunc)
}

// InitConfig loads .env (or .env.<env> when env is given) and resolves the registered groups
func InitConfig(env string) {
	loadEnv(env)
	loadConfig()
}

func loadConfig() {
	mu.RLock()
	defer mu.RUnlock()
	for name, fn := range ConfigFuncs {
		viper.Set(name, fn())
	}
}

func loadEnv(envSuffix string) {
	envPath := ".env"
	if len(envSuffix) > 0 {
		filepath := ".env." + envSuffix
		if _, err := os.Stat(filepath); err == nil {
			envPath = filepath
		}
	}

	viper.SetConfigName(envPath)
	// a missing .env is fine, the process environment still applies
	if err := viper.ReadInConfig(); err == nil {
		viper.WatchConfig()
	}
}

func splitList(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Env reads an environment value, falling back to defaultValue
func Env(envName string, defaultValue ...interface{}) interface{} {
	if len(defaultValue) > 0 {
		return internalGet(envName, defaultValue[0])
	}
	return internalGet(envName)
}

// Add registers a config group
func Add(name string, configFn ConfigFunc) {
	mu.Lock()
	defer mu.Unlock()
	ConfigFuncs[name] = configFn
}

// Set overrides a single key, mostly used by tests
func Set(path string, value interface{}) {
	viper.Set(path, value)
}

// Get returns a value as string
func Get(path string, defaultValue ...interface{}) string {
	return GetString(path, defaultValue...)
}

func internalGet(path string, defaultValue ...interface{}) interface{} {
	if !viper.IsSet(path) || viper.Get(path) == nil || viper.Get(path) == "" {
		if len(defaultValue) > 0 {
			return defaultValue[0]
		}
		return nil
	}
	return viper.Get(path)
}

// GetString returns a value as string
func GetString(path string, defaultValue ...interface{}) string {
	return cast.ToString(internalGet(path, defaultValue...))
}

// GetInt returns a value as int
func GetInt(path string, defaultValue ...interface{}) int {
	return cast.ToInt(internalGet(path, defaultValue...))
}

// GetInt64 returns a value as int64
func GetInt64(path string, defaultValue ...interface{}) int64 {
	return cast.ToInt64(internalGet(path, defaultValue...))
}

// GetFloat64 returns a value as float64
func GetFloat64(path string, defaultValue ...interface{}) float64 {
	return cast.ToFloat64(internalGet(path, defaultValue...))
}

// GetUint returns a value as uint
func GetUint(path string, defaultValue ...interface{}) uint {
	return cast.ToUint(internalGet(path, defaultValue...))
}

// GetBool returns a value as bool
func GetBool(path string, defaultValue ...interface{}) bool {
	return cast.ToBool(internalGet(path, defaultValue...))
}

// GetStringSlice returns a comma separated value as a trimmed slice
func GetStringSlice(path string, defaultValue ...interface{}) []string {
	return splitList(GetString(path, defaultValue...))
}

// GetStringMapString returns a nested group as map[string]string
func GetStringMapString(path string) map[string]string {
	return viper.GetStringMapString(path)
}

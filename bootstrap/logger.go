package bootstrap

import (
	"spark/pkg/config"
	"spark/pkg/logger"
)

// SetupLogger initializes the zap logger from the log config group
//
// - filename: log file path
// - max_size: max size of one file in MB
// - max_backup: how many rotated files to keep
// - max_age: how many days to keep them
// - compress: gzip rotated files
// - type: daily or single
// - level: debug, info, warn, error
func SetupLogger() {
	logger.InitLogger(
		config.GetString("log.filename"),
		config.GetInt("log.max_size"),
		config.GetInt("log.max_backup"),
		config.GetInt("log.max_age"),
		config.GetBool("log.compress"),
		config.GetString("log.type"),
		config.GetString("log.level"),
	)
}

// Package database holds the shared gorm connection
package database

import (
	"database/sql"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"spark/pkg/logger"
)

// DB is the shared gorm handle
var DB *gorm.DB

// SQLDB is the underlying pool of DB
var SQLDB *sql.DB

// Connect opens the database and panics when it cannot
func Connect(dbConfig gorm.Dialector, _logger gormlogger.Interface) {
	var err error
	DB, err = gorm.Open(dbConfig, &gorm.Config{
		Logger: _logger,
	})
	if err != nil {
		logger.ErrorString("Database", "Connect", err.Error())
		panic(err)
	}

	SQLDB, err = DB.DB()
	if err != nil {
		logger.ErrorString("Database", "SQLDB", err.Error())
		panic(err)
	}
}

// AutoMigrate migrates every registered table
func AutoMigrate(tables []interface{}) error {
	return DB.AutoMigrate(tables...)
}

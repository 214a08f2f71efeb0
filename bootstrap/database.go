package bootstrap

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"spark/pkg/config"
	"spark/pkg/database"
	"spark/pkg/database/migrations"
	"spark/pkg/logger"
)

// SetupDB connects the payment ledger and migrates it
func SetupDB() {
	var dbConfig gorm.Dialector
	switch config.Get("database.connection") {
	case "postgresql":
		dbConfig = setupPostgreSQL()
	case "sqlite":
		dbConfig = setupSQLite()
	default:
		panic(errors.New("unsupported database connection " + config.Get("database.connection")))
	}

	database.Connect(dbConfig, logger.NewGormLogger())

	setupDBPool()

	if err := database.AutoMigrate(migrations.RegisterTables()); err != nil {
		logger.ErrorString("Database", "AutoMigrate", "migration failed: "+err.Error())
		panic(err)
	}
	logger.InfoString("Database", "AutoMigrate", "tables migrated")
}

func setupPostgreSQL() gorm.Dialector {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		config.Get("database.postgresql.host"),
		config.Get("database.postgresql.port"),
		config.Get("database.postgresql.username"),
		config.Get("database.postgresql.password"),
		config.Get("database.postgresql.database"),
		config.Get("database.postgresql.sslmode", "disable"),
		config.Get("app.timezone", "Africa/Nairobi"),
	)
	return postgres.New(postgres.Config{
		DSN: dsn,
	})
}

func setupSQLite() gorm.Dialector {
	return sqlite.Open(config.Get("database.sqlite.database"))
}

func setupDBPool() {
	if config.Get("database.connection") == "sqlite" {
		// one writer keeps the conditional settle update serialized
		database.SQLDB.SetMaxOpenConns(1)
		return
	}
	database.SQLDB.SetMaxOpenConns(config.GetInt("database.postgresql.max_open_connections"))
	database.SQLDB.SetMaxIdleConns(config.GetInt("database.postgresql.max_idle_connections"))
	database.SQLDB.SetConnMaxLifetime(time.Duration(config.GetInt("database.postgresql.max_life_seconds")) * time.Second)
}

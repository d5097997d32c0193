package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/peak-go-api/internal/models"
)

const sqlitePrefix = "sqlite:"

// ConnectRunLog opens the SQL store behind the evaluation run log. DSNs starting with "sqlite:"
// open a SQLite file (or ":memory:"); anything else is handed to the PostgreSQL driver.
func ConnectRunLog(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("run log dsn must not be empty")
	}

	dialector := postgres.Open(dsn)
	if strings.HasPrefix(dsn, sqlitePrefix) {
		dialector = sqlite.Open(strings.TrimPrefix(dsn, sqlitePrefix))
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to run log database: %w", err)
	}

	if err := db.AutoMigrate(&models.EvaluationRun{}); err != nil {
		return nil, fmt.Errorf("failed to migrate run log: %w", err)
	}

	return db, nil
}

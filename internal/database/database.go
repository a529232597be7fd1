package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/ecomserver/internal/models"
)

// Connect opens the postgres connection, creating the database when it is
// missing, and runs migrations.
func Connect(dsn, logLevel string) *gorm.DB {
	if err := ensureDatabase(dsn); err != nil {
		log.Fatalf("failed to ensure database: %v", err)
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(parseLogLevel(logLevel)),
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := migrate(conn); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}

	return conn
}

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func migrate(conn *gorm.DB) error {
	migrations := []interface{}{
		&models.User{},
		&models.Order{},
		&models.ImageUpload{},
	}

	for _, migration := range migrations {
		if err := conn.AutoMigrate(migration); err != nil {
			return err
		}
	}

	return nil
}

// ensureDatabase creates the target database through the maintenance
// "postgres" database when it does not exist yet. Keyword DSNs are skipped.
func ensureDatabase(dsn string) error {
	target, maintenance, ok := splitDSN(dsn)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sqlDB, err := sql.Open("postgres", maintenance)
	if err != nil {
		return fmt.Errorf("open maintenance db: %w", err)
	}
	defer sqlDB.Close()

	var exists bool
	err = sqlDB.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", target).Scan(&exists)
	if err != nil {
		return fmt.Errorf("lookup database %s: %w", target, err)
	}
	if exists {
		return nil
	}

	log.Printf("[Database] creating database %s", target)
	if _, err := sqlDB.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(target)); err != nil {
		return fmt.Errorf("create database %s: %w", target, err)
	}
	return nil
}

// splitDSN returns the database named by a postgres URL and the same URL
// pointed at the maintenance database.
func splitDSN(dsn string) (target, maintenance string, ok bool) {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return "", "", false
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", "", false
	}
	target = strings.TrimPrefix(parsed.Path, "/")
	if target == "" {
		return "", "", false
	}
	parsed.Path = "/postgres"
	return target, parsed.String(), true
}

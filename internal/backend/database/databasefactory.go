package database

import (
	"fmt"
	"log/slog"
)

func NewDatabase(databaseType, connectionString string) (database DatabaseService, err error) {
	switch databaseType {
	case "sqlite":
		database, err = NewSQLiteDatabase(connectionString)
	case "postgres":
		database, err = NewPostgresDatabase(connectionString)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", databaseType)
	}
	if err != nil {
		return nil, err
	}

	// Ensure database schema exists (idempotent), important for in-memory SQLite
	slog.Info("initializing database schema (ensuring tables exist)", "driver", databaseType)
	if _, err = database.CreateDatabase(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	return database, nil
}

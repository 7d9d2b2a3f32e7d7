package database

import (
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"
)

type SQLiteDatabase struct {
	*sqlStore
	connectionString string
}

func NewSQLiteDatabase(connectionString string) (DatabaseService, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteDatabase{
		sqlStore:         &sqlStore{db: db, dialect: sqliteDialect{}},
		connectionString: connectionString,
	}, nil
}

type sqliteDialect struct{}

func (sqliteDialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			hashed_password TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS images (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			filename TEXT NOT NULL UNIQUE,
			original_filename TEXT NOT NULL,
			file_path TEXT NOT NULL,
			file_size INTEGER NOT NULL,
			mime_type TEXT NOT NULL,
			uploaded_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_images_user ON images (user_id, uploaded_at)`,
	}
}

func (sqliteDialect) placeholder(int) string { return questionMark(0) }

func (sqliteDialect) isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

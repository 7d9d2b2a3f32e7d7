package database

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// uniqueViolation is the SQLSTATE postgres reports for a duplicate key
const uniqueViolation = "23505"

type PostgresDatabase struct {
	*sqlStore
}

func NewPostgresDatabase(connectionString string) (DatabaseService, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresDatabase{
		sqlStore: &sqlStore{db: db, dialect: postgresDialect{}},
	}, nil
}

type postgresDialect struct{}

func (postgresDialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			username VARCHAR(50) UNIQUE NOT NULL,
			email VARCHAR(100) UNIQUE NOT NULL,
			hashed_password VARCHAR(200) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS images (
			id SERIAL PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			filename VARCHAR(255) NOT NULL UNIQUE,
			original_filename VARCHAR(255) NOT NULL,
			file_path VARCHAR(500) NOT NULL,
			file_size BIGINT NOT NULL,
			mime_type VARCHAR(100) NOT NULL,
			uploaded_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_images_user ON images (user_id, uploaded_at)`,
	}
}

func (postgresDialect) placeholder(n int) string { return dollar(n) }

func (postgresDialect) isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

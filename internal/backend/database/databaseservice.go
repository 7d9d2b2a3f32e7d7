package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var (
	// ErrConflict is returned when a unique username or email is already taken
	ErrConflict = errors.New("username or email already exists")
	// ErrNotFound is returned when a row does not exist or is owned by another user
	ErrNotFound = errors.New("not found")
)

type DatabaseService interface {
	CreateDatabase() (*sql.DB, error)
	DoesDatabaseExist() bool
	Close() error

	CreateUser(ctx context.Context, username, email, hashedPassword string) (int64, error)
	// GetUserByUsername and GetUserByEmail return nil without error when no user matches.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	CreateImage(ctx context.Context, image *Image) (int64, error)
	// GetImagesByUser returns the user's images newest first.
	GetImagesByUser(ctx context.Context, userID int64) ([]*Image, error)
	// GetImage returns ErrNotFound unless the user owns the image with that id.
	GetImage(ctx context.Context, imageID, userID int64) (*Image, error)
	// GetImageByFilename returns ErrNotFound unless the user owns an image with that storage name.
	GetImageByFilename(ctx context.Context, userID int64, filename string) (*Image, error)
	// UpdateImageFile records a rewritten file on an existing row. It returns
	// ErrNotFound when the id is unknown.
	UpdateImageFile(ctx context.Context, imageID, fileSize int64, uploadedAt time.Time) error
	// DeleteImage removes an owned image row and returns its file path.
	DeleteImage(ctx context.Context, imageID, userID int64) (string, error)
	// DeleteImages removes the owned subset of ids and returns their file paths.
	// Ids that do not exist or belong to someone else are skipped silently.
	DeleteImages(ctx context.Context, imageIDs []int64, userID int64) ([]string, error)
	GetAllFilenames(ctx context.Context) ([]string, error)
}

package database

import "time"

type User struct {
	ID             int64     `db:"id"`
	Username       string    `db:"username"`
	Email          string    `db:"email"`
	HashedPassword string    `db:"hashed_password"`
	CreatedAt      time.Time `db:"created_at"`
}

type Image struct {
	ID               int64     `db:"id"`
	UserID           int64     `db:"user_id"`
	Filename         string    `db:"filename"`          // generated storage name, unique
	OriginalFilename string    `db:"original_filename"` // client supplied, display only
	FilePath         string    `db:"file_path"`
	FileSize         int64     `db:"file_size"`
	MimeType         string    `db:"mime_type"`
	UploadedAt       time.Time `db:"uploaded_at"`
}

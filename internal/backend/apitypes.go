package backend

import (
	"time"

	"github.com/jo-hoe/neuragallery/internal/backend/database"
)

type ProbeResponse struct {
	Message   string `json:"message"`
	Version   string `json:"version"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// bcrypt ignores everything past 72 bytes, longer passwords are rejected
type RegisterRequest struct {
	Username string `json:"username" form:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" form:"email" validate:"required,email,max=100"`
	Password string `json:"password" form:"password" validate:"required,min=6,max=72"`
}

type RegisterResponse struct {
	Message string `json:"message"`
	UserID  int64  `json:"user_id"`
}

type LoginRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type ImageResponse struct {
	ID               int64     `json:"id"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"original_filename"`
	FileSize         int64     `json:"file_size"`
	MimeType         string    `json:"mime_type"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

func newImageResponse(image *database.Image) ImageResponse {
	return ImageResponse{
		ID:               image.ID,
		Filename:         image.Filename,
		OriginalFilename: image.OriginalFilename,
		FileSize:         image.FileSize,
		MimeType:         image.MimeType,
		UploadedAt:       image.UploadedAt,
	}
}

type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type DeleteImagesRequest struct {
	ImageIDs []int64 `json:"image_ids"`
}

type DeleteImagesResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	DeletedCount int    `json:"deleted_count"`
}

type ProcessResponse struct {
	Success           bool           `json:"success"`
	ProcessedFilename string         `json:"processed_filename"`
	Message           string         `json:"message"`
	Operation         string         `json:"operation"`
	Parameters        map[string]any `json:"parameters"`
	ImageID           *int64         `json:"image_id,omitempty"`
}

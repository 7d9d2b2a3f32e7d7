package database

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"
)

// dialect captures what differs between the supported SQL drivers.
type dialect interface {
	schema() []string
	// placeholder renders the n-th (1-based) bind parameter.
	placeholder(n int) string
	isUniqueViolation(err error) bool
}

// sqlStore implements the queries shared by all drivers. Queries are written
// with '?' placeholders and rebound for the active dialect.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
}

func (s *sqlStore) rebind(query string) string {
	if s.dialect.placeholder(1) == "?" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(s.dialect.placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) CreateDatabase() (*sql.DB, error) {
	for _, stmt := range s.dialect.schema() {
		if _, err := s.db.Exec(stmt); err != nil {
			return nil, err
		}
	}
	return s.db, nil
}

func (s *sqlStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *sqlStore) DoesDatabaseExist() bool {
	return s.db.Ping() == nil
}

func (s *sqlStore) CreateUser(ctx context.Context, username, email, hashedPassword string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		s.rebind("INSERT INTO users (username, email, hashed_password, created_at) VALUES (?, ?, ?, ?) RETURNING id"),
		username, email, hashedPassword, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		if s.dialect.isUniqueViolation(err) {
			return 0, ErrConflict
		}
		return 0, err
	}
	return id, nil
}

func (s *sqlStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.getUser(ctx, "username", username)
}

func (s *sqlStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, "email", email)
}

func (s *sqlStore) getUser(ctx context.Context, column, value string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind("SELECT id, username, email, hashed_password, created_at FROM users WHERE "+column+" = ?"),
		value)
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.HashedPassword, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (s *sqlStore) CreateImage(ctx context.Context, image *Image) (int64, error) {
	if image.UploadedAt.IsZero() {
		image.UploadedAt = time.Now().UTC()
	}
	var id int64
	err := s.db.QueryRowContext(ctx,
		s.rebind(`INSERT INTO images (user_id, filename, original_filename, file_path, file_size, mime_type, uploaded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		image.UserID, image.Filename, image.OriginalFilename, image.FilePath, image.FileSize, image.MimeType, image.UploadedAt,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	image.ID = id
	return id, nil
}

const imageColumns = "id, user_id, filename, original_filename, file_path, file_size, mime_type, uploaded_at"

func scanImage(scanner interface{ Scan(dest ...any) error }) (*Image, error) {
	var img Image
	err := scanner.Scan(&img.ID, &img.UserID, &img.Filename, &img.OriginalFilename,
		&img.FilePath, &img.FileSize, &img.MimeType, &img.UploadedAt)
	if err != nil {
		return nil, err
	}
	return &img, nil
}

func (s *sqlStore) GetImagesByUser(ctx context.Context, userID int64) ([]*Image, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind("SELECT "+imageColumns+" FROM images WHERE user_id = ? ORDER BY uploaded_at DESC, id DESC"),
		userID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	images := []*Image{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func (s *sqlStore) GetImage(ctx context.Context, imageID, userID int64) (*Image, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind("SELECT "+imageColumns+" FROM images WHERE id = ? AND user_id = ?"),
		imageID, userID)
	img, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return img, err
}

func (s *sqlStore) GetImageByFilename(ctx context.Context, userID int64, filename string) (*Image, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind("SELECT "+imageColumns+" FROM images WHERE user_id = ? AND filename = ?"),
		userID, filename)
	img, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return img, err
}

func (s *sqlStore) UpdateImageFile(ctx context.Context, imageID, fileSize int64, uploadedAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE images SET file_size = ?, uploaded_at = ? WHERE id = ?"),
		fileSize, uploadedAt, imageID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) DeleteImage(ctx context.Context, imageID, userID int64) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var path string
	err = tx.QueryRowContext(ctx,
		s.rebind("SELECT file_path FROM images WHERE id = ? AND user_id = ?"),
		imageID, userID).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}

	if _, err := tx.ExecContext(ctx,
		s.rebind("DELETE FROM images WHERE id = ? AND user_id = ?"),
		imageID, userID); err != nil {
		return "", err
	}
	return path, tx.Commit()
}

func (s *sqlStore) DeleteImages(ctx context.Context, imageIDs []int64, userID int64) ([]string, error) {
	if len(imageIDs) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(imageIDs)+1)
	for _, id := range imageIDs {
		args = append(args, id)
	}
	args = append(args, userID)
	where := "id IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(imageIDs)), ", ") + ") AND user_id = ?"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, s.rebind("SELECT file_path FROM images WHERE "+where+" ORDER BY id"), args...)
	if err != nil {
		return nil, err
	}
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			_ = rows.Close()
			return nil, err
		}
		paths = append(paths, p)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM images WHERE "+where), args...); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return paths, nil
}

func (s *sqlStore) GetAllFilenames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT filename FROM images")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func questionMark(int) string { return "?" }

func dollar(n int) string { return "$" + strconv.Itoa(n) }

package core

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/jo-hoe/neuragallery/internal/backend/auth"
	"github.com/jo-hoe/neuragallery/internal/backend/blobstore"
	"github.com/jo-hoe/neuragallery/internal/backend/commands"
	"github.com/jo-hoe/neuragallery/internal/backend/commandstructure"
	"github.com/jo-hoe/neuragallery/internal/backend/database"
	"github.com/redis/go-redis/v9"
)

var (
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrUsernameExists     = errors.New("username already exists")
	ErrEmailExists        = errors.New("email already exists")
	ErrNotAnImage         = errors.New("file must be an image")
	// ErrImageNotFound covers both missing images and images owned by someone else
	ErrImageNotFound      = errors.New("image not found or access denied")
	ErrImageFileMissing   = errors.New("image file is missing from storage")
	ErrNoImageIDs         = errors.New("no image ids provided")
	ErrRevocationDisabled = errors.New("token revocation is not enabled")
)

type CoreService struct {
	config          *ServiceConfig
	databaseService database.DatabaseService
	store           *blobstore.Store
	codec           blobstore.Codec
	tokens          *auth.TokenService
	denylist        auth.Denylist
	redisClient     *redis.Client
	registry        *commandstructure.CommandRegistry
	now             func() time.Time
}

// NewCoreService opens the database, the upload directory and, when configured, redis
func NewCoreService(ctx context.Context, config *ServiceConfig) (*CoreService, error) {
	databaseService, err := getDatabaseService(config)
	if err != nil {
		return nil, err
	}
	store, err := blobstore.NewDiskStore(config.UploadDir)
	if err != nil {
		_ = databaseService.Close()
		return nil, err
	}

	var redisClient *redis.Client
	var denylist auth.Denylist
	if config.Redis.Address != "" {
		redisClient, err = auth.NewRedisClient(ctx, config.Redis.Address, config.Redis.Password, config.Redis.DB)
		if err != nil {
			_ = databaseService.Close()
			return nil, err
		}
		denylist = auth.NewRedisDenylist(redisClient)
		slog.Info("token revocation enabled", "redis", config.Redis.Address)
	}

	service, err := NewCoreServiceWith(config, databaseService, store, denylist)
	if err != nil {
		_ = databaseService.Close()
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, err
	}
	service.redisClient = redisClient
	return service, nil
}

// NewCoreServiceWith assembles a service from already opened dependencies.
// denylist may be nil.
func NewCoreServiceWith(config *ServiceConfig, databaseService database.DatabaseService, store *blobstore.Store, denylist auth.Denylist) (*CoreService, error) {
	tokens, err := auth.NewTokenService(config.Auth.Secret, config.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}
	return &CoreService{
		config:          config,
		databaseService: databaseService,
		store:           store,
		codec:           blobstore.NewCodec(config.SVGFallbackWidth, config.SVGFallbackHeight),
		tokens:          tokens,
		denylist:        denylist,
		registry:        commandstructure.DefaultRegistry,
		now:             time.Now,
	}, nil
}

func getDatabaseService(DatabaseConfig *ServiceConfig) (database.DatabaseService, error) {
	databaseService, err := database.NewDatabase(DatabaseConfig.Database.Type, DatabaseConfig.Database.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("database initialized successfully", "type", DatabaseConfig.Database.Type)
	return databaseService, nil
}

func (service *CoreService) Config() *ServiceConfig {
	return service.config
}

func (service *CoreService) Tokens() *auth.TokenService {
	return service.tokens
}

// AuthMiddleware guards routes with the service's tokens, users and denylist
func (service *CoreService) AuthMiddleware() *auth.Middleware {
	return auth.NewMiddleware(service.tokens, service.databaseService, service.denylist)
}

// RevocationEnabled reports whether logout can revoke tokens
func (service *CoreService) RevocationEnabled() bool {
	return service.denylist != nil
}

// Store exposes the blob storage for static file serving
func (service *CoreService) Store() *blobstore.Store {
	return service.store
}

func (service *CoreService) Register(ctx context.Context, username, email, password string) (int64, error) {
	existing, err := service.databaseService.GetUserByUsername(ctx, username)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return 0, ErrUsernameExists
	}
	existing, err = service.databaseService.GetUserByEmail(ctx, email)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return 0, ErrEmailExists
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return 0, err
	}
	id, err := service.databaseService.CreateUser(ctx, username, email, hash)
	if errors.Is(err, database.ErrConflict) {
		// lost a race against a concurrent registration
		if u, lookupErr := service.databaseService.GetUserByEmail(ctx, email); lookupErr == nil && u != nil {
			return 0, ErrEmailExists
		}
		return 0, ErrUsernameExists
	}
	if err != nil {
		return 0, err
	}
	slog.Info("user registered", "user_id", id, "username", username)
	return id, nil
}

// Login checks the credentials and issues an access token
func (service *CoreService) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	user, err := service.databaseService.GetUserByUsername(ctx, username)
	if err != nil {
		return "", time.Time{}, err
	}
	if user == nil || !auth.VerifyPassword(password, user.HashedPassword) {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return service.tokens.Issue(user.Username)
}

// Logout revokes the token described by claims until it expires
func (service *CoreService) Logout(ctx context.Context, claims *auth.Claims) error {
	if service.denylist == nil {
		return ErrRevocationDisabled
	}
	if claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return errors.New("token carries no id to revoke")
	}
	return service.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

// Upload stores the file and records it for userID. The declared content type
// must be an image type.
func (service *CoreService) Upload(ctx context.Context, userID int64, originalFilename, contentType string, content []byte) (*database.Image, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return nil, ErrNotAnImage
	}

	name := blobstore.GenerateName(originalFilename, content)
	if err := service.store.Save(name, content); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	image := &database.Image{
		UserID:           userID,
		Filename:         name,
		OriginalFilename: originalFilename,
		FilePath:         service.store.Path(name),
		FileSize:         int64(len(content)),
		MimeType:         contentType,
		UploadedAt:       service.now().UTC(),
	}
	if _, err := service.databaseService.CreateImage(ctx, image); err != nil {
		if removeErr := service.store.Remove(name); removeErr != nil {
			slog.Warn("failed to remove file after database error", "filename", name, "error", removeErr)
		}
		return nil, err
	}
	slog.Info("image uploaded", "image_id", image.ID, "user_id", userID, "size", image.FileSize)
	return image, nil
}

func (service *CoreService) ListImages(ctx context.Context, userID int64) ([]*database.Image, error) {
	return service.databaseService.GetImagesByUser(ctx, userID)
}

// DeleteImage removes the row first and the file second. A failure between the
// two leaves an orphan file for SweepOrphans.
func (service *CoreService) DeleteImage(ctx context.Context, userID, imageID int64) error {
	path, err := service.databaseService.DeleteImage(ctx, imageID, userID)
	if errors.Is(err, database.ErrNotFound) {
		return ErrImageNotFound
	}
	if err != nil {
		return err
	}
	if err := service.store.Remove(blobstore.NameFromPath(path)); err != nil {
		return fmt.Errorf("image record deleted but file removal failed: %w", err)
	}
	return nil
}

// DeleteImages deletes the owned subset of imageIDs and returns how many were deleted
func (service *CoreService) DeleteImages(ctx context.Context, userID int64, imageIDs []int64) (int, error) {
	if len(imageIDs) == 0 {
		return 0, ErrNoImageIDs
	}
	paths, err := service.databaseService.DeleteImages(ctx, imageIDs, userID)
	if err != nil {
		return 0, err
	}
	if len(paths) == 0 {
		return 0, ErrImageNotFound
	}
	for _, path := range paths {
		if err := service.store.Remove(blobstore.NameFromPath(path)); err != nil {
			slog.Warn("failed to remove image file", "path", path, "error", err)
		}
	}
	return len(paths), nil
}

// ProcessResult describes one written transformation result
type ProcessResult struct {
	Filename   string
	Operation  string
	Message    string
	Parameters map[string]any
	// Image is the row of the result; nil when derived images are not tracked
	Image *database.Image
}

var operationMessages = map[string]string{
	"quick_adjust": "Quick adjustments applied successfully",
	"grayscale":    "Grayscale conversion applied successfully",
	"rgb_channel":  "RGB channel extraction applied successfully",
	"hsv_adjust":   "HSV adjustment applied successfully",
	"colorspace":   "Color space conversion applied successfully",
	"draw":         "Shape drawn successfully",
	"transform":    "Transformation applied successfully",
	"resize":       "Image resized successfully",
	"scale":        "Image scaled successfully",
	"crop":         "Image cropped successfully",
}

// Operations lists the names accepted by ProcessImage
func (service *CoreService) Operations() []string {
	return service.registry.GetRegisteredNames()
}

// ProcessImage validates the parameters of operation, applies it to an owned
// image and writes the result next to the source.
func (service *CoreService) ProcessImage(ctx context.Context, userID, imageID int64, operation string, params map[string]any) (*ProcessResult, error) {
	cmd, err := service.registry.Create(operation, params)
	if err != nil {
		return nil, err
	}

	source, img, format, err := service.loadImage(ctx, userID, imageID)
	if err != nil {
		return nil, err
	}

	start := service.now()
	out, err := cmd.Execute(img)
	if err != nil {
		return nil, err
	}

	outFormat, ext := blobstore.OutputFormat(format)
	suffix := cmd.FilenameSuffix()
	name := blobstore.DerivedName(source.Filename, suffix, ext)
	encoded, err := blobstore.Encode(out, outFormat)
	if err != nil {
		return nil, err
	}
	replaced := service.store.Exists(name)
	if err := service.store.Save(name, encoded); err != nil {
		return nil, fmt.Errorf("failed to store result: %w", err)
	}
	dims := commands.MeasureDimensions(out)
	slog.Info("image processed", "operation", cmd.Name(), "source", source.Filename, "result", name,
		"width", dims.Width, "height", dims.Height, "replaced", replaced, "duration", service.now().Sub(start))

	message, ok := operationMessages[cmd.Name()]
	if !ok {
		message = "Operation applied successfully"
	}
	result := &ProcessResult{
		Filename:   name,
		Operation:  cmd.Name(),
		Message:    message,
		Parameters: cmd.Parameters(),
	}
	if !service.config.TracksDerivedImages() {
		return result, nil
	}

	row, err := service.trackDerived(ctx, userID, source, suffix, ext, outFormat, int64(len(encoded)))
	if err != nil {
		return nil, err
	}
	result.Image = row
	return result, nil
}

// trackDerived records a result file, reusing the row of an earlier identical run
func (service *CoreService) trackDerived(ctx context.Context, userID int64, source *database.Image, suffix, ext, format string, size int64) (*database.Image, error) {
	name := blobstore.DerivedName(source.Filename, suffix, ext)
	existing, err := service.databaseService.GetImageByFilename(ctx, userID, name)
	if err == nil {
		// the file under this name was just rewritten
		uploadedAt := service.now().UTC()
		if err := service.databaseService.UpdateImageFile(ctx, existing.ID, size, uploadedAt); err != nil {
			return nil, fmt.Errorf("failed to refresh derived image: %w", err)
		}
		existing.FileSize, existing.UploadedAt = size, uploadedAt
		return existing, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	row := &database.Image{
		UserID:           userID,
		Filename:         name,
		OriginalFilename: blobstore.DerivedName(source.OriginalFilename, suffix, ext),
		FilePath:         service.store.Path(name),
		FileSize:         size,
		MimeType:         blobstore.MIMEType(format),
		UploadedAt:       service.now().UTC(),
	}
	if _, err := service.databaseService.CreateImage(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to record derived image: %w", err)
	}
	return row, nil
}

// Dimensions reports the size and channel count of an owned image from its header
func (service *CoreService) Dimensions(ctx context.Context, userID, imageID int64) (commands.Dimensions, error) {
	_, data, err := service.readImage(ctx, userID, imageID)
	if err != nil {
		return commands.Dimensions{}, err
	}
	cfg, _, err := service.codec.DecodeConfig(data)
	if err != nil {
		return commands.Dimensions{}, fmt.Errorf("unable to read image %d: %w", imageID, err)
	}
	return commands.DimensionsFromConfig(cfg), nil
}

func (service *CoreService) readImage(ctx context.Context, userID, imageID int64) (*database.Image, []byte, error) {
	source, err := service.databaseService.GetImage(ctx, imageID, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil, ErrImageNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	data, err := service.store.Read(source.Filename)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("%w: %s", ErrImageFileMissing, source.Filename)
	}
	if err != nil {
		return nil, nil, err
	}
	return source, data, nil
}

func (service *CoreService) loadImage(ctx context.Context, userID, imageID int64) (*database.Image, image.Image, string, error) {
	source, data, err := service.readImage(ctx, userID, imageID)
	if err != nil {
		return nil, nil, "", err
	}

	img, format, err := service.codec.Decode(data)
	if err != nil {
		return nil, nil, "", fmt.Errorf("unable to read image %d: %w", imageID, err)
	}
	return source, img, format, nil
}

// SweepOrphans deletes stored files that no image row references and that are
// older than the configured grace period. It returns the number of removed files.
func (service *CoreService) SweepOrphans(ctx context.Context) (int, error) {
	known, err := service.databaseService.GetAllFilenames(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list image records: %w", err)
	}
	referenced := make(map[string]struct{}, len(known))
	for _, name := range known {
		referenced[name] = struct{}{}
	}

	names, err := service.store.List()
	if err != nil {
		return 0, fmt.Errorf("failed to list stored files: %w", err)
	}
	cutoff := service.now().Add(-service.config.OrphanGracePeriod)
	removed := 0
	for _, name := range names {
		if _, ok := referenced[name]; ok {
			continue
		}
		modTime, err := service.store.ModTime(name)
		if err != nil || modTime.After(cutoff) {
			continue
		}
		if err := service.store.Remove(name); err != nil {
			slog.Warn("failed to remove orphan file", "filename", name, "error", err)
			continue
		}
		removed++
	}
	slog.Info("orphan sweep finished", "checked", len(names), "removed", removed)
	return removed, nil
}

func (service *CoreService) Close() error {
	var errs []error
	if service.redisClient != nil {
		errs = append(errs, service.redisClient.Close())
	}
	errs = append(errs, service.databaseService.Close())
	return errors.Join(errs...)
}

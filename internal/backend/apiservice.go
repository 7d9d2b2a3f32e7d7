package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jo-hoe/neuragallery/internal/backend/auth"
	"github.com/jo-hoe/neuragallery/internal/backend/blobstore"
	"github.com/jo-hoe/neuragallery/internal/backend/commandstructure"
	"github.com/jo-hoe/neuragallery/internal/core"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

const (
	apiName    = "NeuraGallery Backend API"
	apiVersion = "1.0.0"

	processBodyLimit = "64K"
)

type APIService struct {
	config      *core.ServiceConfig
	coreService *core.CoreService
}

func NewAPIService(config *core.ServiceConfig, coreService *core.CoreService) *APIService {
	return &APIService{
		config:      config,
		coreService: coreService,
	}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	e.Use(middleware.CORS())

	// Set probe route
	e.GET("/", s.probeHandler)

	e.POST("/register", s.registerHandler)
	e.POST("/login", s.loginHandler, s.loginLimiter()...)

	guard := s.coreService.AuthMiddleware().RequireUser
	e.GET("/me", s.meHandler, guard)
	if s.coreService.RevocationEnabled() {
		e.POST("/logout", s.logoutHandler, guard)
	}

	uploadLimit := middleware.BodyLimit(fmt.Sprintf("%dM", s.config.MaxUploadSizeMB))
	e.POST("/upload-image", s.uploadHandler, uploadLimit, guard)
	e.GET("/my-images", s.listImagesHandler, guard)
	e.DELETE("/image/:id", s.deleteImageHandler, guard)
	e.POST("/images/delete", s.deleteImagesHandler, guard)
	e.GET("/image/:id/dimensions", s.dimensionsHandler, guard)
	// operation parameters are small, images never travel in this body
	e.POST("/image/:id/:operation", s.processHandler, middleware.BodyLimit(processBodyLimit), guard)

	e.StaticFS(s.config.StaticPrefix, s.coreService.Store().FS())
}

// loginLimiter throttles login attempts per client IP when configured
func (s *APIService) loginLimiter() []echo.MiddlewareFunc {
	if s.config.LoginRateLimit <= 0 {
		return nil
	}
	burst := int(s.config.LoginRateLimit)
	if burst < 1 {
		burst = 1
	}
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(s.config.LoginRateLimit),
		Burst:     burst,
		ExpiresIn: 5 * time.Minute,
	})
	return []echo.MiddlewareFunc{middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			slog.Warn("login rate limit exceeded", "ip", identifier)
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many login attempts, try again later")
		},
	})}
}

func (s *APIService) probeHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, ProbeResponse{
		Message:   apiName,
		Version:   apiVersion,
		Status:    "running",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (s *APIService) registerHandler(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "received invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	id, err := s.coreService.Register(c.Request().Context(), req.Username, req.Email, req.Password)
	switch {
	case errors.Is(err, core.ErrUsernameExists):
		return echo.NewHTTPError(http.StatusBadRequest, "Username already exists")
	case errors.Is(err, core.ErrEmailExists):
		return echo.NewHTTPError(http.StatusBadRequest, "Email already exists")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Registration failed: %v", err))
	}
	return c.JSON(http.StatusOK, RegisterResponse{Message: "User created successfully", UserID: id})
}

func (s *APIService) loginHandler(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "received invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	token, _, err := s.coreService.Login(c.Request().Context(), req.Username, req.Password)
	if errors.Is(err, core.ErrInvalidCredentials) {
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
		return echo.NewHTTPError(http.StatusUnauthorized, "Incorrect username or password")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *APIService) logoutHandler(c echo.Context) error {
	if err := s.coreService.Logout(c.Request().Context(), auth.CurrentClaims(c)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, StatusResponse{Success: true, Message: "Logged out successfully"})
}

func (s *APIService) meHandler(c echo.Context) error {
	user := auth.CurrentUser(c)
	return c.JSON(http.StatusOK, UserResponse{ID: user.ID, Username: user.Username, Email: user.Email})
}

func (s *APIService) uploadHandler(c echo.Context) error {
	user := auth.CurrentUser(c)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "No file provided")
	}
	contentType := fileHeader.Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(contentType, "image/") {
		return echo.NewHTTPError(http.StatusBadRequest, "File must be an image")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Upload failed: %v", err))
	}
	defer func() {
		_ = file.Close()
	}()
	content, err := io.ReadAll(file)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Upload failed: %v", err))
	}

	image, err := s.coreService.Upload(c.Request().Context(), user.ID, fileHeader.Filename, contentType, content)
	if errors.Is(err, core.ErrNotAnImage) {
		return echo.NewHTTPError(http.StatusBadRequest, "File must be an image")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Upload failed: %v", err))
	}
	return c.JSON(http.StatusOK, newImageResponse(image))
}

func (s *APIService) listImagesHandler(c echo.Context) error {
	images, err := s.coreService.ListImages(c.Request().Context(), auth.CurrentUser(c).ID)
	if err != nil {
		return err
	}
	response := make([]ImageResponse, 0, len(images))
	for _, image := range images {
		response = append(response, newImageResponse(image))
	}
	return c.JSON(http.StatusOK, response)
}

func imageIDParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid image id")
	}
	return id, nil
}

func (s *APIService) deleteImageHandler(c echo.Context) error {
	id, err := imageIDParam(c)
	if err != nil {
		return err
	}
	err = s.coreService.DeleteImage(c.Request().Context(), auth.CurrentUser(c).ID, id)
	if errors.Is(err, core.ErrImageNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Image not found or access denied")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error deleting image: %v", err))
	}
	return c.JSON(http.StatusOK, StatusResponse{Success: true, Message: fmt.Sprintf("Image %d deleted successfully", id)})
}

func (s *APIService) deleteImagesHandler(c echo.Context) error {
	var req DeleteImagesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "received invalid request body")
	}

	n, err := s.coreService.DeleteImages(c.Request().Context(), auth.CurrentUser(c).ID, req.ImageIDs)
	switch {
	case errors.Is(err, core.ErrNoImageIDs):
		return echo.NewHTTPError(http.StatusBadRequest, "No image IDs provided")
	case errors.Is(err, core.ErrImageNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "No matching images found or access denied")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error deleting images: %v", err))
	}
	return c.JSON(http.StatusOK, DeleteImagesResponse{
		Success:      true,
		Message:      fmt.Sprintf("Successfully deleted %d images", n),
		DeletedCount: n,
	})
}

func (s *APIService) dimensionsHandler(c echo.Context) error {
	id, err := imageIDParam(c)
	if err != nil {
		return err
	}
	dims, err := s.coreService.Dimensions(c.Request().Context(), auth.CurrentUser(c).ID, id)
	if err != nil {
		return s.processingError(err)
	}
	return c.JSON(http.StatusOK, dims)
}

func (s *APIService) processHandler(c echo.Context) error {
	id, err := imageIDParam(c)
	if err != nil {
		return err
	}
	params, err := requestParams(c)
	if err != nil {
		return err
	}

	operation := c.Param("operation")
	result, err := s.coreService.ProcessImage(c.Request().Context(), auth.CurrentUser(c).ID, id, operation, params)
	if err != nil {
		return s.processingError(err)
	}

	response := ProcessResponse{
		Success:           true,
		ProcessedFilename: result.Filename,
		Message:           result.Message,
		Operation:         result.Operation,
		Parameters:        result.Parameters,
	}
	if result.Image != nil {
		response.ImageID = &result.Image.ID
	}
	return c.JSON(http.StatusOK, response)
}

// processingError maps transformation failures to HTTP errors
func (s *APIService) processingError(err error) error {
	var paramErr *commandstructure.ParamError
	switch {
	case errors.Is(err, commandstructure.ErrUnknownCommand):
		return echo.NewHTTPError(http.StatusNotFound,
			fmt.Sprintf("Unknown operation, supported operations: %s", strings.Join(s.coreService.Operations(), ", ")))
	case errors.As(err, &paramErr):
		return echo.NewHTTPError(http.StatusBadRequest, paramErr.Message)
	case errors.Is(err, commandstructure.ErrOutOfBounds):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, blobstore.ErrImageTooLarge):
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("Image exceeds %d pixels per side", blobstore.DefaultMaxDimension))
	case errors.Is(err, core.ErrImageNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Image not found")
	case errors.Is(err, core.ErrImageFileMissing):
		return echo.NewHTTPError(http.StatusNotFound, "Image file not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error processing image: %v", err))
}

// requestParams merges query, form and JSON body parameters. Later sources win.
func requestParams(c echo.Context) (map[string]any, error) {
	params := map[string]any{}
	for key, values := range c.QueryParams() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	req := c.Request()
	contentType := req.Header.Get(echo.HeaderContentType)
	switch {
	case strings.HasPrefix(contentType, echo.MIMEApplicationJSON):
		if req.ContentLength == 0 {
			break
		}
		body := map[string]any{}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "received invalid request body")
		}
		for key, value := range body {
			params[key] = value
		}
	case strings.HasPrefix(contentType, echo.MIMEApplicationForm), strings.HasPrefix(contentType, echo.MIMEMultipartForm):
		form, err := c.FormParams()
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "received invalid form body")
		}
		for key, values := range form {
			if len(values) > 0 {
				params[key] = values[0]
			}
		}
	}
	return params, nil
}

package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jo-hoe/neuragallery/internal/backend/auth"
	"github.com/jo-hoe/neuragallery/internal/backend/blobstore"
	"github.com/jo-hoe/neuragallery/internal/backend/database"
	"github.com/jo-hoe/neuragallery/internal/common"
	"github.com/jo-hoe/neuragallery/internal/core"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	auth.PasswordCost = bcrypt.MinCost
}

type testServer struct {
	e     *echo.Echo
	store *blobstore.Store
}

func testConfig() *core.ServiceConfig {
	return &core.ServiceConfig{
		Port:              8000,
		Database:          core.Database{Type: "sqlite", ConnectionString: ":memory:"},
		UploadDir:         "uploads",
		StaticPrefix:      "/uploads",
		Auth:              core.Auth{Secret: "test-secret", TokenTTL: 30 * time.Minute},
		MaxUploadSizeMB:   1,
		OrphanGracePeriod: 10 * time.Minute,
		SVGFallbackWidth:  64,
		SVGFallbackHeight: 64,
	}
}

func newTestServer(t *testing.T, config *core.ServiceConfig, denylist auth.Denylist) *testServer {
	t.Helper()
	db, err := database.NewDatabase("sqlite", ":memory:")
	require.NoError(t, err)
	store := blobstore.NewStore(afero.NewMemMapFs(), config.UploadDir)
	coreService, err := core.NewCoreServiceWith(config, db, store, denylist)
	require.NoError(t, err)
	t.Cleanup(func() { _ = coreService.Close() })

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Validator = &common.GenericEchoValidator{}
	e.HTTPErrorHandler = common.JSONErrorHandler
	NewAPIService(config, coreService).SetRoutes(e)
	return &testServer{e: e, store: store}
}

func (s *testServer) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var data []byte
	switch b := body.(type) {
	case nil:
	case []byte:
		data = b
	default:
		var err error
		data, err = json.Marshal(b)
		require.NoError(t, err)
	}
	reader := bytes.NewReader(data)
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) upload(t *testing.T, token, filename, contentType string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload-image", &buf)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, username string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/register", "", map[string]string{
		"username": username, "email": username + "@example.com", "password": "password1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/login", "", map[string]string{"username": username, "password": "password1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var token TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &token))
	assert.Equal(t, "bearer", token.TokenType)
	return token.AccessToken
}

func (s *testServer) uploadPNG(t *testing.T, token string, w, h int) ImageResponse {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(10 * x), 100, uint8(10 * y), 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	rec := s.upload(t, token, "photo.png", "image/png", buf.Bytes())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var response ImageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	return response
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body common.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Detail
}

func TestProbe(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	rec := s.do(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var probe ProbeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &probe))
	assert.Equal(t, "NeuraGallery Backend API", probe.Message)
	assert.Equal(t, "1.0.0", probe.Version)
	assert.Equal(t, "running", probe.Status)
	assert.NotEmpty(t, probe.Timestamp)
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	token := s.login(t, "alice")

	rec := s.do(t, http.MethodGet, "/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "alice", me.Username)
	assert.Equal(t, "alice@example.com", me.Email)

	tests := []struct {
		name       string
		body       map[string]string
		wantDetail string
	}{
		{"duplicate username", map[string]string{"username": "alice", "email": "new@example.com", "password": "password1"}, "Username already exists"},
		{"duplicate email", map[string]string{"username": "alice2", "email": "alice@example.com", "password": "password1"}, "Email already exists"},
		{"short password", map[string]string{"username": "bob", "email": "bob@example.com", "password": "123"}, ""},
		{"invalid email", map[string]string{"username": "bob", "email": "bob", "password": "password1"}, ""},
		{"short username", map[string]string{"username": "bo", "email": "bo@example.com", "password": "password1"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/register", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, detail(t, rec))
			}
		})
	}

	rec = s.do(t, http.MethodPost, "/login", "", map[string]string{"username": "alice", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Incorrect username or password", detail(t, rec))
	assert.Equal(t, "Bearer", rec.Header().Get(echo.HeaderWWWAuthenticate))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/me"},
		{http.MethodGet, "/my-images"},
		{http.MethodPost, "/upload-image"},
		{http.MethodDelete, "/image/1"},
		{http.MethodPost, "/images/delete"},
		{http.MethodPost, "/image/1/grayscale"},
		{http.MethodGet, "/image/1/dimensions"},
	} {
		rec := s.do(t, route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, route.path)
		assert.Equal(t, "Invalid authentication credentials", detail(t, rec))
		assert.Equal(t, "Bearer", rec.Header().Get(echo.HeaderWWWAuthenticate))
	}

	rec := s.do(t, http.MethodGet, "/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadListAndDelete(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	alice := s.login(t, "alice")
	bob := s.login(t, "bob")

	rec := s.upload(t, alice, "notes.txt", "text/plain", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "File must be an image", detail(t, rec))

	first := s.uploadPNG(t, alice, 4, 4)
	second := s.uploadPNG(t, alice, 4, 4)
	assert.Equal(t, "photo.png", first.OriginalFilename)
	assert.Equal(t, "image/png", first.MimeType)
	assert.True(t, strings.HasSuffix(first.Filename, ".png"))

	rec = s.do(t, http.MethodGet, "/my-images", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []ImageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 2)
	assert.Equal(t, second.ID, listed[0].ID)

	rec = s.do(t, http.MethodGet, "/uploads/"+first.Filename, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodDelete, fmt.Sprintf("/image/%d", first.ID), bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Image not found or access denied", detail(t, rec))

	rec = s.do(t, http.MethodDelete, fmt.Sprintf("/image/%d", first.ID), alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, fmt.Sprintf("Image %d deleted successfully", first.ID), status.Message)
	assert.False(t, s.store.Exists(first.Filename))

	rec = s.do(t, http.MethodDelete, "/image/abc", alice, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadBodyLimit(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	token := s.login(t, "alice")
	rec := s.upload(t, token, "big.png", "image/png", bytes.Repeat([]byte{1}, 2<<20))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestBatchDelete(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	alice := s.login(t, "alice")
	bob := s.login(t, "bob")
	a1 := s.uploadPNG(t, alice, 2, 2)
	a2 := s.uploadPNG(t, alice, 2, 2)
	b1 := s.uploadPNG(t, bob, 2, 2)

	rec := s.do(t, http.MethodPost, "/images/delete", alice, map[string]any{"image_ids": []int64{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No image IDs provided", detail(t, rec))

	rec = s.do(t, http.MethodPost, "/images/delete", alice, map[string]any{"image_ids": []int64{b1.ID}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No matching images found or access denied", detail(t, rec))

	rec = s.do(t, http.MethodPost, "/images/delete", alice, map[string]any{"image_ids": []int64{a1.ID, a2.ID, b1.ID}})
	require.Equal(t, http.StatusOK, rec.Code)
	var response DeleteImagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.True(t, response.Success)
	assert.Equal(t, 2, response.DeletedCount)
	assert.Equal(t, "Successfully deleted 2 images", response.Message)
	assert.True(t, s.store.Exists(b1.Filename))
}

func TestProcessImage(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	alice := s.login(t, "alice")
	bob := s.login(t, "bob")
	src := s.uploadPNG(t, alice, 20, 10)
	base := strings.TrimSuffix(src.Filename, ".png")
	path := func(op string) string { return fmt.Sprintf("/image/%d/%s", src.ID, op) }

	t.Run("query parameters", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, path("crop")+"?x=2&y=1&width=8&height=5", alice, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var response ProcessResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		assert.True(t, response.Success)
		assert.Equal(t, base+"_cropped_2_1_8x5.png", response.ProcessedFilename)
		assert.Equal(t, "crop", response.Operation)
		require.NotNil(t, response.ImageID)
		assert.True(t, s.store.Exists(response.ProcessedFilename))

		rec = s.do(t, http.MethodGet, fmt.Sprintf("/image/%d/dimensions", *response.ImageID), alice, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"width":8,"height":5,"channels":3,"total_pixels":40}`, rec.Body.String())
	})

	t.Run("json body with client aliases", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, path("transform"), alice, map[string]any{"operation": "translate", "translate_x": 3, "translate_y": -2})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var response ProcessResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		assert.Equal(t, base+"_translate_3_-2.png", response.ProcessedFilename)
	})

	t.Run("json body overrides query", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, path("quick-adjust")+"?brightness=5", alice, map[string]any{"brightness": 1.2})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	errorCases := []struct {
		name       string
		target     string
		token      string
		body       any
		wantCode   int
		wantDetail string
	}{
		{"unknown operation", path("sharpen"), alice, nil, http.StatusNotFound,
			"Unknown operation, supported operations: colorspace, crop, draw, grayscale, hsv-adjust, quick-adjust, resize, rgb-channel, scale, transform"},
		{"text too long", path("draw"), alice, map[string]any{"shape_type": "text", "start_x": 1, "start_y": 1, "text": strings.Repeat("a", 501)},
			http.StatusBadRequest, "Text must be at most 500 characters"},
		{"oversized body", path("grayscale"), alice, bytes.Repeat([]byte(" "), 65<<10), http.StatusRequestEntityTooLarge, ""},
		{"parameter out of range", path("quick-adjust") + "?brightness=2.5", alice, nil, http.StatusBadRequest, "Brightness must be between 0.3 and 2.0"},
		{"crop out of bounds", path("crop") + "?x=15&y=0&width=10&height=5", alice, nil, http.StatusBadRequest, ""},
		{"foreign image", path("grayscale"), bob, nil, http.StatusNotFound, "Image not found"},
		{"missing image", "/image/9999/grayscale", alice, nil, http.StatusNotFound, "Image not found"},
		{"malformed json", path("grayscale"), alice, []byte(`{"a":`), http.StatusBadRequest, ""},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, tt.target, tt.token, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, detail(t, rec))
			}
		})
	}
}

func TestProcessImage_OversizedSource(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	alice := s.login(t, "alice")
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 3000000000 10"><rect width="1" height="1"/></svg>`)
	rec := s.upload(t, alice, "huge.svg", "image/svg+xml", svg)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var src ImageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &src))

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/image/%d/grayscale", src.ID), alice, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, "Image exceeds 10000 pixels per side", detail(t, rec))

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/image/%d/dimensions", src.ID), alice, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestLogout(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	token := s.login(t, "alice")
	rec := s.do(t, http.MethodPost, "/logout", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "logout is only routed when revocation is enabled")

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	s = newTestServer(t, testConfig(), auth.NewRedisDenylist(client))
	token = s.login(t, "alice")

	rec = s.do(t, http.MethodPost, "/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodGet, "/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRateLimit(t *testing.T) {
	config := testConfig()
	config.LoginRateLimit = 1
	s := newTestServer(t, config, nil)

	codes := []int{}
	for i := 0; i < 3; i++ {
		rec := s.do(t, http.MethodPost, "/login", "", map[string]string{"username": "x", "password": "y"})
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, http.StatusUnauthorized, codes[0])
	assert.Contains(t, codes, http.StatusTooManyRequests)
}

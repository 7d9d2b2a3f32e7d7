package core

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jo-hoe/neuragallery/internal/backend/blobstore"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Database struct {
	Type             string `yaml:"type"`
	ConnectionString string `yaml:"connectionString"`
}

type Auth struct {
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"tokenTTL"`
}

// Redis enables token revocation when Address is set
type Redis struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ServiceConfig struct {
	Port         int      `yaml:"port"`
	Database     Database `yaml:"database"`
	UploadDir    string   `yaml:"uploadDir"`
	StaticPrefix string   `yaml:"staticPrefix"`
	Auth         Auth     `yaml:"auth"`
	Redis        Redis    `yaml:"redis"`

	MaxUploadSizeMB int `yaml:"maxUploadSizeMB"`
	// LoginRateLimit is the allowed login attempts per second and client IP; 0 disables limiting
	LoginRateLimit float64 `yaml:"loginRateLimit"`

	TrackDerivedImages    *bool         `yaml:"trackDerivedImages"`
	SweepOrphansOnStartup bool          `yaml:"sweepOrphansOnStartup"`
	OrphanGracePeriod     time.Duration `yaml:"orphanGracePeriod"`

	SVGFallbackWidth  int `yaml:"svgFallbackWidth"`
	SVGFallbackHeight int `yaml:"svgFallbackHeight"`

	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
}

// TracksDerivedImages reports whether transformation results get an image row
func (c *ServiceConfig) TracksDerivedImages() bool {
	return c.TrackDerivedImages == nil || *c.TrackDerivedImages
}

// LoadConfig loads configuration from the specified YAML file.
// A .env file in the working directory is read first; environment variables
// override the file values.
func LoadConfig(configPath string) (*ServiceConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var config ServiceConfig
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

func (c *ServiceConfig) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("JWT_SECRET"); ok {
		c.Auth.Secret = v
	}
	if v, ok := lookup("DATABASE_URL"); ok {
		c.Database.ConnectionString = v
		if strings.HasPrefix(v, "postgres://") || strings.HasPrefix(v, "postgresql://") {
			c.Database.Type = "postgres"
		}
	}
	if v, ok := lookup("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Port = port
	}
	if v, ok := lookup("UPLOAD_DIR"); ok {
		c.UploadDir = v
	}
	if v, ok := lookup("REDIS_ADDRESS"); ok {
		c.Redis.Address = v
	}
	return nil
}

func (c *ServiceConfig) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Type == "sqlite" && c.Database.ConnectionString == "" {
		c.Database.ConnectionString = "neuragallery.db"
	}
	if c.UploadDir == "" {
		c.UploadDir = "uploads"
	}
	if c.StaticPrefix == "" {
		c.StaticPrefix = "/uploads"
	}
	if !strings.HasPrefix(c.StaticPrefix, "/") {
		c.StaticPrefix = "/" + c.StaticPrefix
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 30 * time.Minute
	}
	if c.MaxUploadSizeMB == 0 {
		c.MaxUploadSizeMB = 20
	}
	if c.OrphanGracePeriod == 0 {
		c.OrphanGracePeriod = 10 * time.Minute
	}
	if c.SVGFallbackWidth == 0 {
		c.SVGFallbackWidth = 1024
	}
	if c.SVGFallbackHeight == 0 {
		c.SVGFallbackHeight = 1024
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

func (c *ServiceConfig) validate() error {
	if c.Auth.Secret == "" {
		return errors.New("auth secret is empty, set JWT_SECRET or auth.secret")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	switch c.Database.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	if c.Database.ConnectionString == "" {
		return errors.New("database connection string is empty")
	}
	if c.Auth.TokenTTL < 0 {
		return errors.New("auth.tokenTTL must be positive")
	}
	if c.MaxUploadSizeMB < 0 || c.LoginRateLimit < 0 || c.OrphanGracePeriod < 0 {
		return errors.New("maxUploadSizeMB, loginRateLimit and orphanGracePeriod must not be negative")
	}
	if c.SVGFallbackWidth < 0 || c.SVGFallbackHeight < 0 ||
		c.SVGFallbackWidth > blobstore.DefaultMaxDimension || c.SVGFallbackHeight > blobstore.DefaultMaxDimension {
		return fmt.Errorf("svg fallback size must be between 1 and %d", blobstore.DefaultMaxDimension)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format: %s", c.LogFormat)
	}
	return nil
}

// ParseLogLevel maps debug|info|warn|error to a slog level
func ParseLogLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("unsupported log level %q", level)
	}
	return l, nil
}

// NewLogger builds the process logger from the logging settings
func (c *ServiceConfig) NewLogger() *slog.Logger {
	level, err := ParseLogLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

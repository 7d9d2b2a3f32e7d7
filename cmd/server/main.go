package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jo-hoe/neuragallery/internal/backend"
	"github.com/jo-hoe/neuragallery/internal/common"
	"github.com/jo-hoe/neuragallery/internal/core"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func getConfigPath() string {
	// First check if config path is provided via environment variable
	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		return configPath
	}

	// Default to config.yaml in current working directory
	cwd, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	return filepath.Join(cwd, "config.yaml")
}

func main() {
	configPath := getConfigPath()
	config, err := core.LoadConfig(configPath)
	if err != nil {
		slog.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}
	slog.SetDefault(config.NewLogger())

	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	coreService, err := core.NewCoreService(startCtx, config)
	cancelStart()
	if err != nil {
		slog.Error("failed to initialize core service", "error", err)
		os.Exit(1)
	}

	if config.SweepOrphansOnStartup && config.TracksDerivedImages() {
		if _, err := coreService.SweepOrphans(context.Background()); err != nil {
			slog.Warn("orphan sweep failed", "error", err)
		}
	}

	server := defineServer()
	apiService := backend.NewAPIService(config, coreService)
	apiService.SetRoutes(server)

	portString := fmt.Sprintf(":%d", config.Port)

	// Start HTTP server in a goroutine to allow graceful shutdown
	go func() {
		slog.Info("starting server", "port", config.Port)
		if err := server.Start(portString); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	slog.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	if err := coreService.Close(); err != nil {
		slog.Error("core service close error", "error", err)
	}
}

func defineServer() *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Configure request logger to skip "/" endpoint (health check/probe)
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/"
		},
		LogStatus:    true,
		LogLatency:   true,
		LogMethod:    true,
		LogURI:       true,
		LogError:     true,
		LogRemoteIP:  true,
		LogHost:      true,
		LogUserAgent: true,
		LogRoutePath: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.String("route", v.RoutePath),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", v.RemoteIP),
				slog.String("host", v.Host),
				slog.String("user_agent", v.UserAgent),
			}
			level := slog.LevelInfo
			if v.Error != nil {
				level = slog.LevelError
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			slog.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	}))

	e.Use(middleware.Recover())
	e.Pre(middleware.RemoveTrailingSlash())

	e.Validator = &common.GenericEchoValidator{}
	e.HTTPErrorHandler = common.JSONErrorHandler

	return e
}

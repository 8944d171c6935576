package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/danuharapan/senandika/server/adapters/kvstore"
	"github.com/danuharapan/senandika/server/adapters/provisioner"
	"github.com/danuharapan/senandika/server/adapters/registry"
	"github.com/danuharapan/senandika/server/adapters/responder"
	"github.com/danuharapan/senandika/server/domain/repositories"
	"github.com/danuharapan/senandika/server/internal/api"
	"github.com/danuharapan/senandika/server/internal/telemetry"
	"github.com/danuharapan/senandika/server/internal/websocket"
	"github.com/danuharapan/senandika/server/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load .env if present; real environment wins
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using environment variables")
	}

	// Key-value store: Mongo when configured, embedded SQLite otherwise
	store := newStore(logger)
	defer store.Close()

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize adapters
	deviceRegistry := registry.NewMemoryRegistry()
	mockProvisioner := provisioner.NewMockProvisioner(logger)

	// Initialize usecase services
	pairingService := usecase.NewPairingService(deviceRegistry, mockProvisioner, logger)
	if d := os.Getenv("PAIRING_CONNECT_TIMEOUT"); d != "" {
		if timeout, err := time.ParseDuration(d); err == nil {
			pairingService.SetConnectTimeout(timeout)
		} else {
			logger.Warn("Ignoring invalid PAIRING_CONNECT_TIMEOUT", zap.String("value", d))
		}
	}
	sessionService := usecase.NewSessionService(deviceRegistry, newResponder(logger), logger)
	memoryService := usecase.NewMemoryService(store, deviceRegistry, logger)
	profileService := usecase.NewProfileService(store, logger)
	settingsService := usecase.NewSettingsService(store, logger)

	// Initialize WebSocket hub with the session turn stream
	hub := websocket.NewHub(sessionService, logger)
	go hub.Run()

	// Background telemetry simulation
	simulator := telemetry.NewSimulator(deviceRegistry, logger)
	simulator.Start()
	defer simulator.Stop()

	// Initialize API routes
	api.InitRoutes(e, api.Services{
		Registry: deviceRegistry,
		Pairing:  pairingService,
		Sessions: sessionService,
		Memories: memoryService,
		Profiles: profileService,
		Settings: settingsService,
	}, hub, logger)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("port", port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// newStore picks the persistence backend. MONGODB_URI selects Mongo;
// otherwise the embedded SQLite file at DATABASE_PATH (default
// senandika.db) is used.
func newStore(logger *zap.Logger) repositories.KeyValueStore {
	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		store, err := kvstore.NewMongoStore(uri, "senandika", logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		logger.Info("Using MongoDB key-value store")
		return store
	}

	path := os.Getenv("DATABASE_PATH")
	if path == "" {
		path = "senandika.db"
	}
	store, err := kvstore.NewSQLiteStore(path)
	if err != nil {
		logger.Fatal("Failed to open SQLite store", zap.Error(err))
	}
	logger.Info("Using SQLite key-value store", zap.String("path", path))
	return store
}

// newResponder picks the reply backend. RESPONDER=gemini enables the live
// API; anything else uses the deterministic catalog responder.
func newResponder(logger *zap.Logger) repositories.Responder {
	if os.Getenv("RESPONDER") == "gemini" {
		r, err := responder.NewGeminiResponder(logger)
		if err != nil {
			logger.Warn("Falling back to canned responder", zap.Error(err))
			return responder.NewCannedResponder()
		}
		logger.Info("Using Gemini responder")
		return r
	}
	return responder.NewCannedResponder()
}
